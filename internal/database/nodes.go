package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"chmura-plikow/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrDuplicateNodeName = errors.New("a node with the same name already exists in this folder")
var ErrNodeNotFound = errors.New("node not found or user is not the owner")
var ErrParentNotFolder = errors.New("parent node is not a folder")
var ErrFolderCycle = errors.New("cannot move a folder into itself or one of its descendants")

const nodeColumns = `id, owner_id, parent_id, name, node_type, size_bytes, mime_type, storage_key, created_at, modified_at`

func prefixedNodeColumns(alias string) string {
	cols := strings.Split(nodeColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func scanNode(row pgx.Row) (*models.Node, error) {
	var node models.Node
	err := row.Scan(
		&node.ID,
		&node.OwnerID,
		&node.ParentID,
		&node.Name,
		&node.NodeType,
		&node.SizeBytes,
		&node.MimeType,
		&node.StorageKey,
		&node.CreatedAt,
		&node.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

type CreateNodeParams struct {
	ID         string
	OwnerID    int64
	ParentID   *string
	Name       string
	NodeType   string
	SizeBytes  *int64
	MimeType   *string
	StorageKey *string
}

func (q *Queries) CreateNode(ctx context.Context, arg CreateNodeParams) (*models.Node, error) {
	query := `
		INSERT INTO nodes (id, owner_id, parent_id, name, node_type, size_bytes, mime_type, storage_key, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + nodeColumns

	now := time.Now()

	node, err := scanNode(q.db.QueryRow(ctx, query,
		arg.ID,
		arg.OwnerID,
		arg.ParentID,
		arg.Name,
		arg.NodeType,
		arg.SizeBytes,
		arg.MimeType,
		arg.StorageKey,
		now,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateNodeName
		}
		return nil, err
	}

	return node, nil
}

func (q *Queries) GetNodeByID(ctx context.Context, id string, ownerID int64) (*models.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = $1 AND owner_id = $2`

	node, err := scanNode(q.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return node, nil
}

func (q *Queries) NodeExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM nodes WHERE id = $1)"
	err := q.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (q *Queries) GetNodesByParentID(ctx context.Context, ownerID int64, parentID *string, limit int, offset int) ([]models.Node, error) {
	var rows pgx.Rows
	var err error

	if parentID == nil {
		query := `SELECT ` + nodeColumns + `
				 FROM nodes
				 WHERE owner_id = $1 AND parent_id IS NULL
				 ORDER BY node_type DESC, name
				 LIMIT $2 OFFSET $3`
		rows, err = q.db.Query(ctx, query, ownerID, limit, offset)
	} else {
		query := `SELECT ` + nodeColumns + `
				 FROM nodes
				 WHERE owner_id = $1 AND parent_id = $2
				 ORDER BY node_type DESC, name
				 LIMIT $3 OFFSET $4`
		rows, err = q.db.Query(ctx, query, ownerID, *parentID, limit, offset)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectNodes(rows)
}

func collectNodes(rows pgx.Rows) ([]models.Node, error) {
	var nodes []models.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if nodes == nil {
		return []models.Node{}, nil
	}

	return nodes, nil
}

// LockNode takes a row lock on a node for the rest of the transaction.
// Rename/move/upload lock the destination parent so two requests cannot
// create same-named siblings concurrently.
func (q *Queries) LockNode(ctx context.Context, id string, ownerID int64) (bool, error) {
	var locked string
	query := `SELECT id FROM nodes WHERE id = $1 AND owner_id = $2 FOR UPDATE`
	err := q.db.QueryRow(ctx, query, id, ownerID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (q *Queries) RenameNode(ctx context.Context, id string, ownerID int64, newName string) (bool, error) {
	query := `
		UPDATE nodes
		SET name = $1, modified_at = $2
		WHERE id = $3 AND owner_id = $4
	`
	now := time.Now()
	res, err := q.db.Exec(ctx, query, newName, now, id, ownerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, ErrDuplicateNodeName
		}
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

func (q *Queries) MoveNode(ctx context.Context, id string, ownerID int64, newParentID *string) (bool, error) {
	query := `
		UPDATE nodes
		SET parent_id = $1, modified_at = $2
		WHERE id = $3 AND owner_id = $4
	`
	now := time.Now()
	res, err := q.db.Exec(ctx, query, newParentID, now, id, ownerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, ErrNodeNotFound
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, ErrDuplicateNodeName
		}
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

// DeleteNodeTree permanently removes a node and, depth-first through the
// recursive CTE, every descendant. It reports the storage keys of all
// deleted files so the caller can release the blobs, plus the total bytes
// freed for the quota counter.
func (q *Queries) DeleteNodeTree(ctx context.Context, id string, ownerID int64) (storageKeys []string, freedBytes int64, found bool, err error) {
	query := `
		WITH RECURSIVE nodes_to_delete AS (
			SELECT n.id
			FROM nodes n
			WHERE n.id = $1 AND n.owner_id = $2

			UNION ALL

			SELECT n.id
			FROM nodes n
			INNER JOIN nodes_to_delete ntd ON n.parent_id = ntd.id
		)
		DELETE FROM nodes
		WHERE id IN (SELECT id FROM nodes_to_delete)
		RETURNING node_type, size_bytes, storage_key
	`

	rows, err := q.db.Query(ctx, query, id, ownerID)
	if err != nil {
		return nil, 0, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var nodeType string
		var sizeBytes *int64
		var storageKey *string
		if err := rows.Scan(&nodeType, &sizeBytes, &storageKey); err != nil {
			return nil, 0, false, err
		}
		found = true
		if nodeType == "file" {
			if storageKey != nil {
				storageKeys = append(storageKeys, *storageKey)
			}
			if sizeBytes != nil {
				freedBytes += *sizeBytes
			}
		}
	}

	if err = rows.Err(); err != nil {
		return nil, 0, false, err
	}

	return storageKeys, freedBytes, found, nil
}

// SearchNodes matches node names by case-insensitive substring, scoped to the
// owner. Wildcard characters in the query are escaped so they match
// literally.
func (q *Queries) SearchNodes(ctx context.Context, ownerID int64, term string, limit int, offset int) ([]models.Node, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)

	query := `SELECT ` + nodeColumns + `
		FROM nodes
		WHERE owner_id = $1 AND name ILIKE '%' || $2 || '%'
		ORDER BY node_type DESC, name
		LIMIT $3 OFFSET $4`

	rows, err := q.db.Query(ctx, query, ownerID, escaped, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectNodes(rows)
}
