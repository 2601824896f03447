package database

import (
	"context"
	"errors"

	"chmura-plikow/internal/models"
	"chmura-plikow/internal/paths"

	"github.com/jackc/pgx/v5"
)

// GetChildByName looks up a direct child of parentID (nil for the owner's
// root) by exact name, scoped to the owner.
func (q *Queries) GetChildByName(ctx context.Context, ownerID int64, parentID *string, name string) (*models.Node, error) {
	var row pgx.Row
	if parentID == nil {
		query := `SELECT ` + nodeColumns + ` FROM nodes WHERE owner_id = $1 AND parent_id IS NULL AND name = $2`
		row = q.db.QueryRow(ctx, query, ownerID, name)
	} else {
		query := `SELECT ` + nodeColumns + ` FROM nodes WHERE owner_id = $1 AND parent_id = $2 AND name = $3`
		row = q.db.QueryRow(ctx, query, ownerID, *parentID, name)
	}

	node, err := scanNode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return node, nil
}

// ResolvePath walks a user-supplied path from the owner's root, one segment
// per lookup. It returns nil for the empty path (the root itself) and
// ErrNodeNotFound when any segment is missing, belongs to someone else, or
// sits below a file instead of a folder.
func (q *Queries) ResolvePath(ctx context.Context, ownerID int64, rawPath string) (*models.Node, error) {
	segments, err := paths.Split(rawPath)
	if err != nil {
		return nil, err
	}

	var current *models.Node
	var parentID *string
	for i, segment := range segments {
		node, err := q.GetChildByName(ctx, ownerID, parentID, segment)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, ErrNodeNotFound
		}
		if i < len(segments)-1 && node.NodeType != "folder" {
			return nil, ErrNodeNotFound
		}
		current = node
		parentID = &node.ID
	}

	return current, nil
}

// NodePath rebuilds the canonical path of a node by walking parent links up
// to the root.
func (q *Queries) NodePath(ctx context.Context, id string, ownerID int64) (string, error) {
	query := `
		WITH RECURSIVE ancestry AS (
			SELECT id, parent_id, name, 0 AS depth
			FROM nodes
			WHERE id = $1 AND owner_id = $2

			UNION ALL

			SELECT n.id, n.parent_id, n.name, a.depth + 1
			FROM nodes n
			JOIN ancestry a ON n.id = a.parent_id
		)
		SELECT name FROM ancestry ORDER BY depth DESC
	`
	rows, err := q.db.Query(ctx, query, id, ownerID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var segments []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		segments = append(segments, name)
	}
	if err = rows.Err(); err != nil {
		return "", err
	}
	if segments == nil {
		return "", ErrNodeNotFound
	}

	return paths.Join(segments), nil
}

// IsDescendantOf reports whether potentialParentID lies inside the subtree
// rooted at nodeID (a node counts as its own descendant). Move uses this to
// refuse cycles.
func (q *Queries) IsDescendantOf(ctx context.Context, nodeID string, potentialParentID string) (bool, error) {
	if nodeID == potentialParentID {
		return true, nil
	}

	query := `
		WITH RECURSIVE node_children AS (
			SELECT id FROM nodes WHERE id = $1

			UNION ALL

			SELECT n.id
			FROM nodes n
			JOIN node_children nc ON n.parent_id = nc.id
		)
		SELECT EXISTS (
			SELECT 1
			FROM node_children
			WHERE id = $2
		);
	`
	var isDescendant bool
	err := q.db.QueryRow(ctx, query, nodeID, potentialParentID).Scan(&isDescendant)
	return isDescendant, err
}
