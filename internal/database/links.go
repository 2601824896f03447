package database

import (
	"context"
	"errors"

	"chmura-plikow/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrLinkAlreadyExists = errors.New("this file is already published under a public link")

func (q *Queries) CreatePublicLink(ctx context.Context, nodeID string) (*models.PublicLink, error) {
	query := `
		INSERT INTO public_links (id, node_id)
		VALUES ($1, $2)
		RETURNING id, node_id, created_at
	`
	var link models.PublicLink
	err := q.db.QueryRow(ctx, query, uuid.New(), nodeID).Scan(&link.ID, &link.NodeID, &link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrLinkAlreadyExists
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}

	return &link, nil
}

func (q *Queries) GetPublicLinkForNode(ctx context.Context, nodeID string) (*models.PublicLink, error) {
	query := `SELECT id, node_id, created_at FROM public_links WHERE node_id = $1`
	var link models.PublicLink
	err := q.db.QueryRow(ctx, query, nodeID).Scan(&link.ID, &link.NodeID, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (q *Queries) DeletePublicLink(ctx context.Context, nodeID string) (bool, error) {
	query := `DELETE FROM public_links WHERE node_id = $1`
	res, err := q.db.Exec(ctx, query, nodeID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// GetNodeByLinkID fetches the file behind a public link. This is the one
// lookup in the namespace that is deliberately not scoped to an owner.
func (q *Queries) GetNodeByLinkID(ctx context.Context, linkID uuid.UUID) (*models.Node, error) {
	query := `
		SELECT ` + prefixedNodeColumns("n") + `
		FROM nodes n
		JOIN public_links l ON n.id = l.node_id
		WHERE l.id = $1 AND n.node_type = 'file'
	`
	node, err := scanNode(q.db.QueryRow(ctx, query, linkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return node, nil
}
