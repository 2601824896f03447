package models

import (
	"time"

	"github.com/google/uuid"
)

// PublicLink exposes a single file node under an unguessable identifier.
// Anyone holding the link may download the file without authentication.
type PublicLink struct {
	ID        uuid.UUID `json:"id"`
	NodeID    string    `json:"node_id"`
	CreatedAt time.Time `json:"created_at"`
}
