package domain

import (
	"context"
	"time"
)

// Snapshot is a named, persisted copy of the documents of an engine.
type Snapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Documents Documents `json:"documents"`
}

// SnapshotSummary lists a snapshot without its documents.
type SnapshotSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotStore persists document snapshots. Save assigns an id and a
// creation time when they are zero; Load and Delete return a NotFoundError
// for unknown ids.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) (Snapshot, error)
	Load(ctx context.Context, id string) (Snapshot, error)
	List(ctx context.Context) ([]SnapshotSummary, error)
	Delete(ctx context.Context, id string) error
}
