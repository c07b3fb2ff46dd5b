// Package memory provides an in-memory snapshot store used for tests and
// ephemeral environments, plus the document bucket codec shared by the SQL
// backends.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"thetacore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.SnapshotStore = (*Store)(nil)

// Buckets are the document columns persisted for every snapshot.
var Buckets = []string{"context", "process", "link", "theta"}

// Store keeps snapshots in process memory.
type Store struct {
	mu    sync.RWMutex
	items map[string]domain.Snapshot
	now   func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{items: make(map[string]domain.Snapshot), now: time.Now}
}

// Prepare assigns an id and creation time when missing. SQL backends call it
// before writing.
func Prepare(snap domain.Snapshot, now func() time.Time) domain.Snapshot {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = now().UTC()
	}
	return snap
}

// Save implements domain.SnapshotStore.
func (s *Store) Save(_ context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	snap = Prepare(snap, s.now)
	snap.Documents = snap.Documents.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[snap.ID] = snap
	out := snap
	out.Documents = snap.Documents.Clone()
	return out, nil
}

// Load implements domain.SnapshotStore.
func (s *Store) Load(_ context.Context, id string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.items[id]
	if !ok {
		return domain.Snapshot{}, &domain.NotFoundError{Kind: "snapshot", ID: id}
	}
	snap.Documents = snap.Documents.Clone()
	return snap, nil
}

// List implements domain.SnapshotStore, oldest first.
func (s *Store) List(_ context.Context) ([]domain.SnapshotSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SnapshotSummary, 0, len(s.items))
	for _, snap := range s.items {
		out = append(out, domain.SnapshotSummary{ID: snap.ID, Name: snap.Name, CreatedAt: snap.CreatedAt})
	}
	SortSummaries(out)
	return out, nil
}

// Delete implements domain.SnapshotStore.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return &domain.NotFoundError{Kind: "snapshot", ID: id}
	}
	delete(s.items, id)
	return nil
}

// SortSummaries orders summaries by creation time, then id.
func SortSummaries(out []domain.SnapshotSummary) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

// EncodeBuckets marshals each document into its bucket, in Buckets order.
// Absent documents encode as JSON null.
func EncodeBuckets(docs domain.Documents) ([][]byte, error) {
	values := []any{docs.Context, docs.Process, docs.Link, docs.Theta}
	out := make([][]byte, len(values))
	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", Buckets[i], err)
		}
		out[i] = data
	}
	return out, nil
}

// DecodeBuckets is the inverse of EncodeBuckets.
func DecodeBuckets(payloads [][]byte) (domain.Documents, error) {
	var docs domain.Documents
	if len(payloads) != len(Buckets) {
		return docs, fmt.Errorf("expected %d buckets, got %d", len(Buckets), len(payloads))
	}
	targets := []any{&docs.Context, &docs.Process, &docs.Link, &docs.Theta}
	for i, payload := range payloads {
		if len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, targets[i]); err != nil {
			return docs, fmt.Errorf("decode %s: %w", Buckets[i], err)
		}
	}
	return docs, nil
}
