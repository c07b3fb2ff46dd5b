// Package sqlite persists document snapshots in a SQLite database, one row
// per snapshot with one JSON column per document.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"thetacore/internal/infra/persistence/memory"
	"thetacore/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

// Store is a SQLite-backed snapshot store.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore opens (creating when needed) the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "thetacore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		context BLOB NOT NULL,
		process BLOB NOT NULL,
		link BLOB NOT NULL,
		theta BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Save implements domain.SnapshotStore.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	snap = memory.Prepare(snap, s.now)
	payloads, err := memory.EncodeBuckets(snap.Documents)
	if err != nil {
		return domain.Snapshot{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots(id,name,created_at,context,process,link,theta) VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, created_at=excluded.created_at,
		context=excluded.context, process=excluded.process, link=excluded.link, theta=excluded.theta`,
		snap.ID, snap.Name, snap.CreatedAt.Format(time.RFC3339Nano), payloads[0], payloads[1], payloads[2], payloads[3])
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("upsert snapshot %s: %w", snap.ID, err)
	}
	return snap, nil
}

// Load implements domain.SnapshotStore.
func (s *Store) Load(ctx context.Context, id string) (domain.Snapshot, error) {
	var (
		snap     domain.Snapshot
		created  string
		payloads = make([][]byte, len(memory.Buckets))
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at, context, process, link, theta FROM snapshots WHERE id = ?`, id).
		Scan(&snap.ID, &snap.Name, &created, &payloads[0], &payloads[1], &payloads[2], &payloads[3])
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, &domain.NotFoundError{Kind: "snapshot", ID: id}
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select snapshot %s: %w", id, err)
	}
	if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode created_at: %w", err)
	}
	if snap.Documents, err = memory.DecodeBuckets(payloads); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// List implements domain.SnapshotStore.
func (s *Store) List(ctx context.Context) ([]domain.SnapshotSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.SnapshotSummary
	for rows.Next() {
		var (
			sum     domain.SnapshotSummary
			created string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &created); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("decode created_at: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	memory.SortSummaries(out)
	return out, nil
}

// Delete implements domain.SnapshotStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFoundError{Kind: "snapshot", ID: id}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
