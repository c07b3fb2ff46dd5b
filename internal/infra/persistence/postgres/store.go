// Package postgres persists document snapshots in Postgres, one row per
// snapshot with one JSONB column per document.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"thetacore/internal/infra/persistence/memory"
	"thetacore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.SnapshotStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/thetacore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a Postgres-backed snapshot store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens a store using dsn (falls back to defaultDSN) and ensures the
// snapshot table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		context JSONB NOT NULL,
		process JSONB NOT NULL,
		link JSONB NOT NULL,
		theta JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure snapshots table: %w", err)
	}
	return nil
}

// Save implements domain.SnapshotStore.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	snap = memory.Prepare(snap, s.now)
	payloads, err := memory.EncodeBuckets(snap.Documents)
	if err != nil {
		return domain.Snapshot{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots (id, name, created_at, context, process, link, theta) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, created_at=EXCLUDED.created_at,
		context=EXCLUDED.context, process=EXCLUDED.process, link=EXCLUDED.link, theta=EXCLUDED.theta`,
		snap.ID, snap.Name, snap.CreatedAt.Format(time.RFC3339Nano), payloads[0], payloads[1], payloads[2], payloads[3]); err != nil {
		return domain.Snapshot{}, fmt.Errorf("upsert snapshot %s: %w", snap.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return snap, nil
}

// Load implements domain.SnapshotStore.
func (s *Store) Load(ctx context.Context, id string) (domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at, context, process, link, theta FROM snapshots WHERE id = $1`, id)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select snapshot %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			snap     domain.Snapshot
			created  string
			payloads = make([][]byte, len(memory.Buckets))
		)
		if err := rows.Scan(&snap.ID, &snap.Name, &created, &payloads[0], &payloads[1], &payloads[2], &payloads[3]); err != nil {
			return domain.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.ID != id {
			continue
		}
		if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode created_at: %w", err)
		}
		if snap.Documents, err = memory.DecodeBuckets(payloads); err != nil {
			return domain.Snapshot{}, err
		}
		return snap, nil
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("iterate snapshots: %w", err)
	}
	return domain.Snapshot{}, &domain.NotFoundError{Kind: "snapshot", ID: id}
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
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("decode created_at: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	memory.SortSummaries(out)
	return out, nil
}

// Delete implements domain.SnapshotStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
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

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
