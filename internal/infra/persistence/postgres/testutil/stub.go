// Package testutil provides an in-memory database/sql driver that speaks the
// statements of the postgres snapshot store, so the store can be tested
// without a server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Columns is the column order of the snapshots table.
var Columns = []string{"id", "name", "created_at", "context", "process", "link", "theta"}

// Failure switches returned by the fake connection.
var (
	ErrPing   = errors.New("ping failed")
	ErrBegin  = errors.New("begin failed")
	ErrCommit = errors.New("commit failed")
	ErrExec   = errors.New("exec failed")
)

// SnapshotConn keeps snapshot rows keyed by id and records every statement.
type SnapshotConn struct {
	mu         sync.Mutex
	Statements []string
	rows       map[string][]driver.Value
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	FailExec   bool
}

var registered atomic.Int64

// NewSnapshotDB registers a fresh driver instance and opens a *sql.DB on it.
func NewSnapshotDB() (*sql.DB, *SnapshotConn) {
	conn := &SnapshotConn{rows: make(map[string][]driver.Value)}
	name := fmt.Sprintf("fakepg-%d", registered.Add(1))
	sql.Register(name, fakeDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

// Len returns the number of stored snapshots.
func (c *SnapshotConn) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

type fakeDriver struct{ conn *SnapshotConn }

func (d fakeDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *SnapshotConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepared statements are not supported: %s", query)
}

func (c *SnapshotConn) Close() error { return nil }

func (c *SnapshotConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *SnapshotConn) Ping(context.Context) error {
	if c.FailPing {
		return ErrPing
	}
	return nil
}

func (c *SnapshotConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, ErrBegin
	}
	return fakeTx{conn: c}, nil
}

func (c *SnapshotConn) record(query string) string {
	c.Statements = append(c.Statements, query)
	return strings.ToUpper(strings.Join(strings.Fields(query), " "))
}

// ExecContext handles the table DDL, the snapshot upsert and delete by id.
func (c *SnapshotConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stmt := c.record(query)
	if c.FailExec {
		return nil, ErrExec
	}
	switch {
	case strings.HasPrefix(stmt, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(stmt, "INSERT INTO SNAPSHOTS"):
		if len(args) != len(Columns) {
			return nil, fmt.Errorf("insert expects %d arguments, got %d", len(Columns), len(args))
		}
		row := make([]driver.Value, len(args))
		for i, a := range args {
			row[i] = a.Value
		}
		id, _ := row[0].(string)
		c.rows[id] = row
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(stmt, "DELETE FROM SNAPSHOTS WHERE ID =") && len(args) == 1:
		id, _ := args[0].Value.(string)
		if _, ok := c.rows[id]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(c.rows, id)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext answers SELECT <columns> FROM snapshots [WHERE id = $1] in id order.
func (c *SnapshotConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stmt := c.record(query)
	from := strings.Index(stmt, " FROM SNAPSHOTS")
	if !strings.HasPrefix(stmt, "SELECT ") || from < 0 {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	var idx []int
	for _, col := range strings.Split(stmt[len("SELECT "):from], ",") {
		i := slices.Index(Columns, strings.ToLower(strings.TrimSpace(col)))
		if i < 0 {
			return nil, fmt.Errorf("unknown column %s", col)
		}
		idx = append(idx, i)
	}
	ids := slices.Sorted(maps.Keys(c.rows))
	if strings.Contains(stmt, " WHERE ID =") && len(args) > 0 {
		want, _ := args[0].Value.(string)
		ids = slices.DeleteFunc(ids, func(id string) bool { return id != want })
	}
	out := &fakeRows{}
	for _, i := range idx {
		out.cols = append(out.cols, Columns[i])
	}
	for _, id := range ids {
		vals := make([]driver.Value, len(idx))
		for j, i := range idx {
			vals[j] = c.rows[id][i]
		}
		out.rows = append(out.rows, vals)
	}
	return out, nil
}

type fakeTx struct{ conn *SnapshotConn }

func (t fakeTx) Commit() error {
	if t.conn.FailCommit {
		return ErrCommit
	}
	return nil
}

func (fakeTx) Rollback() error { return nil }

type fakeRows struct {
	cols []string
	rows [][]driver.Value
	next int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}
