// Package datasource parses the CSV files referenced by the context (data and
// metadata) and produced by the inference engine (state estimates, traces,
// designs, covariance matrices). Files are read through a core.Store keyed by
// root-relative paths.
package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"thetacore/internal/blob/core"
	"thetacore/pkg/domain"
)

// Kind selects how a series file is folded into domain.Series.
type Kind int

const (
	// KindData treats the first row as the t0 row of every series.
	KindData Kind = iota
	// KindMetadata keeps every row.
	KindMetadata
)

// Loader reads and parses files from a store.
type Loader struct {
	store core.Store
}

// New returns a loader over store.
func New(store core.Store) *Loader { return &Loader{store: store} }

// Store returns the backing store.
func (l *Loader) Store() core.Store { return l.store }

// Open checks existence and opens key for reading. A missing key yields a
// domain.NotFoundError.
func (l *Loader) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	ok, err := core.Exists(ctx, l.store, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.NotFoundError{Kind: "file", ID: key, Path: key}
	}
	_, rc, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, core.ErrNotExist) {
			return nil, &domain.NotFoundError{Kind: "file", ID: key, Path: key, Cause: err}
		}
		return nil, err
	}
	return rc, nil
}

// ParseFile opens key and parses it as a series file.
func (l *Loader) ParseFile(ctx context.Context, key string, kind Kind) (map[string]domain.Series, error) {
	rc, err := l.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	parsed, err := Parse(rc, kind)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

// ParseSync is the blocking variant used for startup resolution.
func (l *Loader) ParseSync(key string, kind Kind) (map[string]domain.Series, error) {
	return l.ParseFile(context.Background(), key, kind)
}

// Parse reads a `date,<id>,<id>...` CSV into one series per column.
func Parse(r io.Reader, kind Kind) (map[string]domain.Series, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("expected a date column and at least one series column")
	}
	out := make(map[string]domain.Series, len(header)-1)
	start := 0
	t0 := ""
	if kind == KindData {
		if len(rows) == 0 {
			return nil, fmt.Errorf("data file has no t0 row")
		}
		t0 = strings.TrimSpace(rows[0][0])
		start = 1
	}
	for col, id := range header[1:] {
		s := domain.Series{T0: t0, Value: make([]domain.Row, 0, len(rows)-start)}
		for _, rec := range rows[start:] {
			v, err := parseValue(rec[col+1])
			if err != nil {
				return nil, fmt.Errorf("column %s, date %s: %w", id, rec[0], err)
			}
			s.Value = append(s.Value, domain.Row{Date: strings.TrimSpace(rec[0]), Values: []float64{v}})
		}
		out[strings.TrimSpace(id)] = s
	}
	return out, nil
}

// Record is one numeric CSV row keyed by header. Missing cells are NaN.
type Record map[string]float64

// Has reports whether key is present with a non-missing value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && !math.IsNaN(v)
}

// Records reads a headed numeric CSV (hat, trace, design files).
func Records(r io.Reader) ([]Record, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for i, rec := range rows {
		row := make(Record, len(header))
		for j, key := range header {
			v, err := parseValue(rec[j])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, key, err)
			}
			row[strings.TrimSpace(key)] = v
		}
		out = append(out, row)
	}
	return out, nil
}

// RowAt returns the 0-based index-th record; a negative index selects the last row.
func RowAt(r io.Reader, index int) (Record, error) {
	rows, err := Records(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	if index < 0 {
		return rows[len(rows)-1], nil
	}
	if index >= len(rows) {
		return nil, fmt.Errorf("row %d out of range (%d rows)", index, len(rows))
	}
	return rows[index], nil
}

// Matrix reads a headerless numeric CSV into a dense matrix.
func Matrix(r io.Reader) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	cols := len(recs[0])
	data := make([]float64, 0, len(recs)*cols)
	for i, rec := range recs {
		for j, cell := range rec {
			v, err := finite(strings.TrimSpace(cell))
			if err != nil {
				return nil, fmt.Errorf("cell (%d,%d): %w", i, j, err)
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(len(recs), cols, data), nil
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(recs) == 0 {
		return nil, nil, fmt.Errorf("missing header")
	}
	header := recs[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, recs[1:], nil
}

func parseValue(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "na", "nan", "null":
		return math.NaN(), nil
	}
	return finite(cell)
}

// finite parses cell and rejects NaN and infinities; missing values are
// spelled NA or left empty.
func finite(cell string) (float64, error) {
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", cell)
	}
	return v, nil
}
