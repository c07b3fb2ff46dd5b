package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DataID is the sentinel identifier of the data entity when loading sources.
const DataID = "data"

// Time-series types.
const (
	TimeSeriesIncidence  = "inc"
	TimeSeriesPrevalence = "prev"
)

// ContextDoc is the population/data context document.
type ContextDoc struct {
	Population []Population     `json:"population"`
	TimeSeries []TimeSeries     `json:"time_series"`
	Data       *DataEntity      `json:"data,omitempty"`
	Metadata   []MetadataEntity `json:"metadata,omitempty"`
}

// Population is a `<city>__<age>` unit.
type Population struct {
	ID      string `json:"id"`
	Comment string `json:"comment,omitempty"`
}

// TimeSeries is a `<name>__<stream>__<type>` observed series.
type TimeSeries struct {
	ID           string   `json:"id"`
	PopulationID []string `json:"population_id"`
}

// Type returns the trailing type token of the id (inc or prev).
func (ts TimeSeries) Type() string {
	parts := strings.Split(ts.ID, "__")
	return parts[len(parts)-1]
}

// DataEntity holds the observed data source.
type DataEntity struct {
	Source Source `json:"source"`
}

// MetadataEntity holds a covariate source (population sizes, fixed parameters).
type MetadataEntity struct {
	ID     string `json:"id"`
	Source Source `json:"source"`
}

// Source is either an unresolved path or a parsed mapping from population or
// time-series id to series.
type Source struct {
	Path   string
	Series map[string]Series
}

// Resolved reports whether the source has been parsed.
func (s Source) Resolved() bool { return s.Path == "" && s.Series != nil }

// MarshalJSON writes a string for unresolved sources and an object otherwise.
func (s Source) MarshalJSON() ([]byte, error) {
	if !s.Resolved() {
		return json.Marshal(s.Path)
	}
	return json.Marshal(s.Series)
}

// UnmarshalJSON accepts a string path or a resolved mapping.
func (s *Source) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var p string
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*s = Source{Path: p}
		return nil
	}
	var m map[string]Series
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("source must be a path or a mapping: %w", err)
	}
	if m == nil {
		m = map[string]Series{}
	}
	*s = Source{Series: m}
	return nil
}

// Clone returns a deep copy.
func (s Source) Clone() Source {
	if s.Series == nil {
		return Source{Path: s.Path}
	}
	out := Source{Series: make(map[string]Series, len(s.Series))}
	for k, v := range s.Series {
		out.Series[k] = v.Clone()
	}
	return out
}

// Series is a time-indexed sequence. For data sources T0 is the start date and
// precedes the first row.
type Series struct {
	T0    string `json:"t0,omitempty"`
	Value []Row  `json:"value"`
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	out := Series{T0: s.T0, Value: make([]Row, len(s.Value))}
	for i, r := range s.Value {
		out.Value[i] = Row{Date: r.Date, Values: append([]float64(nil), r.Values...)}
	}
	return out
}

// Dates returns the row dates in order.
func (s Series) Dates() []string {
	out := make([]string, len(s.Value))
	for i, r := range s.Value {
		out[i] = r.Date
	}
	return out
}

// Row is `[date, v1, v2, ...]`; missing values are NaN and serialise as null.
type Row struct {
	Date   string
	Values []float64
}

// First returns the first value or NaN.
func (r Row) First() float64 {
	if len(r.Values) == 0 {
		return math.NaN()
	}
	return r.Values[0]
}

// MarshalJSON writes the row as a JSON array.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(r.Values)+1)
	out = append(out, r.Date)
	for _, v := range r.Values {
		if math.IsNaN(v) {
			out = append(out, nil)
			continue
		}
		out = append(out, v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads `[date, v1, ...]` with null for missing values.
func (r *Row) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty row")
	}
	var date string
	if err := json.Unmarshal(raw[0], &date); err != nil {
		return fmt.Errorf("row date must be a string: %w", err)
	}
	vals := make([]float64, 0, len(raw)-1)
	for _, rv := range raw[1:] {
		if bytes.Equal(bytes.TrimSpace(rv), []byte("null")) {
			vals = append(vals, math.NaN())
			continue
		}
		var f float64
		if err := json.Unmarshal(rv, &f); err != nil {
			return fmt.Errorf("row value must be a number or null: %w", err)
		}
		vals = append(vals, f)
	}
	*r = Row{Date: date, Values: vals}
	return nil
}

// PopulationIDs returns population ids in declaration order.
func (c ContextDoc) PopulationIDs() []string {
	out := make([]string, len(c.Population))
	for i, p := range c.Population {
		out[i] = p.ID
	}
	return out
}

// TimeSeriesIDs returns time-series ids in declaration order.
func (c ContextDoc) TimeSeriesIDs() []string {
	out := make([]string, len(c.TimeSeries))
	for i, ts := range c.TimeSeries {
		out[i] = ts.ID
	}
	return out
}

// MetadataIDs returns metadata ids in declaration order.
func (c ContextDoc) MetadataIDs() []string {
	out := make([]string, len(c.Metadata))
	for i, m := range c.Metadata {
		out[i] = m.ID
	}
	return out
}

// Clone returns a deep copy of the document.
func (c ContextDoc) Clone() ContextDoc {
	out := ContextDoc{
		Population: append([]Population(nil), c.Population...),
		TimeSeries: make([]TimeSeries, len(c.TimeSeries)),
	}
	for i, ts := range c.TimeSeries {
		out.TimeSeries[i] = TimeSeries{ID: ts.ID, PopulationID: append([]string(nil), ts.PopulationID...)}
	}
	if c.Data != nil {
		out.Data = &DataEntity{Source: c.Data.Source.Clone()}
	}
	if c.Metadata != nil {
		out.Metadata = make([]MetadataEntity, len(c.Metadata))
		for i, m := range c.Metadata {
			out.Metadata[i] = MetadataEntity{ID: m.ID, Source: m.Source.Clone()}
		}
	}
	return out
}
