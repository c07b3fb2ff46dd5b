package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"thetacore/internal/datasource"
	"thetacore/pkg/domain"
)

const dateLayout = "2006-01-02"

// Context owns the population, time-series, data and metadata definitions.
// A Context is not safe for concurrent use; ResolveSync and Resolve must not
// be mixed on the same instance.
type Context struct {
	doc  domain.ContextDoc
	opts *options
}

// NewContext copies doc into a new Context.
func NewContext(doc domain.ContextDoc, opts ...Option) *Context {
	return &Context{doc: doc.Clone(), opts: newOptions(opts)}
}

// Snapshot returns a deep copy of the context document.
func (c *Context) Snapshot() domain.ContextDoc { return c.doc.Clone() }

// ResolveSync replaces every path source with its parsed content, blocking,
// metadata first then data.
func (c *Context) ResolveSync() error {
	loader, err := c.opts.dataLoader()
	if err != nil {
		return err
	}
	for i := range c.doc.Metadata {
		m := &c.doc.Metadata[i]
		if m.Source.Resolved() {
			continue
		}
		series, err := loader.ParseSync(m.Source.Path, datasource.KindMetadata)
		if err != nil {
			return sourceError(m.ID, m.Source.Path, err)
		}
		m.Source = domain.Source{Series: series}
	}
	if c.doc.Data != nil && !c.doc.Data.Source.Resolved() {
		series, err := loader.ParseSync(c.doc.Data.Source.Path, datasource.KindData)
		if err != nil {
			return sourceError(domain.DataID, c.doc.Data.Source.Path, err)
		}
		c.doc.Data.Source = domain.Source{Series: series}
	}
	return nil
}

// Resolve resolves metadata entries concurrently, then the data entry. Each
// goroutine writes only its own metadata slot.
func (c *Context) Resolve(ctx context.Context) error {
	loader, err := c.opts.dataLoader()
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range c.doc.Metadata {
		m := &c.doc.Metadata[i]
		if m.Source.Resolved() {
			continue
		}
		g.Go(func() error {
			series, err := loader.ParseFile(gctx, m.Source.Path, datasource.KindMetadata)
			if err != nil {
				return sourceError(m.ID, m.Source.Path, err)
			}
			m.Source = domain.Source{Series: series}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if c.doc.Data != nil && !c.doc.Data.Source.Resolved() {
		series, err := loader.ParseFile(ctx, c.doc.Data.Source.Path, datasource.KindData)
		if err != nil {
			return sourceError(domain.DataID, c.doc.Data.Source.Path, err)
		}
		c.doc.Data.Source = domain.Source{Series: series}
	}
	return nil
}

// Load returns the parsed source of metadata id (or of the data entity for
// domain.DataID), resolving it on demand.
func (c *Context) Load(ctx context.Context, id string) (map[string]domain.Series, error) {
	var src *domain.Source
	kind := datasource.KindMetadata
	if id == domain.DataID {
		if c.doc.Data == nil {
			return nil, &domain.NotFoundError{Kind: "data", ID: id}
		}
		src, kind = &c.doc.Data.Source, datasource.KindData
	} else {
		for i := range c.doc.Metadata {
			if c.doc.Metadata[i].ID == id {
				src = &c.doc.Metadata[i].Source
				break
			}
		}
		if src == nil {
			return nil, &domain.NotFoundError{Kind: "metadata", ID: id}
		}
	}
	if src.Resolved() {
		return src.Series, nil
	}
	loader, err := c.opts.dataLoader()
	if err != nil {
		return nil, err
	}
	series, err := loader.ParseFile(ctx, src.Path, kind)
	if err != nil {
		return nil, sourceError(id, src.Path, err)
	}
	*src = domain.Source{Series: series}
	return series, nil
}

func sourceError(id, path string, err error) error {
	if nf, ok := err.(*domain.NotFoundError); ok {
		return &domain.NotFoundError{Kind: "data", ID: id, Path: path, Cause: nf.Cause}
	}
	return fmt.Errorf("resolve %s (%s): %w", id, path, err)
}

// Validate checks structural consistency of the context. It never mutates.
func (c *Context) Validate() error {
	doc := c.doc
	var missing []string
	if len(doc.Population) == 0 {
		missing = append(missing, "population")
	}
	if len(doc.TimeSeries) == 0 {
		missing = append(missing, "time_series")
	}
	if doc.Data == nil || (!doc.Data.Source.Resolved() && doc.Data.Source.Path == "") {
		missing = append(missing, "data")
	}
	if len(missing) > 0 {
		return domain.Invalidf("context", "", "%s properties are missing", strings.Join(missing, ","))
	}

	popIDs := make(map[string]struct{}, len(doc.Population))
	for i, p := range doc.Population {
		path := fmt.Sprintf("population[%d]", i)
		parts := strings.Split(p.ID, "__")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return domain.Invalidf("context", path, "id %q has to be of the form <city>__<age>", p.ID)
		}
		if _, dup := popIDs[p.ID]; dup {
			return domain.Invalidf("context", path, "duplicated id %q", p.ID)
		}
		popIDs[p.ID] = struct{}{}
	}

	tsIDs := make(map[string]struct{}, len(doc.TimeSeries))
	for i, ts := range doc.TimeSeries {
		path := fmt.Sprintf("time_series[%d]", i)
		parts := strings.Split(ts.ID, "__")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return domain.Invalidf("context", path, "id %q has to be of the form <name>__<stream>__<type>", ts.ID)
		}
		if t := parts[2]; t != domain.TimeSeriesIncidence && t != domain.TimeSeriesPrevalence {
			return domain.Invalidf("context", path, "type %q has to be inc or prev", t)
		}
		if _, dup := tsIDs[ts.ID]; dup {
			return domain.Invalidf("context", path, "duplicated id %q", ts.ID)
		}
		tsIDs[ts.ID] = struct{}{}
		if len(ts.PopulationID) == 0 {
			return domain.Invalidf("context", path, "population_id has to be a non empty list")
		}
		for _, pid := range ts.PopulationID {
			if _, ok := popIDs[pid]; !ok {
				return domain.Invalidf("context", path, "population_id %q is not a declared population", pid)
			}
		}
	}

	for i, m := range doc.Metadata {
		if m.ID == "" {
			return domain.Invalidf("context", fmt.Sprintf("metadata[%d]", i), "id is missing")
		}
		if !m.Source.Resolved() && m.Source.Path == "" {
			return domain.Invalidf("context", fmt.Sprintf("metadata[%d]", i), "source is missing")
		}
	}

	if !doc.Data.Source.Resolved() {
		return nil
	}
	first, last, err := validateData(doc.Data.Source.Series, doc.TimeSeriesIDs())
	if err != nil {
		return err
	}
	for _, m := range doc.Metadata {
		if !m.Source.Resolved() {
			continue
		}
		if err := validateMetadata(m, popIDs, tsIDs, first, last); err != nil {
			return err
		}
	}
	return nil
}

// validateData returns t0 and the last data date.
func validateData(series map[string]domain.Series, tsIDs []string) (time.Time, time.Time, error) {
	var zero time.Time
	for _, id := range tsIDs {
		if _, ok := series[id]; !ok {
			return zero, zero, domain.Invalidf("context", "data", "time series %s has no data", id)
		}
	}
	for id := range series {
		if !slices.Contains(tsIDs, id) {
			return zero, zero, domain.Invalidf("context", "data", "%s is not a declared time series", id)
		}
	}
	ref := series[tsIDs[0]]
	refDates := ref.Dates()
	if len(refDates) == 0 {
		return zero, zero, domain.Invalidf("context", "data."+tsIDs[0], "value has to be a non empty list")
	}
	for _, id := range tsIDs {
		s := series[id]
		path := "data." + id
		if s.T0 == "" {
			return zero, zero, domain.Invalidf("context", path, "t0 is missing")
		}
		if s.T0 != ref.T0 {
			return zero, zero, domain.Invalidf("context", path, "t0 %s differs from %s", s.T0, ref.T0)
		}
		if len(s.Value) != len(refDates) {
			return zero, zero, domain.Invalidf("context", path, "has %d values, expected %d", len(s.Value), len(refDates))
		}
		for i, r := range s.Value {
			if r.Date != refDates[i] {
				return zero, zero, domain.Invalidf("context", path, "date %s at row %d differs from %s", r.Date, i, refDates[i])
			}
		}
	}
	t0, err := time.Parse(dateLayout, ref.T0)
	if err != nil {
		return zero, zero, domain.Invalidf("context", "data", "t0 %q is not a YYYY-MM-DD date", ref.T0)
	}
	prev := t0
	for i, d := range refDates {
		cur, err := time.Parse(dateLayout, d)
		if err != nil {
			return zero, zero, domain.Invalidf("context", "data", "date %q is not a YYYY-MM-DD date", d)
		}
		if !cur.After(prev) {
			if i == 0 {
				return zero, zero, domain.Invalidf("context", "data", "t0 (%s) has to be before the first data point (%s)", ref.T0, d)
			}
			return zero, zero, domain.Invalidf("context", "data", "dates are not increasing at %s", d)
		}
		prev = cur
	}
	return t0, prev, nil
}

func validateMetadata(m domain.MetadataEntity, popIDs, tsIDs map[string]struct{}, first, last time.Time) error {
	path := "metadata." + m.ID
	for key, s := range m.Source.Series {
		_, isPop := popIDs[key]
		_, isTS := tsIDs[key]
		if !isPop && !isTS {
			return domain.Invalidf("context", path, "%s is neither a population nor a time series", key)
		}
		if len(s.Value) == 0 {
			return domain.Invalidf("context", path+"."+key, "value has to be a non empty list")
		}
		start, err := time.Parse(dateLayout, s.Value[0].Date)
		if err != nil {
			return domain.Invalidf("context", path+"."+key, "date %q is not a YYYY-MM-DD date", s.Value[0].Date)
		}
		end, err := time.Parse(dateLayout, s.Value[len(s.Value)-1].Date)
		if err != nil {
			return domain.Invalidf("context", path+"."+key, "date %q is not a YYYY-MM-DD date", s.Value[len(s.Value)-1].Date)
		}
		if start.After(first) || end.Before(last) {
			return domain.Invalidf("context", path+"."+key, "covers %s..%s, which does not include the data range %s..%s",
				start.Format(dateLayout), end.Format(dateLayout), first.Format(dateLayout), last.Format(dateLayout))
		}
	}
	return nil
}
