package core

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"thetacore/internal/datasource"
	"thetacore/pkg/domain"
)

func (t *Theta) plugTrace(ctx context.Context, opts MutateOptions, d *diagSink) error {
	key := opts.Trace
	if opts.Design != "" {
		key = opts.Design
	}
	row, err := t.readRow(ctx, key, opts.IndexTrace)
	if err != nil {
		return err
	}
	n := plugGuesses(t.theta, row)
	d.Infof("plugged %d guesses from %s", n, key)
	return nil
}

// plugGuesses overwrites the guess of every `par:group` present in row and
// returns how many were set.
func plugGuesses(doc domain.ThetaDoc, row datasource.Record) int {
	var n int
	for _, name := range sortedKeys(doc.Parameter) {
		p := doc.Parameter[name]
		for _, gid := range p.GroupIDs() {
			if key := name + ":" + gid; row.Has(key) {
				p.Groups[gid].Guess = domain.Num(row[key])
				n++
			}
		}
	}
	return n
}

func (t *Theta) readRow(ctx context.Context, key string, index int) (datasource.Record, error) {
	rc, err := t.open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	row, err := datasource.RowAt(rc, index)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return row, nil
}

func (t *Theta) plugHat(ctx context.Context, opts MutateOptions, d *diagSink) error {
	row, err := t.readRow(ctx, opts.State, opts.IndexState)
	if err != nil {
		return err
	}
	popSize, err := t.populationSize(ctx, row, opts.IndexState)
	if err != nil {
		return err
	}
	if opts.Ungroup {
		return t.addUngroupedStates(&t.theta, row, popSize, d)
	}
	for _, sv := range t.parSV {
		p := t.theta.Parameter[sv]
		if p == nil {
			continue
		}
		part, ok := t.partition(p.PartitionID)
		if !ok {
			return &domain.NotFoundError{Kind: "partition", ID: p.PartitionID}
		}
		for _, g := range part.Group {
			group := p.Groups[g.ID]
			if group == nil || len(g.PopulationID) == 0 {
				continue
			}
			var sum float64
			for _, pop := range g.PopulationID {
				v, err := proportion(row, sv, pop, popSize)
				if err != nil {
					return err
				}
				sum += v
			}
			if opts.Preserve && group.Fixed() {
				continue
			}
			group.Guess = domain.Num(sum / float64(len(g.PopulationID)))
		}
	}
	return nil
}

// populationSize wraps Model.PopulationSize and rejects empty populations.
func (t *Theta) populationSize(ctx context.Context, row datasource.Record, index int) (map[string]float64, error) {
	sizes, err := t.PopulationSize(ctx, row, index)
	if err != nil {
		return nil, err
	}
	for _, pop := range sortedKeys(sizes) {
		if sizes[pop] == 0 || math.IsNaN(sizes[pop]) {
			return nil, &domain.ConstraintError{Population: pop, Message: "population size is zero"}
		}
	}
	return sizes, nil
}

func proportion(row datasource.Record, sv, pop string, popSize map[string]float64) (float64, error) {
	col := sv + ":" + pop
	if !row.Has(col) {
		return 0, &domain.NotFoundError{Kind: "column", ID: col}
	}
	return row[col] / popSize[pop], nil
}

// addUngroupedStates moves every state variable of doc onto the
// variable_population partition with one guess per population taken from row.
// Bounds collapse to the widest range, sd to the smallest, and differing
// priors fall back to uniform.
func (t *Theta) addUngroupedStates(doc *domain.ThetaDoc, row datasource.Record, popSize map[string]float64, d *diagSink) error {
	variable := reservedPartitions(t.doc)[domain.PartitionVariablePopulation]
	if doc.Partition == nil {
		doc.Partition = make(map[string]*domain.Partition)
	}
	doc.Partition[domain.PartitionVariablePopulation] = variable
	for _, sv := range t.parSV {
		p := doc.Parameter[sv]
		if p == nil || len(p.Groups) == 0 {
			continue
		}
		pmin, pmax, psd := math.Inf(1), math.Inf(-1), math.Inf(1)
		prior := ""
		identical := true
		for i, gid := range p.GroupIDs() {
			g := p.Groups[gid]
			pmin = math.Min(pmin, g.Min.Value)
			pmax = math.Max(pmax, g.Max.Value)
			psd = math.Min(psd, g.SdTransf.Value)
			if i == 0 {
				prior = g.Prior.Value
			} else if g.Prior.Value != prior {
				identical = false
			}
		}
		if !identical {
			d.Warnf("all the priors for %s are not identical, setting them all to %s", sv, domain.PriorUniform)
			prior = domain.PriorUniform
		}
		groups := make(map[string]*domain.Group, len(variable.Group))
		for _, g := range variable.Group {
			v, err := proportion(row, sv, g.ID, popSize)
			if err != nil {
				return err
			}
			groups[g.ID] = &domain.Group{
				Guess:    domain.Num(v),
				Min:      domain.Num(pmin),
				Max:      domain.Num(pmax),
				SdTransf: domain.Num(psd),
				Prior:    domain.Lbl(prior),
			}
		}
		p.Groups = groups
		p.PartitionID = domain.PartitionVariablePopulation
	}
	return nil
}

func (t *Theta) plugCov(ctx context.Context, opts MutateOptions, _ *diagSink) error {
	rc, err := t.open(ctx, opts.Covariance)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	m, err := datasource.Matrix(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.Covariance, err)
	}
	if r, c := m.Dims(); r != c {
		return domain.Invalidf("theta", "covariance", "matrix from %s has to be square (got %dx%d)", opts.Covariance, r, c)
	}
	t.theta.Covariance = denseRows(m)
	return nil
}

func denseRows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range r {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
