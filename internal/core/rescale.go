package core

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"thetacore/internal/datasource"
	"thetacore/pkg/domain"
)

// rescale sets an observation parameter so that, per time series, the mean of
// the data over the mean of the estimated output is reproduced, then averages
// the per-series values back onto the parameter's groups.
func (t *Theta) rescale(ctx context.Context, opts MutateOptions, _ *diagSink) error {
	reporting := opts.Rescale[0]
	if !slices.Contains(t.parObs, reporting) {
		return &domain.InvalidArgumentError{Option: "rescale", Value: reporting, Message: "not an observation process parameter"}
	}
	key := DefaultHatFile
	switch {
	case len(opts.Rescale) > 1:
		key = opts.Rescale[1]
	case opts.State != "":
		key = opts.State
	}
	rc, err := t.open(ctx, key)
	if err != nil {
		return err
	}
	hat, err := datasource.Records(rc)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	data, err := t.Load(ctx, domain.DataID)
	if err != nil {
		return err
	}

	p := t.theta.Parameter[reporting]
	if p == nil {
		return &domain.NotFoundError{Kind: "parameter", ID: reporting}
	}
	part, ok := t.partition(p.PartitionID)
	if !ok {
		return &domain.NotFoundError{Kind: "partition", ID: p.PartitionID}
	}
	ts2g, err := t.timeSeriesGroups(p.PartitionID)
	if err != nil {
		return err
	}

	good := make(map[string]float64, len(data))
	for _, ts := range sortedKeys(data) {
		gid, ok := ts2g[ts]
		if !ok {
			continue
		}
		observed := make([]float64, 0, len(data[ts].Value))
		for _, r := range data[ts].Value {
			if v := r.First(); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		estimated := make([]float64, 0, len(hat))
		for _, r := range hat {
			if r.Has(ts) {
				estimated = append(estimated, r[ts])
			}
		}
		if len(estimated) == 0 {
			return &domain.NotFoundError{Kind: "column", ID: ts, Path: key}
		}
		group := p.Groups[gid]
		if group == nil || group.Guess == nil {
			return &domain.NotFoundError{Kind: "group", ID: reporting + ":" + gid}
		}
		meanData, meanHat := stat.Mean(observed, nil), stat.Mean(estimated, nil)
		v := meanData / (meanHat / group.Guess.Value)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &domain.ConstraintError{Parameter: reporting, Group: gid, Message: fmt.Sprintf("rescaled value for %s is not finite", ts)}
		}
		good[ts] = v
	}

	sums := make(map[string]float64, len(part.Group))
	for ts, v := range good {
		sums[ts2g[ts]] += v
	}
	for _, g := range part.Group {
		if group := p.Groups[g.ID]; group != nil && len(g.TimeSeriesID) > 0 {
			group.Guess = domain.Num(sums[g.ID] / float64(len(g.TimeSeriesID)))
		}
	}
	return nil
}
