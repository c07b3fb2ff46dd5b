package core

import (
	"context"
	"fmt"
	"io"
	"math"

	"thetacore/internal/datasource"
	"thetacore/pkg/domain"
)

// Predict joins the state estimate rows at time n with the trace rows sharing
// their `index` column. For every joined pair it returns a clone of t whose
// guesses come from the trace row, then from the state row, with the state
// variables ungrouped onto variable_population and set from the state row.
// Both streams are read to completion first.
func (t *Theta) Predict(ctx context.Context, n int, states, trace io.Reader) ([]*Theta, error) {
	if err := t.requireExpanded(); err != nil {
		return nil, err
	}
	stateRows, err := datasource.Records(states)
	if err != nil {
		return nil, fmt.Errorf("read states: %w", err)
	}
	traceRows, err := datasource.Records(trace)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	byIndex := make(map[float64]datasource.Record)
	for _, row := range stateRows {
		if row.Has("time") && row["time"] == float64(n) && row.Has("index") {
			if _, dup := byIndex[math.Trunc(row["index"])]; !dup {
				byIndex[math.Trunc(row["index"])] = row
			}
		}
	}
	if len(byIndex) == 0 {
		return nil, &domain.NotFoundError{Kind: "state", ID: fmt.Sprintf("time %d", n)}
	}

	var out []*Theta
	for _, row := range traceRows {
		if !row.Has("index") {
			continue
		}
		state, ok := byIndex[math.Trunc(row["index"])]
		if !ok {
			continue
		}
		clone := t.Clone()
		plugGuesses(clone.theta, row)
		plugGuesses(clone.theta, state)
		popSize, err := clone.populationSize(ctx, state, n)
		if err != nil {
			return nil, err
		}
		sink := &diagSink{items: &domain.Diagnostics{}, log: t.opts.logger}
		if err := clone.addUngroupedStates(&clone.theta, state, popSize, sink); err != nil {
			return nil, err
		}
		out = append(out, clone)
	}
	if len(out) == 0 {
		return nil, &domain.NotFoundError{Kind: "trace", ID: fmt.Sprintf("rows matching the states at time %d", n)}
	}
	return out, nil
}
