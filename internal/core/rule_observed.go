package core

import (
	"context"
	"fmt"
	"slices"

	"thetacore/pkg/domain"
)

// NewObservedDefinitionRule checks that observed quantities reference
// declared states or single reactions, never mix incidence with prevalence,
// and map onto time series of the matching type.
func NewObservedDefinitionRule() domain.Rule {
	return observedDefinitionRule{}
}

type observedDefinitionRule struct{}

func (observedDefinitionRule) Name() string { return "observed_definition" }

func (r observedDefinitionRule) Evaluate(_ context.Context, view domain.ModelView) (domain.Result, error) {
	process := view.Process()
	states := view.StateIDs()
	series := make(map[string]domain.TimeSeries)
	for _, ts := range view.Context().TimeSeries {
		series[ts.ID] = ts
	}
	res := domain.Result{}
	for i, obs := range view.Link().Observed {
		path := fmt.Sprintf("observed[%d]", i)
		if len(obs.Definition) == 0 {
			res.Block(r.Name(), "link", path, "definition has to be a non empty list")
			return res, nil
		}
		incidence := obs.Definition[0].Incidence()
		for j, def := range obs.Definition {
			dpath := fmt.Sprintf("%s.definition[%d]", path, j)
			if def.Incidence() != incidence {
				res.Block(r.Name(), "link", dpath, fmt.Sprintf("%s mixes incidence and prevalence", obs.ID))
				return res, nil
			}
			if !def.Incidence() {
				if !slices.Contains(states, def.State) {
					res.Block(r.Name(), "link", dpath, fmt.Sprintf("%q is not a declared state", def.State))
					return res, nil
				}
				continue
			}
			switch n := len(matchReactions(process.Model, *def.Reaction)); {
			case n == 0:
				res.Block(r.Name(), "link", dpath, fmt.Sprintf("no reaction matches %s", describeRef(*def.Reaction)))
				return res, nil
			case n > 1:
				res.Block(r.Name(), "link", dpath, fmt.Sprintf("%d reactions match %s, add a rate to disambiguate", n, describeRef(*def.Reaction)))
				return res, nil
			}
		}
		want := domain.TimeSeriesPrevalence
		if incidence {
			want = domain.TimeSeriesIncidence
		}
		for _, id := range obs.TimeSeriesID {
			ts, ok := series[id]
			if !ok {
				res.Block(r.Name(), "link", path, fmt.Sprintf("time series %q is not declared in the context", id))
				return res, nil
			}
			if ts.Type() != want {
				res.Block(r.Name(), "link", path, fmt.Sprintf("time series %s has type %s but %s is %s", id, ts.Type(), obs.ID, want))
				return res, nil
			}
		}
	}
	return res, nil
}
