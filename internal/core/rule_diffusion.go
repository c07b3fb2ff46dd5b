package core

import (
	"context"
	"fmt"
	"slices"

	"thetacore/pkg/domain"
)

// NewDiffusionRule checks driftless diffusions on declared parameters.
func NewDiffusionRule() domain.Rule {
	return diffusionRule{}
}

type diffusionRule struct{}

func (diffusionRule) Name() string { return "diffusion" }

func (r diffusionRule) Evaluate(_ context.Context, view domain.ModelView) (domain.Result, error) {
	params := view.ProcessParameterIDs()
	res := domain.Result{}
	for i, d := range view.Process().Diffusion {
		path := fmt.Sprintf("diffusion[%d]", i)
		switch {
		case !slices.Contains(params, d.Parameter):
			res.Block(r.Name(), "process", path, fmt.Sprintf("parameter %q is not declared", d.Parameter))
		case d.Drift != 0:
			res.Block(r.Name(), "process", path, fmt.Sprintf("drift has to be 0 (got %g)", d.Drift))
		case !slices.Contains(params, d.Volatility):
			res.Block(r.Name(), "process", path, fmt.Sprintf("volatility %q is not a declared parameter", d.Volatility))
		default:
			continue
		}
		return res, nil
	}
	return res, nil
}
