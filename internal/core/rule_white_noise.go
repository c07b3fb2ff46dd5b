package core

import (
	"context"
	"fmt"
	"slices"

	"thetacore/pkg/domain"
)

// NewWhiteNoiseRule checks that every noisy reaction reference resolves to
// exactly one reaction and that intensities are declared parameters.
func NewWhiteNoiseRule() domain.Rule {
	return whiteNoiseRule{}
}

type whiteNoiseRule struct{}

func (whiteNoiseRule) Name() string { return "white_noise" }

func (r whiteNoiseRule) Evaluate(_ context.Context, view domain.ModelView) (domain.Result, error) {
	process := view.Process()
	params := view.ProcessParameterIDs()
	res := domain.Result{}
	for i, wn := range process.WhiteNoise {
		path := fmt.Sprintf("white_noise[%d]", i)
		if !slices.Contains(params, wn.Sd) {
			res.Block(r.Name(), "process", path, fmt.Sprintf("sd %q is not a declared parameter", wn.Sd))
			return res, nil
		}
		if len(wn.Reaction) == 0 {
			res.Block(r.Name(), "process", path, "reaction has to be a non empty list")
			return res, nil
		}
		for j, ref := range wn.Reaction {
			switch n := len(matchReactions(process.Model, ref)); {
			case n == 0:
				res.Block(r.Name(), "process", fmt.Sprintf("%s.reaction[%d]", path, j),
					fmt.Sprintf("no reaction matches %s", describeRef(ref)))
				return res, nil
			case n > 1:
				res.Block(r.Name(), "process", fmt.Sprintf("%s.reaction[%d]", path, j),
					fmt.Sprintf("%d reactions match %s, add a rate to disambiguate", n, describeRef(ref)))
				return res, nil
			}
		}
	}
	return res, nil
}
