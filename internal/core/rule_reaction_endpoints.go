package core

import (
	"context"
	"fmt"

	"thetacore/pkg/domain"
)

// NewReactionEndpointsRule checks that every reaction connects declared
// states or the unbounded sentinel.
func NewReactionEndpointsRule() domain.Rule {
	return reactionEndpointsRule{}
}

type reactionEndpointsRule struct{}

func (reactionEndpointsRule) Name() string { return "reaction_endpoints" }

func (r reactionEndpointsRule) Evaluate(_ context.Context, view domain.ModelView) (domain.Result, error) {
	states := idSet(view.StateIDs())
	res := domain.Result{}
	for i, reaction := range view.Process().Model {
		path := fmt.Sprintf("model[%d]", i)
		for _, end := range []string{reaction.From, reaction.To} {
			if end == domain.Unbounded {
				continue
			}
			if _, ok := states[end]; !ok {
				res.Block(r.Name(), "process", path, fmt.Sprintf("%q is not a declared state (nor %s)", end, domain.Unbounded))
				return res, nil
			}
		}
		if reaction.Rate == "" {
			res.Block(r.Name(), "process", path, "rate is missing")
			return res, nil
		}
	}
	return res, nil
}
