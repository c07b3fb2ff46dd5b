package core

import (
	"context"
	"fmt"
	"strings"

	"thetacore/pkg/domain"
)

// NewDefaultRulesEngine builds the rules engine with the built-in model checks
// in evaluation order.
func NewDefaultRulesEngine() *domain.RulesEngine {
	return domain.NewRulesEngine(
		NewReactionEndpointsRule(),
		NewExpressionTokensRule(),
		NewWhiteNoiseRule(),
		NewDiffusionRule(),
		NewObservedDefinitionRule(),
	)
}

// evaluateRules runs engine against view and returns the first blocking
// violation as a ValidationError.
func evaluateRules(ctx context.Context, engine *domain.RulesEngine, view domain.ModelView) error {
	res, err := engine.Evaluate(ctx, view)
	if err != nil {
		return err
	}
	return res.Err()
}

// matchReactions returns the indices of process reactions matching ref.
// Several reactions may share endpoints; the rate then disambiguates by
// literal string equality.
func matchReactions(reactions []domain.Reaction, ref domain.ReactionRef) []int {
	var out []int
	for i, r := range reactions {
		if r.From != ref.From || r.To != ref.To {
			continue
		}
		if ref.Rate != "" && stripSpaces(r.Rate) != stripSpaces(ref.Rate) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func stripSpaces(s string) string { return strings.Join(strings.Fields(s), "") }

func describeRef(ref domain.ReactionRef) string {
	if ref.Rate != "" {
		return fmt.Sprintf("%s -> %s (%s)", ref.From, ref.To, ref.Rate)
	}
	return fmt.Sprintf("%s -> %s", ref.From, ref.To)
}

func idSet(lists ...[]string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, l := range lists {
		for _, id := range l {
			out[id] = struct{}{}
		}
	}
	return out
}
