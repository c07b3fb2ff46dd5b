package core

import (
	"context"
	"fmt"

	"thetacore/pkg/domain"
)

// NewExpressionTokensRule rejects rate, mean and variance expressions that
// reference anything besides declared ids, numbers and builtins.
func NewExpressionTokensRule() domain.Rule {
	return expressionTokensRule{}
}

type expressionTokensRule struct{}

func (expressionTokensRule) Name() string { return "expression_tokens" }

func (r expressionTokensRule) Evaluate(_ context.Context, view domain.ModelView) (domain.Result, error) {
	known := idSet(view.StateIDs(), view.ProcessParameterIDs(), view.ObservationParameterIDs(), view.MetadataIDs())
	res := domain.Result{}
	check := func(document, path, expr string) bool {
		if expr == "" {
			res.Block(r.Name(), document, path, "expression is empty")
			return false
		}
		for _, tok := range ParseRate(expr) {
			if tok.Kind == TokenOperator || tok.IsNumber() || IsBuiltin(tok.Value) {
				continue
			}
			if _, ok := known[tok.Value]; ok {
				continue
			}
			res.Block(r.Name(), document, path, fmt.Sprintf("unknown term %q in %q", tok.Value, expr))
			return false
		}
		return true
	}
	for i, reaction := range view.Process().Model {
		if !check("process", fmt.Sprintf("model[%d].rate", i), reaction.Rate) {
			return res, nil
		}
	}
	for i, obs := range view.Link().Observation {
		if !check("link", fmt.Sprintf("observation[%d].model.mean", i), obs.Model.Mean) {
			return res, nil
		}
		if !check("link", fmt.Sprintf("observation[%d].model.var", i), obs.Model.Var) {
			return res, nil
		}
	}
	return res, nil
}
