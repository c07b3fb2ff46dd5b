package domain

import (
	"context"
	"slices"
)

// ModelView provides read-only access to the documents a model rule checks.
type ModelView interface {
	Context() ContextDoc
	Process() ProcessDoc
	Link() LinkDoc
	// Identifiers usable inside expressions besides builtins.
	StateIDs() []string
	ProcessParameterIDs() []string
	ObservationParameterIDs() []string
	MetadataIDs() []string
}

// Rule is one structural check run by the rules engine.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view ModelView) (Result, error)
}

// RulesEngine runs model rules in registration order.
type RulesEngine struct {
	rules []Rule
}

func NewRulesEngine(rules ...Rule) *RulesEngine {
	return &RulesEngine{rules: rules}
}

func (e *RulesEngine) Register(rules ...Rule) {
	e.rules = append(e.rules, rules...)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate executes the registered rules in order and stops at the first
// rule reporting a blocking violation.
func (e *RulesEngine) Evaluate(ctx context.Context, view ModelView) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
		if res.HasBlocking() {
			break
		}
	}
	return combined, nil
}

// Violation is reported by a rule.
type Violation struct {
	Rule     string
	Severity Severity
	Document string
	Path     string
	Message  string
}

// Result aggregates rule violations.
type Result struct {
	Violations []Violation
}

// Merge appends the violations of other.
func (r *Result) Merge(other Result) {
	r.Violations = append(r.Violations, other.Violations...)
}

// Block records a blocking violation.
func (r *Result) Block(rule, document, path, message string) {
	r.Violations = append(r.Violations, Violation{Rule: rule, Severity: SeverityBlock, Document: document, Path: path, Message: message})
}

func (r Result) firstBlocking() (Violation, bool) {
	i := slices.IndexFunc(r.Violations, func(v Violation) bool { return v.Severity == SeverityBlock })
	if i < 0 {
		return Violation{}, false
	}
	return r.Violations[i], true
}

// HasBlocking reports whether any violation blocks.
func (r Result) HasBlocking() bool {
	_, ok := r.firstBlocking()
	return ok
}

// Err converts the first blocking violation into a ValidationError.
func (r Result) Err() error {
	v, ok := r.firstBlocking()
	if !ok {
		return nil
	}
	return &ValidationError{Document: v.Document, Path: v.Path, Message: v.Message}
}
