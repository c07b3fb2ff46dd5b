package core

import (
	"fmt"
	"slices"
	"strings"

	"thetacore/pkg/domain"
)

// Theta extends a Model with the parameter specification and its mutation
// operators. A Theta is owned by one caller; Clone before diverging.
type Theta struct {
	*Model

	theta domain.ThetaDoc
}

// NewTheta builds a theta engine over the four documents.
func NewTheta(ctxDoc domain.ContextDoc, process domain.ProcessDoc, link domain.LinkDoc, theta domain.ThetaDoc, opts ...Option) *Theta {
	return &Theta{Model: NewModel(ctxDoc, process, link, opts...), theta: theta.Clone()}
}

// Clone returns an independent deep copy sharing only options.
func (t *Theta) Clone() *Theta {
	m := &Model{
		Context:        &Context{doc: t.doc.Clone(), opts: t.opts},
		process:        t.process.Clone(),
		link:           t.link.Clone(),
		rules:          t.rules,
		parSV:          t.ParSV(),
		parProc:        t.ParProc(),
		parObs:         t.ParObs(),
		popSizeEqSumSV: t.popSizeEqSumSV,
	}
	return &Theta{Model: m, theta: t.theta.Clone()}
}

// Doc returns a deep copy of the theta document.
func (t *Theta) Doc() domain.ThetaDoc { return t.theta.Clone() }

// Snapshot returns all four documents.
func (t *Theta) Snapshot() domain.Documents {
	docs := t.Model.Snapshot()
	th := t.theta.Clone()
	docs.Theta = &th
	return docs
}

// Group returns the group of parameter par.
func (t *Theta) Group(par, group string) (*domain.Group, error) {
	p, ok := t.theta.Parameter[par]
	if !ok || p == nil {
		return nil, &domain.NotFoundError{Kind: "parameter", ID: par}
	}
	g, ok := p.Groups[group]
	if !ok || g == nil {
		return nil, &domain.NotFoundError{Kind: "group", ID: par + ":" + group}
	}
	return g, nil
}

// Merge copies group values of other into t for every parameter and group
// present in both, along with type, unit and transformation. t keeps its own
// grouping.
func (t *Theta) Merge(other domain.ThetaDoc) {
	for name, src := range other.Parameter {
		dst, ok := t.theta.Parameter[name]
		if !ok || dst == nil || src == nil {
			continue
		}
		for gid, sg := range src.Groups {
			if _, ok := dst.Groups[gid]; ok && sg != nil {
				dst.Groups[gid] = sg.Clone()
			}
		}
		if src.Type != "" {
			dst.Type = src.Type
		}
		if src.Unit != "" {
			dst.Unit = src.Unit
		}
		if src.Transformation != "" {
			dst.Transformation = src.Transformation
		}
	}
}

// requireExpanded fails unless every parameter carries complete groups
// matching the groups of its partition.
func (t *Theta) requireExpanded() error {
	for _, name := range sortedKeys(t.theta.Parameter) {
		p := t.theta.Parameter[name]
		if p == nil || !p.Expanded() {
			return domain.Invalidf("theta", "parameter "+name, "is not expanded, run adapt first")
		}
		mandated, ok := t.mandatedGroups(p.PartitionID)
		if !ok {
			return domain.Invalidf("theta", "parameter "+name, "partition %q is not defined", p.PartitionID)
		}
		want := slices.Sorted(slices.Values(mandated))
		if groups := p.GroupIDs(); !slices.Equal(want, groups) {
			return domain.Invalidf("theta", "parameter "+name, "groups [%s] do not match partition %s [%s], run adapt first",
				strings.Join(groups, ","), p.PartitionID, strings.Join(want, ","))
		}
		for _, gid := range p.GroupIDs() {
			if g := p.Groups[gid]; g == nil || !g.Complete() {
				return domain.Invalidf("theta", fmt.Sprintf("parameter %s group %s", name, gid), "is incomplete, run adapt first")
			}
		}
	}
	return nil
}
