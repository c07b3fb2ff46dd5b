package core

import (
	"fmt"
	"math"

	"thetacore/pkg/domain"
)

// normalizeSlack is the share of every population left to the remainder
// when the state variables are renormalized.
const normalizeSlack = 0.01

// Normalize enforces that the state variables of every population sum to
// strictly less than 1. Only free (sd_transf > 0) groups are rescaled; a
// population whose fixed groups already reach 1 is a ConstraintError.
func (t *Theta) Normalize() (domain.Diagnostics, error) {
	var diags domain.Diagnostics
	if err := t.requireExpanded(); err != nil {
		return diags, err
	}
	err := t.normalize(&diagSink{items: &diags, log: t.opts.logger})
	return diags, err
}

type svMember struct {
	par   string
	group string
	g     *domain.Group
	tr    Transform
}

func (t *Theta) normalize(d *diagSink) error {
	for _, pop := range t.doc.PopulationIDs() {
		members, err := t.populationMembers(pop)
		if err != nil {
			return err
		}
		var fixed, free float64
		for _, m := range members {
			if m.g.Fixed() {
				fixed += m.g.Guess.Value
			} else {
				free += m.g.Guess.Value
			}
		}
		if fixed >= 1 {
			return &domain.ConstraintError{Population: pop,
				Message: fmt.Sprintf("fixed state variables sum to %g, the simplex constraint cannot be satisfied", fixed)}
		}
		if fixed+free < 1 {
			continue
		}
		f := (1 - fixed) / (free + normalizeSlack)
		d.Warnf("sum of the state variables of %s equals %g, renormalizing the free part by %g", pop, fixed+free, 1/f)
		for _, m := range members {
			if m.g.Fixed() {
				continue
			}
			a, b := m.g.Min.Value, m.g.Max.Value
			y := m.g.Guess.Value * f
			if !m.tr.Admits(y, a, b) || math.IsNaN(m.tr.Forward(y, a, b)) || (m.g.Prior.Value == domain.PriorUniform && (y < a || y > b)) {
				return &domain.ConstraintError{Parameter: m.par, Group: m.group,
					Message: fmt.Sprintf("normalized value %g is outside [%g, %g]", y, a, b)}
			}
			m.g.Guess = domain.Num(y)
		}
	}
	return nil
}

// populationMembers returns the state-variable group assigned to pop for
// each state variable.
func (t *Theta) populationMembers(pop string) ([]svMember, error) {
	var out []svMember
	for _, sv := range t.parSV {
		p := t.theta.Parameter[sv]
		if p == nil {
			continue
		}
		p2g, err := t.populationGroups(p.PartitionID)
		if err != nil {
			return nil, err
		}
		gid, ok := p2g[pop]
		if !ok {
			continue
		}
		g := p.Groups[gid]
		if g == nil {
			return nil, &domain.NotFoundError{Kind: "group", ID: sv + ":" + gid}
		}
		tr, err := LookupTransform(p.Transformation)
		if err != nil {
			tr, _ = LookupTransform(TransformIdentity)
		}
		out = append(out, svMember{par: sv, group: gid, g: g, tr: tr})
	}
	return out, nil
}
