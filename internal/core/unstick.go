package core

import "thetacore/pkg/domain"

// unstick moves guesses sitting on a bound they must respect inward by
// fraction mul of the span. Fixed groups are left alone. A fraction outside
// [0,1] is coerced to 0 with a warning.
func (t *Theta) unstick(mul float64, d *diagSink) {
	if !(mul >= 0 && mul <= 1) {
		d.Warnf("invalid unstick fraction %g, it has to be in [0,1]; using 0", mul)
		mul = 0
	}
	for _, name := range sortedKeys(t.theta.Parameter) {
		p := t.theta.Parameter[name]
		tr, err := LookupTransform(p.Transformation)
		if err != nil {
			tr, _ = LookupTransform(TransformIdentity)
		}
		for _, gid := range p.GroupIDs() {
			g := p.Groups[gid]
			if g.Fixed() {
				continue
			}
			x, a, b := g.Guess.Value, g.Min.Value, g.Max.Value
			y := x
			switch {
			case g.Prior.Value == domain.PriorUniform || tr.Bounded():
				if x <= a {
					y = a + mul*(b-a)
				} else if x >= b {
					y = b - mul*(b-a)
				}
			case tr.Positive():
				if x <= 0 {
					y = mul * b
				}
			case tr.Unit():
				if x <= 0 {
					y = mul * b
				} else if x >= 1 {
					y = 1 - mul*(1-a)
				}
			}
			if y != x {
				g.Guess = domain.Num(y)
				d.Infof("unsticked %s:%s (%g -> %g)", name, gid, x, y)
			}
		}
	}
}
