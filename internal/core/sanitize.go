package core

import (
	"math"

	"thetacore/pkg/domain"
)

// Sanitize clamps the guess of par:group into the domain of its transform
// and, for uniform priors or bounded transforms, into [min, max]. Free groups
// end strictly inside [min, max] when min < max.
func (t *Theta) Sanitize(par, group string) (domain.Diagnostics, error) {
	var diags domain.Diagnostics
	if _, err := t.Group(par, group); err != nil {
		return diags, err
	}
	t.sanitize(par, group, &diagSink{items: &diags, log: t.opts.logger})
	return diags, nil
}

func (t *Theta) sanitizeAll(d *diagSink) {
	for _, name := range sortedKeys(t.theta.Parameter) {
		for _, gid := range t.theta.Parameter[name].GroupIDs() {
			t.sanitize(name, gid, d)
		}
	}
}

func (t *Theta) sanitize(par, group string, d *diagSink) {
	p := t.theta.Parameter[par]
	g := p.Groups[group]
	if g == nil || g.Guess == nil {
		return
	}
	tr, err := LookupTransform(p.Transformation)
	if err != nil {
		tr, _ = LookupTransform(TransformIdentity)
	}
	x := g.Guess.Value
	switch {
	case tr.Positive() && x < 0:
		g.Guess = domain.Num(0)
		d.Warnf("sanitized %s:%s:guess (%s) %g -> 0", par, group, p.Transformation, x)
	case tr.Unit() && x < 0:
		g.Guess = domain.Num(0)
		d.Warnf("sanitized %s:%s:guess (logit) %g -> 0", par, group, x)
	case tr.Unit() && x > 1:
		g.Guess = domain.Num(1)
		d.Warnf("sanitized %s:%s:guess (logit) %g -> 1", par, group, x)
	}

	uniform := g.Prior != nil && g.Prior.Value == domain.PriorUniform
	if (!uniform && !tr.Bounded()) || g.Min == nil || g.Max == nil {
		return
	}
	x = g.Guess.Value
	lo, hi := g.Min.Value, g.Max.Value
	nudge := !g.Fixed() && lo < hi
	switch {
	case x < lo:
		y := lo
		if nudge {
			y = math.Nextafter(lo, hi)
		}
		g.Guess = domain.Num(y)
		d.Warnf("sanitized %s:%s:min %g (guess) -> %g (min)", par, group, x, y)
	case x > hi:
		y := hi
		if nudge {
			y = math.Nextafter(hi, lo)
		}
		g.Guess = domain.Num(y)
		d.Warnf("sanitized %s:%s:max %g (guess) -> %g (max)", par, group, x, y)
	case nudge && x == lo:
		g.Guess = domain.Num(math.Nextafter(lo, hi))
		d.Infof("sanitized %s:%s:guess off min %g", par, group, lo)
	case nudge && x == hi:
		g.Guess = domain.Num(math.Nextafter(hi, lo))
		d.Infof("sanitized %s:%s:guess off max %g", par, group, hi)
	}
}
