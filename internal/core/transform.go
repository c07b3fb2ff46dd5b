package core

import (
	"fmt"
	"math"
	"slices"
)

// Transformation names.
const (
	TransformIdentity          = "identity"
	TransformLog               = "log"
	TransformLogit             = "logit"
	TransformLogitAB           = "logit_ab"
	TransformScalePow10        = "scale_pow10"
	TransformScalePow10Bounded = "scale_pow10_bounded"
	TransformScalePow10Neg     = "scale_pow10_neg"
)

// Transformations lists the legal transformation names.
var Transformations = []string{
	TransformIdentity, TransformLog, TransformLogit, TransformLogitAB,
	TransformScalePow10, TransformScalePow10Bounded, TransformScalePow10Neg,
}

// Transform is a monotonic reparameterization. a and b are the group's
// min and max, used only by the bounded transforms.
type Transform struct {
	Name    string
	Forward func(x, a, b float64) float64
	Inverse func(y, a, b float64) float64
}

// Positive reports whether the natural scale is constrained to x >= 0.
func (t Transform) Positive() bool {
	return t.Name == TransformLog || t.Name == TransformScalePow10
}

// Unit reports whether the natural scale is constrained to [0, 1].
func (t Transform) Unit() bool { return t.Name == TransformLogit }

// Bounded reports whether the natural scale is constrained to [min, max].
func (t Transform) Bounded() bool {
	return t.Name == TransformLogitAB || t.Name == TransformScalePow10Bounded
}

// Admits reports whether x is inside the transform's natural domain.
func (t Transform) Admits(x, a, b float64) bool {
	switch {
	case t.Positive():
		return x >= 0
	case t.Unit():
		return x >= 0 && x <= 1
	case t.Bounded():
		return x >= a && x <= b
	}
	return true
}

var transforms = map[string]Transform{
	TransformIdentity: {
		Forward: func(x, _, _ float64) float64 { return x },
		Inverse: func(y, _, _ float64) float64 { return y },
	},
	TransformLog: {
		Forward: func(x, _, _ float64) float64 { return math.Log(x) },
		Inverse: func(y, _, _ float64) float64 { return math.Exp(y) },
	},
	TransformLogit: {
		Forward: func(x, _, _ float64) float64 { return math.Log(x / (1 - x)) },
		Inverse: func(y, _, _ float64) float64 { return 1 / (1 + math.Exp(-y)) },
	},
	TransformLogitAB: {
		Forward: func(x, a, b float64) float64 { return math.Log((x - a) / (b - x)) },
		Inverse: func(y, a, b float64) float64 { return (b*math.Exp(y) + a) / (1 + math.Exp(y)) },
	},
	TransformScalePow10: {
		Forward: func(x, _, _ float64) float64 { return math.Log10(x) },
		Inverse: func(y, _, _ float64) float64 { return math.Pow(10, y) },
	},
	TransformScalePow10Bounded: {
		Forward: func(x, a, b float64) float64 { return math.Log10((x - a) / (b - x)) },
		Inverse: func(y, a, b float64) float64 { return (b*math.Pow(10, y) + a) / (1 + math.Pow(10, y)) },
	},
	TransformScalePow10Neg: {
		Forward: func(x, _, _ float64) float64 { return math.Log10(-x) },
		Inverse: func(y, _, _ float64) float64 { return -math.Pow(10, y) },
	},
}

// LookupTransform returns the named transform.
func LookupTransform(name string) (Transform, error) {
	t, ok := transforms[name]
	if !ok {
		return Transform{}, fmt.Errorf("unsupported transformation %q", name)
	}
	t.Name = name
	return t, nil
}

// ValidTransformation reports whether name is a legal transformation.
func ValidTransformation(name string) bool { return slices.Contains(Transformations, name) }
