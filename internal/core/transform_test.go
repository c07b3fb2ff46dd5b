package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformsRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		x    float64
		a, b float64
	}{
		{TransformIdentity, -3.5, 0, 0},
		{TransformLog, 20, 0, 0},
		{TransformLogit, 0.07, 0, 0},
		{TransformLogitAB, 0.6, 0.4, 0.8},
		{TransformScalePow10, 1e-5, 0, 0},
		{TransformScalePow10Bounded, 3, 1, 10},
		{TransformScalePow10Neg, -250, 0, 0},
	}
	require.Len(t, cases, len(Transformations))
	for _, tc := range cases {
		tr, err := LookupTransform(tc.name)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.name, tr.Name)
		assert.True(t, tr.Admits(tc.x, tc.a, tc.b), tc.name)
		y := tr.Forward(tc.x, tc.a, tc.b)
		assert.InEpsilon(t, tc.x, tr.Inverse(y, tc.a, tc.b), 1e-9, tc.name)
	}
}

func TestTransformDomains(t *testing.T) {
	logit, _ := LookupTransform(TransformLogit)
	assert.True(t, logit.Unit())
	assert.False(t, logit.Admits(1.2, 0, 0))

	log, _ := LookupTransform(TransformLog)
	assert.True(t, log.Positive())
	assert.False(t, log.Admits(-1, 0, 0))

	bounded, _ := LookupTransform(TransformLogitAB)
	assert.True(t, bounded.Bounded())
	assert.False(t, bounded.Admits(0.9, 0.4, 0.8))

	identity, _ := LookupTransform(TransformIdentity)
	assert.True(t, identity.Admits(-1e9, 0, 0))

	_, err := LookupTransform("probit")
	assert.Error(t, err)
	assert.False(t, ValidTransformation("probit"))
	assert.True(t, ValidTransformation(TransformScalePow10Neg))
}
