package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetacore/pkg/domain"
)

func TestThetaValidatesFixtureBeforeAndAfterAdapt(t *testing.T) {
	th := fixtureTheta(t)
	require.NoError(t, th.Resolve(context.Background()))
	require.NoError(t, th.Validate())
	require.NoError(t, th.Adapt())
	require.NoError(t, th.Validate())
}

func TestAdaptFillsDefaultsAndExpandsGroups(t *testing.T) {
	th := adaptedTheta(t)
	doc := th.Doc()

	s := doc.Parameter["S"]
	assert.Equal(t, TransformLogit, s.Transformation)
	assert.Equal(t, domain.PartitionIdenticalPopulation, s.PartitionID)
	assert.Nil(t, s.Scalar)
	assert.Equal(t, []string{domain.GroupAll}, s.GroupIDs())
	assert.Equal(t, &domain.Group{
		Guess: domain.Num(0.07), Min: domain.Num(0.05), Max: domain.Num(0.1),
		SdTransf: domain.Num(0.02), Prior: domain.Lbl(domain.PriorUniform),
	}, s.Groups[domain.GroupAll])

	assert.Equal(t, []string{"city1__all", "city2__all"}, doc.Parameter["I"].GroupIDs())
	assert.Equal(t, []string{"city1", "city2"}, doc.Parameter["r0"].GroupIDs())
	assert.Equal(t, TransformLog, doc.Parameter["r0"].Transformation)

	v := doc.Parameter["v"].Groups[domain.GroupAll]
	assert.Equal(t, 14.0, v.Min.Value)
	assert.Equal(t, 14.0, v.Max.Value)
	assert.True(t, v.Fixed())
	assert.Equal(t, "D", doc.Parameter["v"].Unit)

	assert.Equal(t, []string{"city1__CDC__inc", "city2__CDC__inc"}, doc.Parameter["rep"].GroupIDs())
	assert.Equal(t, domain.PartitionIdenticalTimeSeries, doc.Parameter["phi"].PartitionID)
	assert.Equal(t, TransformLog, doc.Parameter["phi"].Transformation)

	for _, id := range domain.ReservedPartIDs {
		assert.Contains(t, doc.Partition, id)
	}
	assert.Equal(t, []string{"city1__all", "city2__all"}, doc.Partition[domain.PartitionIdenticalPopulation].Group[0].PopulationID)
	assert.Contains(t, doc.Partition, "by_city")
}

func TestAdaptIsIdempotent(t *testing.T) {
	th := adaptedTheta(t)
	first := th.Doc()
	require.NoError(t, th.Adapt())
	assert.Equal(t, first, th.Doc())
}

func TestAdaptDefaultsFollowersToZero(t *testing.T) {
	docs := fixtureDocs(t)
	docs.Theta.Parameter["phi"] = &domain.Parameter{Scalar: &domain.Scalar{}, Follow: "rep"}
	th := NewTheta(docs.Context, *docs.Process, *docs.Link, *docs.Theta)
	require.NoError(t, th.Adapt())
	g, err := th.Group("phi", domain.GroupAll)
	require.NoError(t, err)
	assert.Equal(t, 0.0, g.Guess.Value)
	assert.True(t, g.Complete())
}

func TestAdaptRejectsUndefinedPartition(t *testing.T) {
	docs := fixtureDocs(t)
	docs.Theta.Parameter["r0"].PartitionID = "by_age"
	err := NewTheta(docs.Context, *docs.Process, *docs.Link, *docs.Theta).Adapt()
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "partition by_age is not defined")
}

func TestThetaValidateRejectsInconsistentParameters(t *testing.T) {
	cases := []struct {
		name    string
		adapt   bool
		edit    func(*domain.ThetaDoc)
		message string
	}{
		{name: "missing parameter", edit: func(d *domain.ThetaDoc) { delete(d.Parameter, "phi") }, message: "parameter [phi] are missing"},
		{name: "extra parameter", edit: func(d *domain.ThetaDoc) { d.Parameter["beta"] = d.Parameter["phi"] }, message: "parameter [beta] have to be deleted"},
		{name: "bad transformation", edit: func(d *domain.ThetaDoc) { d.Parameter["S"].Transformation = "probit" }, message: "unsupported transformation (probit)"},
		{name: "bad unit", edit: func(d *domain.ThetaDoc) { d.Parameter["v"].Unit = "H" }, message: "unsupported unit (H)"},
		{name: "bad type", edit: func(d *domain.ThetaDoc) { d.Parameter["v"].Type = "rate" }, message: "unsupported type (rate)"},
		{name: "bad follow", edit: func(d *domain.ThetaDoc) { d.Parameter["phi"].Follow = "psi" }, message: "follow is not a valid parameter (psi)"},
		{name: "bad prior", edit: func(d *domain.ThetaDoc) { d.Parameter["phi"].Scalar.Prior = "cauchy" }, message: "unsupported prior (cauchy)"},
		{name: "no guess", edit: func(d *domain.ThetaDoc) { d.Parameter["phi"].Scalar.Guess = nil }, message: `at least "guess" is required`},
		{name: "undefined partition", edit: func(d *domain.ThetaDoc) { d.Parameter["r0"].PartitionID = "by_age" }, message: "partition by_age is not defined"},
		{
			name:    "process parameter on a time series partition",
			edit:    func(d *domain.ThetaDoc) { d.Parameter["r0"].PartitionID = domain.PartitionVariableTimeSeries },
			message: `groups should contain a "population_id" property`,
		},
		{
			name:    "observation parameter on a population partition",
			edit:    func(d *domain.ThetaDoc) { d.Parameter["rep"].PartitionID = "by_city" },
			message: `groups should contain a "time_series_id" property`,
		},
		{
			name: "partition mixing kinds",
			edit: func(d *domain.ThetaDoc) {
				d.Partition["by_city"].Group[1] = domain.PartitionGroup{ID: "city2", TimeSeriesID: []string{"city2__CDC__inc"}}
			},
			message: "mix of time_series_id and population_id properties",
		},
		{
			name: "partition with unknown population",
			edit: func(d *domain.ThetaDoc) {
				d.Partition["by_city"].Group[1].PopulationID = []string{"city3__all"}
			},
			message: "contains invalid element: [city3__all]",
		},
		{
			name:    "grouped parameter missing a group",
			adapt:   true,
			edit:    func(d *domain.ThetaDoc) { delete(d.Parameter["r0"].Groups, "city2") },
			message: "missing group: [city2]",
		},
		{
			name:    "grouped parameter with an alien group",
			adapt:   true,
			edit:    func(d *domain.ThetaDoc) { d.Parameter["phi"].Groups["extra"] = d.Parameter["phi"].Groups[domain.GroupAll] },
			message: "invalid group (should be deleted): [extra]",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			docs := fixtureDocs(t)
			doc := *docs.Theta
			if tc.adapt {
				th := NewTheta(docs.Context, *docs.Process, *docs.Link, doc)
				require.NoError(t, th.Adapt())
				doc = th.Doc()
			}
			tc.edit(&doc)
			err := NewTheta(docs.Context, *docs.Process, *docs.Link, doc).Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestDecodeThetaNamesTheOffendingField(t *testing.T) {
	_, err := domain.DecodeTheta([]byte(`{"parameter": {"r0": {"guess": "high"}}}`))
	require.Error(t, err)
	assert.EqualError(t, err, "in theta.json parameter r0, guess is not a number")

	_, err = domain.DecodeTheta([]byte(`{"parameter": {"r0": {"group": {"all": {"min": {"v": 1}}}}}}`))
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "value property is missing")
}

func TestSanitizeClampsIntoTransformAndPriorBounds(t *testing.T) {
	th := adaptedTheta(t)

	i, err := th.Group("I", "city1__all")
	require.NoError(t, err)
	i.Guess = domain.Num(2)
	diags, err := th.Sanitize("I", "city1__all")
	require.NoError(t, err)
	assert.Len(t, diags.Warnings(), 2)
	assert.Less(t, i.Guess.Value, 1e-4)
	assert.InDelta(t, 1e-4, i.Guess.Value, 1e-12)

	v, err := th.Group("v", domain.GroupAll)
	require.NoError(t, err)
	v.Guess = domain.Num(600)
	_, err = th.Sanitize("v", domain.GroupAll)
	require.NoError(t, err)
	assert.Equal(t, 14.0, v.Guess.Value, "fixed groups land exactly on the bound")

	sto, err := th.Group("sto", domain.GroupAll)
	require.NoError(t, err)
	sto.Guess = domain.Num(-1)
	diags, err = th.Sanitize("sto", domain.GroupAll)
	require.NoError(t, err)
	assert.Equal(t, math.Nextafter(0, 0.3), sto.Guess.Value, "the log clamp lands on min and is nudged inward")
	assert.Equal(t, []string{"sanitized sto:all:guess (log) -1 -> 0"}, diags.Warnings())
	assert.Contains(t, diags.Items, domain.Diagnostic{Severity: domain.SeverityLog, Message: "sanitized sto:all:guess off min 0"})

	r0, err := th.Group("r0", "city1")
	require.NoError(t, err)
	r0.Guess = domain.Num(35)
	diags, err = th.Sanitize("r0", "city1")
	require.NoError(t, err)
	assert.Empty(t, diags.Warnings())
	assert.Equal(t, math.Nextafter(35, 15), r0.Guess.Value)
	assert.Less(t, r0.Guess.Value, r0.Max.Value)

	phi, err := th.Group("phi", domain.GroupAll)
	require.NoError(t, err)
	phi.Prior, phi.Guess = domain.Lbl(domain.PriorNormal), domain.Num(5)
	diags, err = th.Sanitize("phi", domain.GroupAll)
	require.NoError(t, err)
	assert.Empty(t, diags.Items)
	assert.Equal(t, 5.0, phi.Guess.Value, "normal priors on unbounded transforms are not clamped")

	_, err = th.Sanitize("phi", "city1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestThetaCloneMergeAndGroup(t *testing.T) {
	th := adaptedTheta(t)
	clone := th.Clone()
	g, err := clone.Group("r0", "city1")
	require.NoError(t, err)
	g.Guess = domain.Num(99)
	assert.Equal(t, 20.0, guess(t, th, "r0", "city1"))

	other := clone.Doc()
	other.Parameter["r0"].Unit = "W"
	other.Parameter["r0"].Groups["elsewhere"] = &domain.Group{}
	th.Merge(other)
	assert.Equal(t, 99.0, guess(t, th, "r0", "city1"))
	assert.Equal(t, "W", th.Doc().Parameter["r0"].Unit)
	assert.NotContains(t, th.Doc().Parameter["r0"].Groups, "elsewhere")

	_, err = th.Group("r0", "city9")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = th.Group("beta", "all")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
