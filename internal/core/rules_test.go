package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetacore/pkg/domain"
)

func TestDefaultRulesEngineOrder(t *testing.T) {
	var names []string
	for _, r := range NewDefaultRulesEngine().Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"reaction_endpoints", "expression_tokens", "white_noise", "diffusion", "observed_definition"}, names)
}

func TestModelRulesRejectInconsistentDocuments(t *testing.T) {
	cases := []struct {
		name    string
		edit    func(p *domain.ProcessDoc, l *domain.LinkDoc)
		message string
	}{
		{
			name:    "undeclared endpoint",
			edit:    func(p *domain.ProcessDoc, _ *domain.LinkDoc) { p.Model[1].To = "D" },
			message: `"D" is not a declared state`,
		},
		{
			name:    "missing rate",
			edit:    func(p *domain.ProcessDoc, _ *domain.LinkDoc) { p.Model[1].Rate = "" },
			message: "rate is missing",
		},
		{
			name:    "unknown rate term",
			edit:    func(p *domain.ProcessDoc, _ *domain.LinkDoc) { p.Model[0].Rate = "beta*S*I" },
			message: `unknown term "beta"`,
		},
		{
			name:    "infinity is not a literal",
			edit:    func(p *domain.ProcessDoc, _ *domain.LinkDoc) { p.Model[0].Rate = "v*Inf + NaN*I" },
			message: `unknown term "Inf"`,
		},
		{
			name:    "hex is not a literal",
			edit:    func(p *domain.ProcessDoc, _ *domain.LinkDoc) { p.Model[0].Rate = "0x10*I" },
			message: `unknown term "0x10"`,
		},
		{
			name:    "unknown variance term",
			edit:    func(_ *domain.ProcessDoc, l *domain.LinkDoc) { l.Observation[0].Model.Var = "rep*k" },
			message: `unknown term "k"`,
		},
		{
			name:    "undeclared noise intensity",
			edit:    func(p *domain.ProcessDoc, _ *domain.LinkDoc) { p.WhiteNoise[0].Sd = "sigma" },
			message: `sd "sigma" is not a declared parameter`,
		},
		{
			name: "ambiguous noisy reaction",
			edit: func(p *domain.ProcessDoc, _ *domain.LinkDoc) {
				p.Model = append(p.Model, domain.Reaction{From: "S", To: "I", Rate: "v*I"})
			},
			message: "2 reactions match S -> I",
		},
		{
			name: "diffusion with drift",
			edit: func(p *domain.ProcessDoc, _ *domain.LinkDoc) {
				p.Diffusion = []domain.Diffusion{{Parameter: "r0", Drift: 0.1, Volatility: "sto"}}
			},
			message: "drift has to be 0",
		},
		{
			name: "diffusion on undeclared parameter",
			edit: func(p *domain.ProcessDoc, _ *domain.LinkDoc) {
				p.Diffusion = []domain.Diffusion{{Parameter: "beta", Volatility: "sto"}}
			},
			message: `parameter "beta" is not declared`,
		},
		{
			name: "mixed definition",
			edit: func(_ *domain.ProcessDoc, l *domain.LinkDoc) {
				l.Observed[0].Definition = append(l.Observed[0].Definition, domain.Definition{State: "I"})
			},
			message: "mixes incidence and prevalence",
		},
		{
			name: "prevalence on an incidence series",
			edit: func(_ *domain.ProcessDoc, l *domain.LinkDoc) {
				l.Observed[0].Definition = []domain.Definition{{State: "I"}}
			},
			message: "has type inc but Inc is prev",
		},
		{
			name: "unknown time series",
			edit: func(_ *domain.ProcessDoc, l *domain.LinkDoc) {
				l.Observed[0].TimeSeriesID = append(l.Observed[0].TimeSeriesID, "city3__CDC__inc")
			},
			message: `time series "city3__CDC__inc" is not declared`,
		},
		{
			name: "unmatched observed reaction",
			edit: func(_ *domain.ProcessDoc, l *domain.LinkDoc) {
				l.Observed[0].Definition = []domain.Definition{{Reaction: &domain.ReactionRef{From: "R", To: "S"}}}
			},
			message: "no reaction matches R -> S",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			docs := fixtureDocs(t)
			tc.edit(docs.Process, docs.Link)
			m := NewModel(docs.Context, *docs.Process, *docs.Link, WithRoot("testdata"))
			err := m.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestRateDisambiguatesReactionsIgnoringWhitespace(t *testing.T) {
	docs := fixtureDocs(t)
	docs.Process.Model = append(docs.Process.Model, domain.Reaction{From: "S", To: "I", Rate: "v*I"})
	ref := domain.ReactionRef{From: "S", To: "I", Rate: "r0 / N * v * I"}
	docs.Process.WhiteNoise[0].Reaction = []domain.ReactionRef{ref}
	docs.Link.Observed[0].Definition = []domain.Definition{{Reaction: &ref}}

	assert.Equal(t, []int{0}, matchReactions(docs.Process.Model, ref))
	assert.Equal(t, []int{0, 2}, matchReactions(docs.Process.Model, domain.ReactionRef{From: "S", To: "I"}))

	m := NewModel(docs.Context, *docs.Process, *docs.Link, WithRoot("testdata"))
	require.NoError(t, m.Validate())
}
