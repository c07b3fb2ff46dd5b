package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"thetacore/pkg/domain"
)

// fixtureDocs reads the SIR documents under testdata. Data and metadata
// sources stay unresolved paths relative to testdata.
func fixtureDocs(t *testing.T) domain.Documents {
	t.Helper()
	var docs domain.Documents
	var process domain.ProcessDoc
	var link domain.LinkDoc
	var theta domain.ThetaDoc
	for name, v := range map[string]any{
		"context.json": &docs.Context,
		"process.json": &process,
		"link.json":    &link,
		"theta.json":   &theta,
	} {
		b, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, v), name)
	}
	docs.Process, docs.Link, docs.Theta = &process, &link, &theta
	return docs
}

func fixtureTheta(t *testing.T, opts ...Option) *Theta {
	t.Helper()
	docs := fixtureDocs(t)
	opts = append([]Option{WithRoot("testdata")}, opts...)
	return NewTheta(docs.Context, *docs.Process, *docs.Link, *docs.Theta, opts...)
}

func adaptedTheta(t *testing.T, opts ...Option) *Theta {
	t.Helper()
	th := fixtureTheta(t, opts...)
	require.NoError(t, th.Adapt())
	return th
}

func guess(t *testing.T, th *Theta, par, group string) float64 {
	t.Helper()
	g, err := th.Group(par, group)
	require.NoError(t, err)
	require.NotNil(t, g.Guess)
	return g.Guess.Value
}
