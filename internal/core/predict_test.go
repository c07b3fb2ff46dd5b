package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetacore/pkg/domain"
)

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestPredictJoinsStatesAndTraceOnIndex(t *testing.T) {
	th := adaptedTheta(t)
	clones, err := th.Predict(context.Background(), 1, openFixture(t, "X_0.csv"), openFixture(t, "trace_0.csv"))
	require.NoError(t, err)
	require.Len(t, clones, 2)

	first := clones[0].Doc()
	assert.Equal(t, 18.0, first.Parameter["r0"].Groups["city1"].Guess.Value)
	assert.Equal(t, 19.0, first.Parameter["r0"].Groups["city2"].Guess.Value)
	assert.Equal(t, 0.5, first.Parameter["rep"].Groups["city1__CDC__inc"].Guess.Value)
	s := first.Parameter["S"]
	assert.Equal(t, domain.PartitionVariablePopulation, s.PartitionID)
	assert.InDelta(t, 0.5, s.Groups["city1__all"].Guess.Value, 1e-12)
	assert.InDelta(t, 0.4, s.Groups["city2__all"].Guess.Value, 1e-12)
	assert.InDelta(t, 1e-4, first.Parameter["I"].Groups["city2__all"].Guess.Value, 1e-15)

	second := clones[1].Doc()
	assert.Equal(t, 24.0, second.Parameter["r0"].Groups["city1"].Guess.Value)
	assert.InDelta(t, 0.3, second.Parameter["S"].Groups["city2__all"].Guess.Value, 1e-12)

	assert.Equal(t, 20.0, guess(t, th, "r0", "city1"), "the receiver is left untouched")
	assert.Equal(t, domain.PartitionIdenticalPopulation, th.Doc().Parameter["S"].PartitionID)
}

func TestPredictReportsMissingRows(t *testing.T) {
	th := adaptedTheta(t)
	_, err := th.Predict(context.Background(), 5, openFixture(t, "X_0.csv"), openFixture(t, "trace_0.csv"))
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	trace := strings.NewReader("index,r0:city1\n8,20\n")
	_, err = th.Predict(context.Background(), 1, openFixture(t, "X_0.csv"), trace)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = fixtureTheta(t).Predict(context.Background(), 1, openFixture(t, "X_0.csv"), openFixture(t, "trace_0.csv"))
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
