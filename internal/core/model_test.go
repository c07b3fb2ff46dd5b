package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetacore/internal/datasource"
	"thetacore/pkg/domain"
)

func TestModelDerivesParameterSets(t *testing.T) {
	docs := fixtureDocs(t)
	m := NewModel(docs.Context, *docs.Process, *docs.Link)
	assert.Equal(t, []string{"S", "I"}, m.ParSV())
	assert.Equal(t, []string{"r0", "v", "sto"}, m.ParProc())
	assert.Equal(t, []string{"rep", "phi"}, m.ParObs())
	assert.Equal(t, []string{"S", "I", "r0", "v", "sto", "rep", "phi"}, m.AllParameters())
	assert.False(t, m.PopSizeEqSumSV())

	docs.Process.Parameter = append(docs.Process.Parameter, domain.Declared{ID: "N"}, domain.Declared{ID: "v"})
	docs.Process.State[2].Tag = nil
	m = NewModel(docs.Context, *docs.Process, *docs.Link)
	assert.Equal(t, []string{"S", "I", "R"}, m.ParSV())
	assert.Equal(t, []string{"r0", "v", "sto"}, m.ParProc(), "metadata ids and duplicates are skipped")
	assert.True(t, m.PopSizeEqSumSV())
}

func TestModelCopiesItsDocuments(t *testing.T) {
	docs := fixtureDocs(t)
	m := NewModel(docs.Context, *docs.Process, *docs.Link)
	docs.Process.State[0].ID = "X"
	docs.Context.Population[0].ID = "X__all"

	assert.Equal(t, "S", m.Process().State[0].ID)
	assert.Equal(t, "city1__all", m.Snapshot().Context.Population[0].ID)

	p := m.Process()
	p.Model[0].Rate = "0"
	assert.Equal(t, "r0/N*v*I", m.Process().Model[0].Rate)
}

func TestPopulationSizeFromMetadataRows(t *testing.T) {
	docs := fixtureDocs(t)
	m := NewModel(docs.Context, *docs.Process, *docs.Link, WithRoot("testdata"))
	ctx := context.Background()

	for _, tc := range []struct {
		index        int
		city1, city2 float64
	}{
		{0, 1e6, 2e6},
		{2, 1.2e6, 2.4e6},
		{10, 1.2e6, 2.4e6},
		{-1, 1.2e6, 2.4e6},
	} {
		sizes, err := m.PopulationSize(ctx, nil, tc.index)
		require.NoError(t, err, "index %d", tc.index)
		assert.Equal(t, map[string]float64{"city1__all": tc.city1, "city2__all": tc.city2}, sizes, "index %d", tc.index)
	}

	_, err := PopulationSizeFromMetadata([]string{"city3__all"}, map[string]domain.Series{}, 0)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPopulationSizeSumsStatesWithoutRemainder(t *testing.T) {
	docs := fixtureDocs(t)
	docs.Process.State[2].Tag = nil
	m := NewModel(docs.Context, *docs.Process, *docs.Link)
	row := datasource.Record{
		"S:city1__all": 900, "I:city1__all": 50, "R:city1__all": 50,
		"S:city2__all": 1500, "I:city2__all": 400, "R:city2__all": 100,
	}
	sizes, err := m.PopulationSize(context.Background(), row, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"city1__all": 1000, "city2__all": 2000}, sizes)

	delete(row, "R:city2__all")
	_, err = m.PopulationSize(context.Background(), row, 0)
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "R:city2__all", nf.ID)
}
