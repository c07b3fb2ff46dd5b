package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetacore/internal/infra/persistence/memory"
	"thetacore/pkg/domain"
)

func TestServiceValidatesAsFarAsDocumentsGo(t *testing.T) {
	tracer := NewJSONTracer(nil)
	svc := NewService(nil, WithRoot("testdata"), WithTracer(tracer))
	ctx := context.Background()
	docs := fixtureDocs(t)

	require.NoError(t, svc.Validate(ctx, docs))
	require.NoError(t, svc.Validate(ctx, domain.Documents{Context: docs.Context, Process: docs.Process, Link: docs.Link}))
	require.NoError(t, svc.Validate(ctx, domain.Documents{Context: docs.Context}))

	broken := docs.Clone()
	delete(broken.Theta.Parameter, "phi")
	err := svc.Validate(ctx, broken)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	broken = docs.Clone()
	broken.Context.Data.Source = domain.Source{Path: "data/absent.csv"}
	err = svc.Validate(ctx, broken)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	entries := tracer.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, "service.validate", entries[0].Operation)
	assert.Equal(t, "error", entries[4].Status)
}

func TestServiceAdaptMutateAndPredict(t *testing.T) {
	svc := NewService(nil, WithRoot("testdata"))
	ctx := context.Background()
	docs := fixtureDocs(t)

	adapted, err := svc.Adapt(ctx, docs)
	require.NoError(t, err)
	assert.True(t, adapted.Theta.Parameter["S"].Expanded())
	assert.False(t, docs.Theta.Parameter["S"].Expanded(), "input documents are not modified")
	assert.False(t, adapted.Context.Data.Source.Resolved())

	mutated, report, err := svc.Mutate(ctx, docs, MutateOptions{Set: []string{"r0:all:guess:30"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"set"}, report.Stages)
	assert.Equal(t, 30.0, mutated.Theta.Parameter["r0"].Groups["city2"].Guess.Value)

	again, _, err := svc.Mutate(ctx, mutated, MutateOptions{})
	require.NoError(t, err)
	assert.Equal(t, mutated.Theta, again.Theta)

	unchanged, _, err := svc.Mutate(ctx, docs, MutateOptions{Set: []string{"r0:nowhere:guess:1"}})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, docs.Theta, unchanged.Theta)

	predicted, err := svc.Predict(ctx, docs, 1, openFixture(t, "X_0.csv"), openFixture(t, "trace_0.csv"))
	require.NoError(t, err)
	require.Len(t, predicted, 2)
	assert.Equal(t, domain.PartitionVariablePopulation, predicted[1].Theta.Parameter["S"].PartitionID)

	_, err = svc.Adapt(ctx, domain.Documents{Context: docs.Context, Process: docs.Process})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "link,theta")
}

func TestServiceSnapshots(t *testing.T) {
	ctx := context.Background()
	docs := fixtureDocs(t)

	_, err := NewService(nil).SaveSnapshot(ctx, "baseline", docs)
	assert.ErrorIs(t, err, errNoStore)

	svc := NewService(memory.NewStore())
	saved, err := svc.SaveSnapshot(ctx, "baseline", docs)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	loaded, err := svc.LoadSnapshot(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "baseline", loaded.Name)
	assert.Equal(t, docs.Theta, loaded.Documents.Theta)

	list, err := svc.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	_, err = svc.LoadSnapshot(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NotNil(t, svc.Store())
}
