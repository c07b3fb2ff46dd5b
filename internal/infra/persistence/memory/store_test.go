package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"thetacore/pkg/domain"
)

func sampleDocuments() domain.Documents {
	guess := 0.5
	return domain.Documents{
		Context: domain.ContextDoc{Population: []domain.Population{{ID: "paris__all"}}},
		Process: &domain.ProcessDoc{State: []domain.State{{ID: "S"}}},
		Theta: &domain.ThetaDoc{Parameter: map[string]*domain.Parameter{
			"S": {Scalar: &domain.Scalar{Guess: &guess}},
		}},
	}
}

func TestStoreSaveLoadAssignsID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	saved, err := store.Save(ctx, domain.Snapshot{Name: "baseline", Documents: sampleDocuments()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", saved)
	}
	loaded, err := store.Load(ctx, saved.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "baseline" || loaded.Documents.Context.Population[0].ID != "paris__all" {
		t.Fatalf("unexpected snapshot %+v", loaded)
	}
	*loaded.Documents.Theta.Parameter["S"].Scalar.Guess = 9
	again, _ := store.Load(ctx, saved.ID)
	if *again.Documents.Theta.Parameter["S"].Scalar.Guess != 0.5 {
		t.Fatalf("stored snapshot aliased caller data")
	}
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "a"} {
		if _, err := store.Save(ctx, domain.Snapshot{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("unexpected order %+v", list)
	}
	if err := store.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "b"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestBucketsRoundTrip(t *testing.T) {
	payloads, err := EncodeBuckets(sampleDocuments())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(payloads[2]) != "null" {
		t.Fatalf("expected null link bucket, got %s", payloads[2])
	}
	docs, err := DecodeBuckets(payloads)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if docs.Link != nil || docs.Theta == nil || *docs.Theta.Parameter["S"].Scalar.Guess != 0.5 {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if _, err := DecodeBuckets(payloads[:2]); err == nil {
		t.Fatalf("expected bucket count error")
	}
}
