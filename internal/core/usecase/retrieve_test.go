package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

func TestRetrieveAugmentsQueryWithKeywords(t *testing.T) {
	embedder := &embedderFake{}
	store := &chunkStoreFake{candidates: []domain.Candidate{cand("a", "m", 1, 0.5, "x")}}
	r := NewHybridRetriever(embedder, store, nil, DefaultRetrievalConfig())

	res, err := r.Retrieve(context.Background(), domain.QueryRequest{Query: "What does E-104 mean?", ManualID: "m", TenantID: "t"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if embedder.queries[0] != "What does E-104 mean?\nKeywords: E-104" {
		t.Fatalf("unexpected embedded text %q", embedder.queries[0])
	}
	if store.lastLimit != 60 || store.lastFilter.MinScore != 0.30 {
		t.Fatalf("expected over-fetch 60 at floor 0.30, got %d/%v", store.lastLimit, store.lastFilter.MinScore)
	}
	if store.lastFilter.ManualID != "m" || store.lastFilter.TenantID != "t" {
		t.Fatalf("scope filter not propagated: %+v", store.lastFilter)
	}
	if res.Strategy != domain.StrategyVector || len(res.Keywords) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRetrieveLeavesPlainQueryUntouched(t *testing.T) {
	embedder := &embedderFake{}
	r := NewHybridRetriever(embedder, &chunkStoreFake{}, nil, DefaultRetrievalConfig())

	res, err := r.Retrieve(context.Background(), domain.QueryRequest{Query: "how to descale"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if embedder.queries[0] != "how to descale" {
		t.Fatalf("unexpected embedded text %q", embedder.queries[0])
	}
	if res.Strategy != domain.StrategyNone || len(res.Candidates) != 0 {
		t.Fatalf("empty search must yield strategy none, got %+v", res)
	}
}

func TestRetrieveSortsByScoreDescending(t *testing.T) {
	store := &chunkStoreFake{candidates: []domain.Candidate{
		cand("low", "m", 1, 0.31, "a"),
		cand("high", "m", 2, 0.92, "b"),
		cand("mid", "m", 3, 0.55, "c"),
	}}
	res, err := NewHybridRetriever(&embedderFake{}, store, nil, DefaultRetrievalConfig()).
		Retrieve(context.Background(), domain.QueryRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	got := domain.CandidateIDs(res.Candidates)
	if got[0] != "high" || got[1] != "mid" || got[2] != "low" {
		t.Fatalf("unexpected order %v", got)
	}
	if res.Candidates[0].OriginalScore != 0.92 {
		t.Fatalf("original score not preserved")
	}
}

func TestRetrieveFailuresAreRetrievalErrors(t *testing.T) {
	_, err := NewHybridRetriever(&embedderFake{err: errBoom}, &chunkStoreFake{}, nil, DefaultRetrievalConfig()).
		Retrieve(context.Background(), domain.QueryRequest{Query: "q"})
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("embed failure should be ErrRetrieval, got %v", err)
	}

	_, err = NewHybridRetriever(&embedderFake{}, &chunkStoreFake{searchErr: errBoom}, nil, DefaultRetrievalConfig()).
		Retrieve(context.Background(), domain.QueryRequest{Query: "q"})
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("search failure should be ErrRetrieval, got %v", err)
	}
}
