package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

func threeChunks(doc domain.ManualDocument) []domain.Chunk {
	out := make([]domain.Chunk, 3)
	for i := range out {
		out[i] = domain.Chunk{ID: doc.ManualID + string(rune('a'+i)), ManualID: doc.ManualID, Version: doc.Version, PageStart: i + 1, PageEnd: i + 1, Content: "part"}
	}
	return out
}

func TestIngestManualEmbedsInBatchesAndReplaces(t *testing.T) {
	embedder := &embedderFake{}
	store := &chunkStoreFake{}
	uc := NewProcessManualUseCase(extractorFake{text: "<!-- page 1 -->\nbody"}, chunkerFunc(threeChunks), embedder, store, 2)

	n, err := uc.IngestManual(context.Background(), domain.IngestEvent{ManualID: "m", Version: "v2", StorageKey: "m.md"})
	if err != nil {
		t.Fatalf("IngestManual() error = %v", err)
	}
	if n != 3 || len(store.replaced) != 3 {
		t.Fatalf("expected 3 stored chunks, got %d/%d", n, len(store.replaced))
	}
	if len(embedder.batches) != 2 || len(embedder.batches[0]) != 2 || len(embedder.batches[1]) != 1 {
		t.Fatalf("unexpected batches %v", embedder.batches)
	}
	for _, ch := range store.replaced {
		if len(ch.Embedding) == 0 {
			t.Fatalf("chunk %s stored without embedding", ch.ID)
		}
	}
}

func TestIngestManualRejectsUnusableInput(t *testing.T) {
	cases := []struct {
		name    string
		event   domain.IngestEvent
		text    string
		chunker chunkerFunc
	}{
		{"missing manual", domain.IngestEvent{StorageKey: "k"}, "x", threeChunks},
		{"empty text", domain.IngestEvent{ManualID: "m", StorageKey: "k"}, "", threeChunks},
		{"no chunks", domain.IngestEvent{ManualID: "m", StorageKey: "k"}, "x", func(domain.ManualDocument) []domain.Chunk { return nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &chunkStoreFake{}
			_, err := NewProcessManualUseCase(extractorFake{text: tc.text}, tc.chunker, &embedderFake{}, store, 0).
				IngestManual(context.Background(), tc.event)
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if store.replaced != nil {
				t.Fatalf("nothing should be stored")
			}
		})
	}
}

func TestIngestManualStopsOnEmbedFailure(t *testing.T) {
	store := &chunkStoreFake{}
	_, err := NewProcessManualUseCase(extractorFake{text: "x"}, chunkerFunc(threeChunks), &embedderFake{err: errBoom}, store, 0).
		IngestManual(context.Background(), domain.IngestEvent{ManualID: "m", StorageKey: "k"})
	if err == nil || store.replaced != nil {
		t.Fatalf("expected failure without replacing chunks, got %v", err)
	}
}
