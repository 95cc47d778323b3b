package usecase

import (
	"context"
	"reflect"
	"testing"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

func chunkOn(id, manualID string, start, end int) domain.Chunk {
	return domain.Chunk{ID: id, ManualID: manualID, PageStart: start, PageEnd: end, Content: "text"}
}

func citationFigures() *figureStoreFake {
	return &figureStoreFake{figures: map[string][]domain.Figure{
		"m1": {
			{ID: "f1", ManualID: "m1", PageNumber: 12, StorageURL: "https://cdn/f1.png", Kind: "diagram"},
			{ID: "f1", ManualID: "m1", PageNumber: 12, StorageURL: "https://cdn/f1.png", Kind: "diagram"},
			{ID: "f2", ManualID: "m1", PageNumber: 13, StorageURL: "https://cdn/f2.png", CaptionText: "Wiring of the main board"},
			{ID: "f3", ManualID: "m1", PageNumber: 14, CaptionText: "Fuse location on the rear panel"},
			{ID: "f4", ManualID: "m1", PageNumber: 14, StorageURL: "https://cdn/f4.png", CaptionText: "tiny"},
			{ID: "f5", ManualID: "m1", PageNumber: 14, StorageURL: "https://cdn/f5.png", OCRText: "24V DC input"},
		},
		"m2": {
			{ID: "f6", ManualID: "m1", PageNumber: 12, StorageURL: "https://cdn/f6.png", Kind: "diagram"},
		},
	}}
}

func TestBuildFromChunksGroupsPagesPerManual(t *testing.T) {
	figures := citationFigures()
	b := NewCitationBuilder(&chunkStoreFake{}, figures, nil, DefaultCitationConfig())

	set := b.BuildFromChunks(context.Background(), []domain.Chunk{
		chunkOn("c1", "m1", 12, 12),
		chunkOn("c2", "m1", 14, 14),
		chunkOn("c3", "m1", 12, 12),
		chunkOn("c4", "m2", 12, 12),
		chunkOn("c5", "m3", 0, 0),
		chunkOn("c6", "m3", 1200, 1200),
	})

	wantCitations := []string{"m1:p12", "m1:p14", "m2:p12"}
	if !reflect.DeepEqual(set.Citations, wantCitations) {
		t.Fatalf("citations = %v, want %v", set.Citations, wantCitations)
	}
	wantThumbs := []domain.Thumbnail{
		{PageID: "m1:p12", URL: "https://cdn/f1.png", Title: "Diagram (page 12)", ManualID: "m1"},
		{PageID: "m1:p14", URL: "https://cdn/f5.png", Title: "Figure (page 14)", ManualID: "m1"},
	}
	if !reflect.DeepEqual(set.Thumbnails, wantThumbs) {
		t.Fatalf("thumbnails = %+v, want %+v", set.Thumbnails, wantThumbs)
	}
	if !reflect.DeepEqual(figures.calls["m1"], []int{12, 14}) || !reflect.DeepEqual(figures.calls["m2"], []int{12}) {
		t.Fatalf("unexpected page lookups %v", figures.calls)
	}
	if _, queried := figures.calls["m3"]; queried {
		t.Fatalf("manual with only corrupt pages must not be queried")
	}
}

func TestBuildFromChunksSkipsFailedManual(t *testing.T) {
	figures := citationFigures()
	figures.figures["m2"] = []domain.Figure{{ID: "f7", ManualID: "m2", PageNumber: 12, StorageURL: "https://cdn/f7.png", Kind: "photo"}}
	figures.fail = map[string]error{"m2": errBoom}
	obs := &observerFake{}
	b := NewCitationBuilder(&chunkStoreFake{}, figures, obs, DefaultCitationConfig())

	set := b.BuildFromChunks(context.Background(), []domain.Chunk{
		chunkOn("c1", "m1", 12, 12),
		chunkOn("c2", "m2", 12, 12),
	})

	if !reflect.DeepEqual(set.Citations, []string{"m1:p12", "m2:p12"}) {
		t.Fatalf("citations must survive a figure failure, got %v", set.Citations)
	}
	if len(set.Thumbnails) != 1 || set.Thumbnails[0].ManualID != "m1" {
		t.Fatalf("expected only m1 thumbnails, got %+v", set.Thumbnails)
	}
	if !reflect.DeepEqual(obs.figureFailures, []string{"m2"}) {
		t.Fatalf("expected failure observed for m2, got %v", obs.figureFailures)
	}
}

func TestBuildWithoutIDsMakesNoCalls(t *testing.T) {
	chunks := &chunkStoreFake{}
	figures := &figureStoreFake{}
	set, err := NewCitationBuilder(chunks, figures, nil, DefaultCitationConfig()).Build(context.Background(), []string{" ", ""})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(set.Citations) != 0 || len(set.Thumbnails) != 0 || set.Citations == nil || set.Thumbnails == nil {
		t.Fatalf("expected empty non-nil set, got %+v", set)
	}
	if chunks.getCalls != 0 || len(figures.calls) != 0 {
		t.Fatalf("no store calls expected")
	}
}

func TestBuildLoadsChunksByID(t *testing.T) {
	chunks := &chunkStoreFake{byID: map[string]domain.Chunk{
		"a": chunkOn("a", "m1", 12, 13),
	}}
	set, err := NewCitationBuilder(chunks, citationFigures(), nil, DefaultCitationConfig()).
		Build(context.Background(), []string{"a", "missing"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !reflect.DeepEqual(set.Citations, []string{"m1:p12", "m1:p13"}) {
		t.Fatalf("unexpected citations %v", set.Citations)
	}
	if len(set.Thumbnails) != 2 {
		t.Fatalf("expected f1 and f2 thumbnails, got %+v", set.Thumbnails)
	}
}
