package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// ObjectStorage stores page-tagged manual sources.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishManualIngested(ctx context.Context, event domain.IngestEvent) error
	SubscribeManualIngested(ctx context.Context, handler func(context.Context, domain.IngestEvent) error) error
}

// TextExtractor loads the page-tagged markdown stored under a key.
type TextExtractor interface {
	Extract(ctx context.Context, storageKey string) (string, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits a page-tagged manual into retrieval units.
type Chunker interface {
	Split(doc domain.ManualDocument) []domain.Chunk
}

// ChunkSearchFilter scopes a similarity search. Empty ids mean "any".
type ChunkSearchFilter struct {
	ManualID string
	TenantID string
	MinScore float64
}

// ChunkStore is the persisted, queryable chunk index.
type ChunkStore interface {
	Search(ctx context.Context, queryVector []float32, limit int, filter ChunkSearchFilter) ([]domain.Candidate, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error)
	ReplaceManualChunks(ctx context.Context, manualID, tenantID string, chunks []domain.Chunk) error
}

// FigureStore returns figures of one manual on an exact set of pages.
type FigureStore interface {
	FiguresOnPages(ctx context.Context, manualID string, pages []int) ([]domain.Figure, error)
}

// RelevanceScore is a cross-encoder score for the document at Index.
type RelevanceScore struct {
	Index int
	Score float64
}

// CrossEncoder scores (query, document) pairs with an external relevance model.
type CrossEncoder interface {
	Score(ctx context.Context, query string, documents []string, topN int) ([]RelevanceScore, error)
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, query string, chunks []domain.Chunk) (string, error)
	// StreamAnswer calls onDelta for each generated fragment. Returning an
	// error from onDelta stops consumption of the upstream stream.
	StreamAnswer(ctx context.Context, query string, chunks []domain.Chunk, onDelta func(string) error) error
}

// TermExtractor finds technical tokens (part codes, voltages, connector and
// error labels) in free text.
type TermExtractor interface {
	Extract(text string) []string
}

// QueryObserver receives pipeline telemetry.
type QueryObserver interface {
	ObserveStage(stage string, duration time.Duration, err error)
	ObserveOutcome(strategy domain.Strategy, gateReason string, candidateCount int)
	ObserveRerankFallback(reason string)
	ObserveFigureLookupFailure(manualID string)
}
