package ports

import (
	"context"
	"io"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// ManualQueryService is the inbound contract for grounded answering.
type ManualQueryService interface {
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResponse, error)
	AnswerStream(ctx context.Context, req domain.QueryRequest, emit func(domain.StreamEvent) error) error
}

// CitationService rebuilds citations and thumbnails for chunks used in an answer.
type CitationService interface {
	Build(ctx context.Context, usedChunkIDs []string) (domain.CitationSet, error)
}

// ManualIngestor chunks, embeds and stores one manual.
type ManualIngestor interface {
	IngestManual(ctx context.Context, event domain.IngestEvent) (int, error)
}

// IngestPublisher schedules asynchronous ingestion.
type IngestPublisher interface {
	PublishManualIngested(ctx context.Context, event domain.IngestEvent) error
}

// ManualIngestService accepts manual sources over the API.
type ManualIngestService interface {
	Upload(ctx context.Context, manualID, tenantID, version string, body io.Reader) (domain.IngestEvent, error)
	Submit(ctx context.Context, event domain.IngestEvent) (domain.IngestEvent, error)
}
