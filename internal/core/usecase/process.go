package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// ProcessManualUseCase chunks, embeds and stores one manual, replacing its previous chunks.
type ProcessManualUseCase struct {
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.ChunkStore
	batchSize int
}

func NewProcessManualUseCase(
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.ChunkStore,
	batchSize int,
) *ProcessManualUseCase {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &ProcessManualUseCase{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
	}
}

func (uc *ProcessManualUseCase) IngestManual(ctx context.Context, event domain.IngestEvent) (int, error) {
	if event.ManualID == "" || event.StorageKey == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "ingest manual", errors.New("manual id and storage key are required"))
	}

	text, err := uc.extractText(ctx, event.StorageKey)
	if err != nil {
		return 0, err
	}

	chunks, err := uc.chunk(domain.ManualDocument{
		ManualID: event.ManualID,
		TenantID: event.TenantID,
		Version:  event.Version,
		Body:     text,
	})
	if err != nil {
		return 0, err
	}

	if err := uc.embed(ctx, chunks); err != nil {
		return 0, err
	}

	if err := uc.store.ReplaceManualChunks(ctx, event.ManualID, event.TenantID, chunks); err != nil {
		return 0, fmt.Errorf("replace manual chunks: %w", err)
	}

	slog.InfoContext(ctx, "manual_ingested", "manual_id", event.ManualID, "version", event.Version, "chunks", len(chunks))
	return len(chunks), nil
}

func (uc *ProcessManualUseCase) extractText(ctx context.Context, storageKey string) (string, error) {
	text, err := uc.extractor.Extract(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *ProcessManualUseCase) chunk(doc domain.ManualDocument) ([]domain.Chunk, error) {
	chunks := uc.chunker.Split(doc)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk manual", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

func (uc *ProcessManualUseCase) embed(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Content)
		}

		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(texts)),
			)
		}
		for i := range vectors {
			chunks[start+i].Embedding = vectors[i]
		}
	}
	return nil
}
