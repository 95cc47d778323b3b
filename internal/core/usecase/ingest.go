package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

// IngestManualUseCase stores page-tagged manual sources and schedules chunking.
type IngestManualUseCase struct {
	storage   ports.ObjectStorage
	publisher ports.IngestPublisher
}

func NewIngestManualUseCase(storage ports.ObjectStorage, publisher ports.IngestPublisher) *IngestManualUseCase {
	return &IngestManualUseCase{storage: storage, publisher: publisher}
}

// Upload saves body under a fresh storage key and publishes the ingest event.
func (uc *IngestManualUseCase) Upload(ctx context.Context, manualID, tenantID, version string, body io.Reader) (domain.IngestEvent, error) {
	manualID = strings.TrimSpace(manualID)
	if manualID == "" {
		return domain.IngestEvent{}, domain.WrapError(domain.ErrInvalidInput, "upload manual", errors.New("manual id is required"))
	}
	if version = strings.TrimSpace(version); version == "" {
		version = "v1"
	}

	storageKey := fmt.Sprintf("%s_%s_%s.md", sanitizeKey(manualID), sanitizeKey(version), uuid.NewString())
	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return domain.IngestEvent{}, fmt.Errorf("save to object storage: %w", err)
	}

	event := domain.IngestEvent{ManualID: manualID, TenantID: strings.TrimSpace(tenantID), Version: version, StorageKey: storageKey}
	if err := uc.publisher.PublishManualIngested(ctx, event); err != nil {
		return domain.IngestEvent{}, fmt.Errorf("publish ingestion event: %w", err)
	}
	return event, nil
}

// Submit publishes an ingest event for a source that is already in storage.
func (uc *IngestManualUseCase) Submit(ctx context.Context, event domain.IngestEvent) (domain.IngestEvent, error) {
	event.ManualID = strings.TrimSpace(event.ManualID)
	event.TenantID = strings.TrimSpace(event.TenantID)
	event.StorageKey = strings.TrimSpace(event.StorageKey)
	if event.ManualID == "" || event.StorageKey == "" {
		return domain.IngestEvent{}, domain.WrapError(domain.ErrInvalidInput, "submit manual", errors.New("manual id and storage key are required"))
	}
	if strings.Contains(event.StorageKey, "..") || strings.ContainsAny(event.StorageKey, `/\`) {
		return domain.IngestEvent{}, domain.WrapError(domain.ErrInvalidInput, "submit manual", fmt.Errorf("invalid storage key %q", event.StorageKey))
	}
	if strings.TrimSpace(event.Version) == "" {
		event.Version = "v1"
	}
	if err := uc.publisher.PublishManualIngested(ctx, event); err != nil {
		return domain.IngestEvent{}, fmt.Errorf("publish ingestion event: %w", err)
	}
	return event, nil
}

func sanitizeKey(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.Trim(name, ".")
	if name == "" {
		return "manual"
	}
	return name
}
