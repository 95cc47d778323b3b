package usecase

import (
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// NoopObserver discards pipeline telemetry.
type NoopObserver struct{}

func (NoopObserver) ObserveStage(string, time.Duration, error) {}
func (NoopObserver) ObserveOutcome(domain.Strategy, string, int) {}
func (NoopObserver) ObserveRerankFallback(string) {}
func (NoopObserver) ObserveFigureLookupFailure(string) {}
