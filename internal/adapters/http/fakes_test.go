package httpadapter

import (
	"context"
	"io"
	"net/http"

	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

type answersFake struct {
	resp   *domain.AnswerResponse
	events []domain.StreamEvent
	err    error
	last   domain.QueryRequest
}

func (f *answersFake) Answer(_ context.Context, req domain.QueryRequest) (*domain.AnswerResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *answersFake) AnswerStream(_ context.Context, req domain.QueryRequest, emit func(domain.StreamEvent) error) error {
	f.last = req
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return f.err
}

type citationsFake struct {
	set domain.CitationSet
	err error
	ids []string
}

func (f *citationsFake) Build(_ context.Context, ids []string) (domain.CitationSet, error) {
	f.ids = ids
	return f.set, f.err
}

type ingestFake struct {
	submitted []domain.IngestEvent
	uploaded  string
	err       error
}

func (f *ingestFake) Upload(_ context.Context, manualID, tenantID, version string, body io.Reader) (domain.IngestEvent, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return domain.IngestEvent{}, err
	}
	if f.err != nil {
		return domain.IngestEvent{}, f.err
	}
	f.uploaded = string(raw)
	return domain.IngestEvent{ManualID: manualID, TenantID: tenantID, Version: version, StorageKey: manualID + ".md"}, nil
}

func (f *ingestFake) Submit(_ context.Context, event domain.IngestEvent) (domain.IngestEvent, error) {
	if f.err != nil {
		return domain.IngestEvent{}, f.err
	}
	f.submitted = append(f.submitted, event)
	return event, nil
}

type routerDeps struct {
	answers   *answersFake
	citations *citationsFake
	ingest    *ingestFake
}

func newTestRouter(cfg config.Config) (http.Handler, routerDeps) {
	deps := routerDeps{
		answers:   &answersFake{resp: &domain.AnswerResponse{Answer: "ok", Strategy: domain.StrategyVector}},
		citations: &citationsFake{set: domain.EmptyCitationSet()},
		ingest:    &ingestFake{},
	}
	return NewRouter(cfg, deps.ingest, deps.answers, deps.citations, nil).Handler(), deps
}
