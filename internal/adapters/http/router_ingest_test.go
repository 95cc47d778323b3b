package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

func TestHealthzEndpoint(t *testing.T) {
	handler, _ := newTestRouter(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestIngestSubmitsStoredSource(t *testing.T) {
	handler, deps := newTestRouter(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/manuals/pump-x1/ingest", strings.NewReader(`{"storage_key":"pump-x1_v2.md","version":"v2"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "acme")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	want := domain.IngestEvent{ManualID: "pump-x1", TenantID: "acme", Version: "v2", StorageKey: "pump-x1_v2.md"}
	if len(deps.ingest.submitted) != 1 || deps.ingest.submitted[0] != want {
		t.Fatalf("unexpected submitted events %+v", deps.ingest.submitted)
	}
}

func TestIngestUploadsMarkdownBody(t *testing.T) {
	handler, deps := newTestRouter(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/manuals/pump-x1/ingest?version=v3", strings.NewReader("<!-- page 1 -->\nReset the unit."))
	req.Header.Set("Content-Type", "text/markdown; charset=utf-8")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if deps.ingest.uploaded != "<!-- page 1 -->\nReset the unit." {
		t.Fatalf("unexpected uploaded body %q", deps.ingest.uploaded)
	}
	var event domain.IngestEvent
	if err := json.NewDecoder(res.Body).Decode(&event); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if event.Version != "v3" || event.ManualID != "pump-x1" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestIngestRejectsOversizedBody(t *testing.T) {
	handler, _ := newTestRouter(config.Config{APIMaxBodyBytes: 8})

	req := httptest.NewRequest(http.MethodPost, "/v1/manuals/pump-x1/ingest", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestIngestRejectsUnknownContentType(t *testing.T) {
	handler, _ := newTestRouter(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/manuals/pump-x1/ingest", strings.NewReader("%PDF"))
	req.Header.Set("Content-Type", "application/pdf")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", res.Code)
	}
}
