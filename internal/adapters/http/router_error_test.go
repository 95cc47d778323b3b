package httpadapter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

func TestAnswerMapsDomainErrors(t *testing.T) {
	cases := []struct {
		kind error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrTemporary, http.StatusServiceUnavailable},
		{domain.ErrRetrieval, http.StatusBadGateway},
		{domain.ErrGeneration, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.kind.Error(), func(t *testing.T) {
			handler, deps := newTestRouter(config.Config{})
			deps.answers.err = domain.WrapError(tc.kind, "answer", errors.New("detail"))

			req := httptest.NewRequest(http.MethodPost, "/v1/answers", strings.NewReader(`{"query":"test"}`))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestUnknownErrorDoesNotLeakDetails(t *testing.T) {
	handler, deps := newTestRouter(config.Config{})
	deps.answers.err = errors.New("dial tcp 10.0.0.7:5432: connection refused")

	req := httptest.NewRequest(http.MethodPost, "/v1/answers", strings.NewReader(`{"query":"test"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "10.0.0.7") {
		t.Fatalf("internal detail leaked: %s", res.Body.String())
	}
}

func TestIngestMapsInvalidKeyTo400(t *testing.T) {
	handler, deps := newTestRouter(config.Config{})
	deps.ingest.err = domain.WrapError(domain.ErrInvalidInput, "submit manual", errors.New(`invalid storage key "../x"`))

	req := httptest.NewRequest(http.MethodPost, "/v1/manuals/m/ingest", strings.NewReader(`{"storage_key":"../x"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
