package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
	"github.com/kirillkom/manual-assistant/internal/observability/metrics"
)

const (
	serviceName  = "api"
	tenantHeader = "X-Tenant-Id"
)

type Router struct {
	cfg       config.Config
	ingest    ports.ManualIngestService
	answers   ports.ManualQueryService
	citations ports.CitationService
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.ManualIngestService,
	answers ports.ManualQueryService,
	citations ports.CitationService,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		ingest:    ingest,
		answers:   answers,
		citations: citations,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/answers", rt.answer)
	mux.HandleFunc("POST /v1/citations", rt.buildCitations)
	mux.HandleFunc("POST /v1/manuals/{manual_id}/ingest", rt.ingestManual)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	if rt.cfg.APIRateLimitRPS > 0 {
		burst := rt.cfg.APIRateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		handler = rateLimitMiddleware(handler, rate.NewLimiter(rate.Limit(rt.cfg.APIRateLimitRPS), burst))
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerRequest struct {
	Query    string `json:"query"`
	ManualID string `json:"manual_id"`
	TenantID string `json:"tenant_id"`
	Stream   bool   `json:"stream"`
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := rt.decodeJSON(w, r, &req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeErrorBody(w, http.StatusBadRequest, "query is required")
		return
	}
	query := domain.QueryRequest{
		Query:    req.Query,
		ManualID: req.ManualID,
		TenantID: req.TenantID,
	}
	if query.TenantID == "" {
		query.TenantID = strings.TrimSpace(r.Header.Get(tenantHeader))
	}

	if req.Stream || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		rt.streamAnswer(w, r, query)
		return
	}

	resp, err := rt.answers.Answer(r.Context(), query)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) streamAnswer(w http.ResponseWriter, r *http.Request, query domain.QueryRequest) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeErrorBody(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = rt.answers.AnswerStream(r.Context(), query, func(ev domain.StreamEvent) error {
		return sse.send(string(ev.Type), ev)
	})
	if err == nil {
		return
	}
	if r.Context().Err() != nil {
		slog.InfoContext(r.Context(), "answer_stream_aborted", "error", err)
		return
	}
	if !sse.started {
		writeError(r.Context(), w, err)
		return
	}

	status := mapErrorToHTTPStatus(err)
	slog.ErrorContext(r.Context(), "answer_stream_failed", "status", status, "error", err)
	_ = sse.send(string(domain.StreamEventError), domain.StreamEvent{
		Type:  domain.StreamEventError,
		Error: publicErrorMessage(status, err),
	})
}

type citationRequest struct {
	ChunkIDs []string `json:"chunk_ids"`
}

func (rt *Router) buildCitations(w http.ResponseWriter, r *http.Request) {
	var req citationRequest
	if err := rt.decodeJSON(w, r, &req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, err.Error())
		return
	}
	set, err := rt.citations.Build(r.Context(), req.ChunkIDs)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

type ingestRequest struct {
	StorageKey string `json:"storage_key"`
	Version    string `json:"version"`
	TenantID   string `json:"tenant_id"`
}

// ingestManual accepts either a JSON pointer to an already stored source or the
// page-tagged markdown itself as the request body.
func (rt *Router) ingestManual(w http.ResponseWriter, r *http.Request) {
	manualID := strings.TrimSpace(r.PathValue("manual_id"))
	if manualID == "" {
		writeErrorBody(w, http.StatusBadRequest, "manual id is required")
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		event domain.IngestEvent
		err   error
	)
	switch mediaType {
	case "application/json":
		var req ingestRequest
		if decodeErr := rt.decodeJSON(w, r, &req); decodeErr != nil {
			writeErrorBody(w, http.StatusBadRequest, decodeErr.Error())
			return
		}
		tenantID := req.TenantID
		if tenantID == "" {
			tenantID = strings.TrimSpace(r.Header.Get(tenantHeader))
		}
		event, err = rt.ingest.Submit(r.Context(), domain.IngestEvent{
			ManualID:   manualID,
			TenantID:   tenantID,
			Version:    req.Version,
			StorageKey: req.StorageKey,
		})
	case "text/markdown", "text/plain":
		body := http.MaxBytesReader(w, r.Body, rt.maxBodyBytes())
		event, err = rt.ingest.Upload(r.Context(), manualID, r.Header.Get(tenantHeader), r.URL.Query().Get("version"), body)
	default:
		writeErrorBody(w, http.StatusUnsupportedMediaType, "content type must be application/json, text/markdown or text/plain")
		return
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorBody(w, http.StatusRequestEntityTooLarge, "manual body is too large")
			return
		}
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, event)
}

func (rt *Router) maxBodyBytes() int64 {
	if rt.cfg.APIMaxBodyBytes > 0 {
		return rt.cfg.APIMaxBodyBytes
	}
	return 8 << 20
}

func (rt *Router) decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, rt.maxBodyBytes()))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("invalid json")
	}
	return nil
}

type errorResponse struct {
	Error    string          `json:"error"`
	Sources  []domain.Source `json:"sources"`
	Strategy domain.Strategy `json:"strategy"`
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request_failed", "status", status, "error", err)
	}
	writeErrorBody(w, status, publicErrorMessage(status, err))
}

func writeErrorBody(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		Error:    message,
		Sources:  []domain.Source{},
		Strategy: domain.StrategyError,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
