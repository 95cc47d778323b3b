package crossencoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	p := resilience.SingleAttempt(time.Second)
	p.BreakerEnabled = false
	return resilience.NewExecutor(p)
}

func TestScoreMapsResultsByIndex(t *testing.T) {
	var got rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rerank" || r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.91},{"index":0,"relevance_score":0.12},{"index":7,"relevance_score":0.99}]}`))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, APIKey: "secret", Model: "rerank-v1"}, testExecutor())
	scores, err := client.Score(context.Background(), "E-104", []string{"a", "b"}, 2)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 2 || scores[0].Index != 1 || scores[0].Score != 0.91 {
		t.Fatalf("unexpected scores %+v", scores)
	}
	if got.TopN != 2 || got.Model != "rerank-v1" || len(got.Documents) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestScoreWithoutKeyIsUnauthorizedAndSkipsNetwork(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	_, err := New(Options{BaseURL: server.URL}, testExecutor()).Score(context.Background(), "q", []string{"a"}, 1)
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestScoreEmptyResultsReturnsNoScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	scores, err := New(Options{BaseURL: server.URL, APIKey: "k"}, testExecutor()).Score(context.Background(), "q", []string{"a"}, 1)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 0 {
		t.Fatalf("expected no scores, got %+v", scores)
	}
}

func TestScoreServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(Options{BaseURL: server.URL, APIKey: "k"}, testExecutor()).Score(context.Background(), "q", []string{"a"}, 1)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
}
