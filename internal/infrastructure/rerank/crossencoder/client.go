package crossencoder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/httpjson"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/resilience"
)

const serviceName = "rerank"

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	HTTPTimeout time.Duration
}

// Client calls a cross-encoder rerank endpoint (POST /v1/rerank).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(opts Options, executor *resilience.Executor) *Client {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.SingleAttempt(timeout))
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      opts.Model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score returns relevance scores keyed by document index. An empty result is
// not an error; callers treat it as a failed rerank.
func (c *Client) Score(ctx context.Context, query string, documents []string, topN int) ([]ports.RelevanceScore, error) {
	if c.apiKey == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "rerank", fmt.Errorf("api key is not configured"))
	}
	if len(documents) == 0 {
		return nil, nil
	}

	payload := rerankRequest{Model: c.model, Query: query, Documents: documents, TopN: topN}
	resp, err := resilience.Do(ctx, c.executor, serviceName+".score", func(callCtx context.Context) (rerankResponse, error) {
		var out rerankResponse
		err := httpjson.Post(callCtx, c.httpClient, httpjson.Request{
			Service:   serviceName,
			Operation: "score",
			URL:       c.baseURL + "/v1/rerank",
			Headers:   map[string]string{"Authorization": "Bearer " + c.apiKey},
			Payload:   payload,
		}, &out)
		return out, err
	}, httpjson.Classify)
	if err != nil {
		return nil, httpjson.WrapTemporary("rerank score", err)
	}
	out := make([]ports.RelevanceScore, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue
		}
		out = append(out, ports.RelevanceScore{Index: r.Index, Score: r.RelevanceScore})
	}
	return out, nil
}
