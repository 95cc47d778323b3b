package ollama

import (
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/manual-assistant/internal/infrastructure/resilience"
)

// Options configures the Ollama-compatible client.
type Options struct {
	BaseURL     string
	GenModel    string
	EmbedModel  string
	MaxTokens   int
	Temperature float64
	HTTPTimeout time.Duration
}

type Client struct {
	baseURL     string
	genModel    string
	embedModel  string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(opts Options, executor *resilience.Executor) *Client {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 350
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultPolicy())
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		genModel:    opts.GenModel,
		embedModel:  opts.EmbedModel,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    executor,
	}
}

func (c *Client) chatOptions() map[string]any {
	return map[string]any{
		"num_predict": c.maxTokens,
		"temperature": c.temperature,
	}
}
