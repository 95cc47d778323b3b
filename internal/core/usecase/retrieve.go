package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

type RetrievalConfig struct {
	CandidateLimit int
	MinScore       float64
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{CandidateLimit: 60, MinScore: 0.30}
}

type RetrievalResult struct {
	Candidates []domain.Candidate
	Strategy   domain.Strategy
	Keywords   []string
}

// HybridRetriever biases the query embedding with extracted technical terms,
// then runs one over-fetching similarity search.
type HybridRetriever struct {
	embedder ports.Embedder
	store    ports.ChunkStore
	terms    ports.TermExtractor
	cfg      RetrievalConfig
}

func NewHybridRetriever(embedder ports.Embedder, store ports.ChunkStore, terms ports.TermExtractor, cfg RetrievalConfig) *HybridRetriever {
	def := DefaultRetrievalConfig()
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	if cfg.MinScore < 0 {
		cfg.MinScore = def.MinScore
	}
	if terms == nil {
		terms = NewRegexTermExtractor()
	}
	return &HybridRetriever{embedder: embedder, store: store, terms: terms, cfg: cfg}
}

func (r *HybridRetriever) Retrieve(ctx context.Context, req domain.QueryRequest) (RetrievalResult, error) {
	keywords := r.terms.Extract(req.Query)

	vector, err := r.embedder.EmbedQuery(ctx, augmentQuery(req.Query, keywords))
	if err != nil {
		return RetrievalResult{}, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}
	if len(vector) == 0 {
		return RetrievalResult{}, domain.WrapError(domain.ErrRetrieval, "embed query", fmt.Errorf("empty query vector"))
	}

	candidates, err := r.store.Search(ctx, vector, r.cfg.CandidateLimit, ports.ChunkSearchFilter{
		ManualID: req.ManualID,
		TenantID: req.TenantID,
		MinScore: r.cfg.MinScore,
	})
	if err != nil {
		return RetrievalResult{}, domain.WrapError(domain.ErrRetrieval, "search chunks", err)
	}

	for i := range candidates {
		candidates[i].OriginalScore = candidates[i].Score
		candidates[i].RerankScore = nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	strategy := domain.StrategyNone
	if len(candidates) > 0 {
		strategy = domain.StrategyVector
	}
	return RetrievalResult{Candidates: candidates, Strategy: strategy, Keywords: keywords}, nil
}

func augmentQuery(query string, keywords []string) string {
	if len(keywords) == 0 {
		return query
	}
	return query + "\nKeywords: " + strings.Join(keywords, " ")
}
