package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

const (
	RerankFallbackDisabled           = "disabled"
	RerankFallbackMissingCredentials = "missing_credentials"
	RerankFallbackTimeout            = "timeout"
	RerankFallbackUnavailable        = "unavailable"
	RerankFallbackEmptyResponse      = "empty_response"
)

type RerankConfig struct {
	Enabled     bool
	TopN        int
	MaxDocChars int
}

func DefaultRerankConfig() RerankConfig {
	return RerankConfig{Enabled: true, TopN: 10, MaxDocChars: 1500}
}

// RerankOutcome is the reranker's result. A fallback is a normal outcome, not an error.
type RerankOutcome struct {
	Candidates     []domain.Candidate
	FallbackUsed   bool
	FallbackReason string
}

type CandidateReranker struct {
	encoder  ports.CrossEncoder
	observer ports.QueryObserver
	cfg      RerankConfig
}

func NewCandidateReranker(encoder ports.CrossEncoder, observer ports.QueryObserver, cfg RerankConfig) *CandidateReranker {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultRerankConfig().TopN
	}
	if cfg.MaxDocChars <= 0 {
		cfg.MaxDocChars = DefaultRerankConfig().MaxDocChars
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	return &CandidateReranker{encoder: encoder, observer: observer, cfg: cfg}
}

// Rerank scores candidates with the cross-encoder and keeps the best TopN.
// On any failure it returns the first TopN candidates in retrieval order.
func (r *CandidateReranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate) RerankOutcome {
	if len(candidates) == 0 {
		return RerankOutcome{Candidates: candidates}
	}
	if !r.cfg.Enabled || r.encoder == nil {
		return r.fallback(ctx, candidates, RerankFallbackDisabled, nil)
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = truncateRunes(c.Content, r.cfg.MaxDocChars)
	}

	scores, err := r.encoder.Score(ctx, query, documents, r.cfg.TopN)
	if err != nil {
		return r.fallback(ctx, candidates, rerankFailureReason(err), err)
	}
	if len(scores) == 0 {
		return r.fallback(ctx, candidates, RerankFallbackEmptyResponse, nil)
	}

	type scored struct {
		index int
		score float64
	}
	seen := make(map[int]struct{}, len(scores))
	ranked := make([]scored, 0, len(scores))
	for _, s := range scores {
		if s.Index < 0 || s.Index >= len(candidates) {
			continue
		}
		if _, dup := seen[s.Index]; dup {
			continue
		}
		seen[s.Index] = struct{}{}
		ranked = append(ranked, scored{index: s.Index, score: s.Score})
	}
	if len(ranked) == 0 {
		return r.fallback(ctx, candidates, RerankFallbackEmptyResponse, nil)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})
	if len(ranked) > r.cfg.TopN {
		ranked = ranked[:r.cfg.TopN]
	}

	out := make([]domain.Candidate, 0, len(ranked))
	for _, s := range ranked {
		c := candidates[s.index]
		score := s.score
		c.RerankScore = &score
		out = append(out, c)
	}
	return RerankOutcome{Candidates: out}
}

func (r *CandidateReranker) fallback(ctx context.Context, candidates []domain.Candidate, reason string, err error) RerankOutcome {
	n := r.cfg.TopN
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]domain.Candidate, n)
	copy(out, candidates[:n])
	for i := range out {
		out[i].RerankScore = nil
	}

	attrs := []any{"reason", reason, "candidates", len(candidates), "kept", n}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	slog.WarnContext(ctx, "rerank_fallback", attrs...)
	r.observer.ObserveRerankFallback(reason)

	return RerankOutcome{Candidates: out, FallbackUsed: true, FallbackReason: reason}
}

func rerankFailureReason(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrUnauthorized):
		return RerankFallbackMissingCredentials
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return RerankFallbackTimeout
	default:
		return RerankFallbackUnavailable
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
