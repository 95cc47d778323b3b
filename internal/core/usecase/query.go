package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

const (
	stageRetrieve  = "retrieve"
	stageRerank    = "rerank"
	stageDiversify = "diversify"
	stageGate      = "gate"
	stageGenerate  = "generate"
	stageCitations = "citations"
)

type PipelineConfig struct {
	Retrieval      RetrievalConfig
	Rerank         RerankConfig
	Diversify      DiversifyConfig
	Gate           GateConfig
	Citation       CitationConfig
	PartialSources int
	SnippetChars   int
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Retrieval:      DefaultRetrievalConfig(),
		Rerank:         DefaultRerankConfig(),
		Diversify:      DefaultDiversifyConfig(),
		Gate:           DefaultGateConfig(),
		Citation:       DefaultCitationConfig(),
		PartialSources: 3,
		SnippetChars:   300,
	}
}

type QueryDependencies struct {
	Embedder     ports.Embedder
	Chunks       ports.ChunkStore
	Figures      ports.FigureStore
	CrossEncoder ports.CrossEncoder
	Generator    ports.AnswerGenerator
	Terms        ports.TermExtractor
	Observer     ports.QueryObserver
}

// QueryUseCase runs retrieve → rerank → diversify → gate → (generate ∥ cite).
type QueryUseCase struct {
	retriever   *HybridRetriever
	reranker    *CandidateReranker
	diversifier *Diversifier
	gate        *AnswerabilityGate
	citations   *CitationBuilder
	generator   ports.AnswerGenerator
	observer    ports.QueryObserver
	cfg         PipelineConfig
}

func NewQueryUseCase(deps QueryDependencies, cfg PipelineConfig) *QueryUseCase {
	if cfg.PartialSources <= 0 {
		cfg.PartialSources = 3
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = 300
	}
	if cfg.Diversify.TargetCount <= 0 {
		cfg.Diversify.TargetCount = DefaultDiversifyConfig().TargetCount
	}
	if cfg.Diversify.Lambda <= 0 || cfg.Diversify.Lambda > 1 {
		cfg.Diversify.Lambda = DefaultDiversifyConfig().Lambda
	}
	observer := deps.Observer
	if observer == nil {
		observer = NoopObserver{}
	}
	terms := deps.Terms
	if terms == nil {
		terms = NewRegexTermExtractor()
	}
	return &QueryUseCase{
		retriever:   NewHybridRetriever(deps.Embedder, deps.Chunks, terms, cfg.Retrieval),
		reranker:    NewCandidateReranker(deps.CrossEncoder, observer, cfg.Rerank),
		diversifier: NewDiversifier(terms, cfg.Diversify.TechnicalBonus),
		gate:        NewAnswerabilityGate(cfg.Gate),
		citations:   NewCitationBuilder(deps.Chunks, deps.Figures, observer, cfg.Citation),
		generator:   deps.Generator,
		observer:    observer,
		cfg:         cfg,
	}
}

// Citations exposes the builder for the standalone citation endpoint.
func (uc *QueryUseCase) Citations() *CitationBuilder {
	return uc.citations
}

// queryState is owned by one request and dropped when it returns.
type queryState struct {
	req       domain.QueryRequest
	retrieval RetrievalResult
	rerank    RerankOutcome
	selected  []domain.Candidate
	decision  GateDecision
}

func (s *queryState) noEvidence() bool {
	return len(s.retrieval.Candidates) == 0
}

func (uc *QueryUseCase) Answer(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResponse, error) {
	st, err := uc.prepare(ctx, req)
	if err != nil {
		uc.observer.ObserveOutcome(domain.StrategyError, "", 0)
		return nil, err
	}
	if resp, done := uc.shortCircuit(ctx, st); done {
		return resp, nil
	}

	chunks := domain.CandidateChunks(st.selected)
	var (
		answer    string
		citations domain.CitationSet
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		started := time.Now()
		text, err := uc.generator.GenerateAnswer(egCtx, st.req.Query, chunks)
		uc.observer.ObserveStage(stageGenerate, time.Since(started), err)
		if err != nil {
			return domain.WrapError(domain.ErrGeneration, "generate answer", err)
		}
		answer = text
		return nil
	})
	eg.Go(func() error {
		started := time.Now()
		citations = uc.citations.BuildFromChunks(egCtx, chunks)
		uc.observer.ObserveStage(stageCitations, time.Since(started), nil)
		return nil
	})
	if err := eg.Wait(); err != nil {
		uc.observer.ObserveOutcome(domain.StrategyError, "", len(st.retrieval.Candidates))
		return nil, err
	}

	resp := uc.answeredResponse(st, citations)
	resp.Answer = answer
	uc.observer.ObserveOutcome(resp.Strategy, "", len(st.retrieval.Candidates))
	return resp, nil
}

// AnswerStream emits content deltas, then exactly one metadata event. Citations
// are built concurrently with generation and are unaffected by an aborted stream.
func (uc *QueryUseCase) AnswerStream(ctx context.Context, req domain.QueryRequest, emit func(domain.StreamEvent) error) error {
	st, err := uc.prepare(ctx, req)
	if err != nil {
		uc.observer.ObserveOutcome(domain.StrategyError, "", 0)
		return err
	}
	if resp, done := uc.shortCircuit(ctx, st); done {
		message := resp.Answer
		resp.Answer = ""
		if err := emit(domain.StreamEvent{Type: domain.StreamEventContent, Content: message}); err != nil {
			return err
		}
		return emit(domain.StreamEvent{Type: domain.StreamEventMetadata, Response: resp})
	}

	chunks := domain.CandidateChunks(st.selected)
	citeCh := make(chan domain.CitationSet, 1)
	go func() {
		started := time.Now()
		set := uc.citations.BuildFromChunks(ctx, chunks)
		uc.observer.ObserveStage(stageCitations, time.Since(started), nil)
		citeCh <- set
	}()

	started := time.Now()
	err = uc.generator.StreamAnswer(ctx, st.req.Query, chunks, func(delta string) error {
		return emit(domain.StreamEvent{Type: domain.StreamEventContent, Content: delta})
	})
	uc.observer.ObserveStage(stageGenerate, time.Since(started), err)
	if err != nil {
		uc.observer.ObserveOutcome(domain.StrategyError, "", len(st.retrieval.Candidates))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.WrapError(domain.ErrGeneration, "stream answer", err)
	}

	var citations domain.CitationSet
	select {
	case citations = <-citeCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	resp := uc.answeredResponse(st, citations)
	uc.observer.ObserveOutcome(resp.Strategy, "", len(st.retrieval.Candidates))
	return emit(domain.StreamEvent{Type: domain.StreamEventMetadata, Response: resp})
}

// Assessment is the pre-generation view of a query used for gate evaluation.
type Assessment struct {
	Strategy   domain.Strategy
	Candidates []domain.Candidate
	Decision   GateDecision
	Rerank     RerankOutcome
}

// Assess runs every stage up to and including the gate, without generation.
func (uc *QueryUseCase) Assess(ctx context.Context, req domain.QueryRequest) (Assessment, error) {
	st, err := uc.prepare(ctx, req)
	if err != nil {
		return Assessment{}, err
	}
	a := Assessment{
		Strategy:   st.retrieval.Strategy,
		Candidates: st.selected,
		Decision:   st.decision,
		Rerank:     st.rerank,
	}
	if st.noEvidence() {
		a.Decision = GateDecision{Reason: domain.GateReasonNoEvidence}
	}
	return a, nil
}

func (uc *QueryUseCase) GateConfig() GateConfig {
	return uc.gate.Config()
}

func (uc *QueryUseCase) prepare(ctx context.Context, req domain.QueryRequest) (*queryState, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.ManualID = strings.TrimSpace(req.ManualID)
	req.TenantID = strings.TrimSpace(req.TenantID)
	if req.Query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer query", fmt.Errorf("query is empty"))
	}
	st := &queryState{req: req}

	started := time.Now()
	retrieval, err := uc.retriever.Retrieve(ctx, req)
	uc.observer.ObserveStage(stageRetrieve, time.Since(started), err)
	if err != nil {
		slog.ErrorContext(ctx, "retrieval_failed", "manual_id", req.ManualID, "error", err)
		return nil, err
	}
	st.retrieval = retrieval
	if st.noEvidence() {
		return st, nil
	}

	started = time.Now()
	st.rerank = uc.reranker.Rerank(ctx, req.Query, retrieval.Candidates)
	uc.observer.ObserveStage(stageRerank, time.Since(started), nil)

	started = time.Now()
	st.selected = uc.diversifier.Diversify(st.rerank.Candidates, uc.cfg.Diversify.Lambda, uc.cfg.Diversify.TargetCount)
	uc.observer.ObserveStage(stageDiversify, time.Since(started), nil)

	started = time.Now()
	st.decision = uc.gate.Evaluate(st.selected)
	uc.observer.ObserveStage(stageGate, time.Since(started), nil)
	return st, nil
}

// shortCircuit builds the no-evidence or refusal response. done is false when generation should run.
func (uc *QueryUseCase) shortCircuit(ctx context.Context, st *queryState) (*domain.AnswerResponse, bool) {
	if st.noEvidence() {
		resp := &domain.AnswerResponse{
			Answer:     domain.NoEvidenceMessage,
			Citations:  []string{},
			Thumbnails: []domain.Thumbnail{},
			Sources:    []domain.Source{},
			Strategy:   domain.StrategyNone,
			GateReason: domain.GateReasonNoEvidence,
			Metadata:   uc.metadata(st),
		}
		uc.observer.ObserveOutcome(resp.Strategy, resp.GateReason, 0)
		return resp, true
	}
	if st.decision.Answerable {
		return nil, false
	}

	slog.InfoContext(ctx, "gate_rejected",
		"reason", st.decision.Reason,
		"candidates", len(st.selected),
		"max_rerank", st.decision.MaxRerank,
		"max_base", st.decision.MaxBase,
	)
	partial := st.selected
	if len(partial) > uc.cfg.PartialSources {
		partial = partial[:uc.cfg.PartialSources]
	}
	resp := &domain.AnswerResponse{
		Answer:     domain.InsufficientEvidenceMessage,
		Citations:  []string{},
		Thumbnails: []domain.Thumbnail{},
		Sources:    uc.sources(partial),
		Strategy:   st.retrieval.Strategy,
		GateReason: st.decision.Reason,
		Metadata:   uc.metadata(st),
	}
	uc.observer.ObserveOutcome(resp.Strategy, resp.GateReason, len(st.retrieval.Candidates))
	return resp, true
}

func (uc *QueryUseCase) answeredResponse(st *queryState, citations domain.CitationSet) *domain.AnswerResponse {
	if citations.Citations == nil {
		citations.Citations = []string{}
	}
	if citations.Thumbnails == nil {
		citations.Thumbnails = []domain.Thumbnail{}
	}
	return &domain.AnswerResponse{
		Citations:  citations.Citations,
		Thumbnails: citations.Thumbnails,
		Sources:    uc.sources(st.selected),
		Strategy:   st.retrieval.Strategy,
		Metadata:   uc.metadata(st),
	}
}

func (uc *QueryUseCase) metadata(st *queryState) domain.AnswerMetadata {
	scores := make([]float64, 0, len(st.selected))
	for _, c := range st.selected {
		if c.RerankScore != nil {
			scores = append(scores, *c.RerankScore)
		}
	}
	return domain.AnswerMetadata{
		RetrievalStrategy: st.retrieval.Strategy,
		CandidateCount:    len(st.retrieval.Candidates),
		RerankScores:      scores,
		RerankFallback:    st.rerank.FallbackUsed,
		FallbackReason:    st.rerank.FallbackReason,
		Keywords:          st.retrieval.Keywords,
	}
}

func (uc *QueryUseCase) sources(candidates []domain.Candidate) []domain.Source {
	out := make([]domain.Source, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, domain.Source{
			ID:          c.ID,
			ManualID:    c.ManualID,
			PageStart:   c.PageStart,
			PageEnd:     c.PageEnd,
			SectionPath: c.SectionPath,
			Snippet:     truncateRunes(strings.TrimSpace(c.Content), uc.cfg.SnippetChars),
			Score:       c.Score,
			RerankScore: c.RerankScore,
		})
	}
	return out
}
