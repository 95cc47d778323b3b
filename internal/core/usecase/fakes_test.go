package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

type embedderFake struct {
	mu      sync.Mutex
	queries []string
	batches [][]string
	err     error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i) + 1, 0.5}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type chunkStoreFake struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	byID       map[string]domain.Chunk
	searchErr  error
	lastFilter ports.ChunkSearchFilter
	lastLimit  int
	replaced   []domain.Chunk
	getCalls   int
}

func (f *chunkStoreFake) Search(_ context.Context, _ []float32, limit int, filter ports.ChunkSearchFilter) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]domain.Candidate, len(f.candidates))
	copy(out, f.candidates)
	return out, nil
}

func (f *chunkStoreFake) GetByIDs(_ context.Context, ids []string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	var out []domain.Chunk
	for _, id := range ids {
		if ch, ok := f.byID[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *chunkStoreFake) ReplaceManualChunks(_ context.Context, _, _ string, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = chunks
	return nil
}

type figureStoreFake struct {
	mu      sync.Mutex
	figures map[string][]domain.Figure
	fail    map[string]error
	calls   map[string][]int
}

func (f *figureStoreFake) FiguresOnPages(_ context.Context, manualID string, pages []int) ([]domain.Figure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string][]int)
	}
	f.calls[manualID] = append([]int(nil), pages...)
	if err := f.fail[manualID]; err != nil {
		return nil, err
	}
	return f.figures[manualID], nil
}

type crossEncoderFake struct {
	scores []ports.RelevanceScore
	err    error
	docs   []string
	topN   int
}

func (f *crossEncoderFake) Score(_ context.Context, _ string, documents []string, topN int) ([]ports.RelevanceScore, error) {
	f.docs = documents
	f.topN = topN
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type generatorFake struct {
	mu     sync.Mutex
	answer string
	deltas []string
	err    error
	calls  int
	chunks []domain.Chunk
}

func (f *generatorFake) GenerateAnswer(_ context.Context, _ string, chunks []domain.Chunk) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.chunks = chunks
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *generatorFake) StreamAnswer(ctx context.Context, _ string, chunks []domain.Chunk, onDelta func(string) error) error {
	f.mu.Lock()
	f.calls++
	f.chunks = chunks
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, d := range f.deltas {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return nil
}

type observerFake struct {
	mu             sync.Mutex
	stages         []string
	outcomes       []string
	fallbacks      []string
	figureFailures []string
}

func (o *observerFake) ObserveStage(stage string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

func (o *observerFake) ObserveOutcome(strategy domain.Strategy, gateReason string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, string(strategy)+"/"+gateReason)
}

func (o *observerFake) ObserveRerankFallback(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks = append(o.fallbacks, reason)
}

func (o *observerFake) ObserveFigureLookupFailure(manualID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.figureFailures = append(o.figureFailures, manualID)
}

type storageFake struct {
	savedKey  string
	savedBody string
	body      string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.body)), nil
}

type publisherFake struct {
	events []domain.IngestEvent
	err    error
}

func (f *publisherFake) PublishManualIngested(_ context.Context, event domain.IngestEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f extractorFake) Extract(context.Context, string) (string, error) {
	return f.text, f.err
}

type chunkerFunc func(domain.ManualDocument) []domain.Chunk

func (f chunkerFunc) Split(doc domain.ManualDocument) []domain.Chunk { return f(doc) }

var errBoom = errors.New("boom")

func ptr(v float64) *float64 { return &v }

func cand(id, manualID string, page int, score float64, content string) domain.Candidate {
	return domain.Candidate{
		Chunk: domain.Chunk{
			ID:        id,
			ManualID:  manualID,
			PageStart: page,
			PageEnd:   page,
			Content:   content,
		},
		Score:         score,
		OriginalScore: score,
	}
}
