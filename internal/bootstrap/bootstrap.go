package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
	"github.com/kirillkom/manual-assistant/internal/core/usecase"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/rerank/crossencoder"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/vector/qdrant"
)

type Options struct {
	// Observer receives query pipeline telemetry. Nil discards it.
	Observer ports.QueryObserver
	// WithQueue connects to NATS. Without it, ingest requests are processed inline.
	WithQueue bool
}

type App struct {
	Config config.Config

	Queue   *nats.Queue
	Storage ports.ObjectStorage
	Chunker *chunking.Chunker

	IngestUC  *usecase.IngestManualUseCase
	ProcessUC *usecase.ProcessManualUseCase
	QueryUC   *usecase.QueryUseCase

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db, cfg.EmbeddingDims); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	chunks, err := newChunkStore(cfg, db)
	if err != nil {
		app.Close()
		return nil, err
	}
	figures := postgres.NewFigureRepository(db, cfg.DBQueryTimeout)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	app.Storage = storage

	chunker, err := NewChunker(cfg.Chunking())
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Chunker = chunker

	generation := cfg.Generation()
	ollamaOptions := ollama.Options{
		BaseURL:     cfg.OllamaURL,
		GenModel:    cfg.OllamaGenModel,
		EmbedModel:  cfg.OllamaEmbedModel,
		MaxTokens:   generation.MaxTokens,
		Temperature: generation.Temperature,
	}

	// Query-path clients get one attempt per call; ingestion tolerates retries.
	queryEmbedOptions := ollamaOptions
	queryEmbedOptions.HTTPTimeout = cfg.EmbedTimeout
	queryEmbedder := ollama.NewEmbedder(ollama.New(queryEmbedOptions,
		resilience.NewExecutor(resilience.SingleAttempt(cfg.EmbedTimeout))))

	generateOptions := ollamaOptions
	generateOptions.HTTPTimeout = cfg.GenerateTimeout
	generator := ollama.NewGenerator(ollama.New(generateOptions,
		resilience.NewExecutor(resilience.SingleAttempt(cfg.GenerateTimeout))))

	ingestEmbedder := ollama.NewEmbedder(ollama.New(ollamaOptions,
		resilience.NewExecutor(resilience.Background(cfg.EmbedTimeout))))

	var encoder ports.CrossEncoder
	if cfg.RerankEnabled {
		encoder = crossencoder.New(crossencoder.Options{
			BaseURL:     cfg.RerankURL,
			APIKey:      cfg.RerankAPIKey,
			Model:       cfg.RerankModel,
			HTTPTimeout: cfg.RerankTimeout,
		}, resilience.NewExecutor(resilience.SingleAttempt(cfg.RerankTimeout)))
	}

	app.QueryUC = usecase.NewQueryUseCase(usecase.QueryDependencies{
		Embedder:     queryEmbedder,
		Chunks:       chunks,
		Figures:      figures,
		CrossEncoder: encoder,
		Generator:    generator,
		Terms:        usecase.NewRegexTermExtractor(),
		Observer:     opts.Observer,
	}, PipelineConfig(cfg))

	app.ProcessUC = usecase.NewProcessManualUseCase(
		plaintext.NewExtractor(storage),
		chunker,
		ingestEmbedder,
		chunks,
		cfg.EmbedBatchSize,
	)

	var publisher ports.IngestPublisher = inlinePublisher{ingestor: app.ProcessUC}
	if opts.WithQueue {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultPolicy()),
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closers = append(app.closers, queue.Close)
		app.Queue = queue
		publisher = queue
	}
	app.IngestUC = usecase.NewIngestManualUseCase(storage, publisher)

	return app, nil
}

// PipelineConfig maps environment settings onto the query pipeline stages.
func PipelineConfig(cfg config.Config) usecase.PipelineConfig {
	pipeline := usecase.DefaultPipelineConfig()
	pipeline.Retrieval = usecase.RetrievalConfig{
		CandidateLimit: cfg.RetrievalCandidateLimit,
		MinScore:       cfg.RetrievalMinScore,
	}
	pipeline.Rerank = usecase.RerankConfig{
		Enabled:     cfg.RerankEnabled,
		TopN:        cfg.RerankTopN,
		MaxDocChars: cfg.RerankMaxDocChars,
	}
	pipeline.Diversify = usecase.DiversifyConfig{
		Lambda:         cfg.MMRLambda,
		TargetCount:    cfg.MMRTargetCount,
		TechnicalBonus: cfg.MMRTechnicalBonus,
	}
	pipeline.Gate = usecase.GateConfig{
		MinCandidates: cfg.GateMinCandidates,
		RerankFloor:   cfg.GateRerankFloor,
		BaseFloor:     cfg.GateBaseFloor,
	}
	pipeline.Citation = usecase.CitationConfig{
		MinCaptionChars: cfg.FigureMinCaptionChars,
		MinOCRChars:     cfg.FigureMinOCRChars,
		MaxConcurrency:  cfg.FigureMaxConcurrency,
	}
	return pipeline
}

func NewChunker(cfg config.ChunkingConfig) (*chunking.Chunker, error) {
	counter, err := chunking.NewTokenCounter(cfg.Tokenizer, cfg.TokenizerModel, cfg.TokensPerWord)
	if err != nil {
		return nil, fmt.Errorf("init token counter: %w", err)
	}
	return chunking.New(chunking.Options{
		SoftLimit: cfg.SoftLimit,
		HardLimit: cfg.HardLimit,
		Counter:   counter,
	}), nil
}

func newChunkStore(cfg config.Config, db *sql.DB) (ports.ChunkStore, error) {
	switch cfg.ChunkStore {
	case "", "postgres":
		return postgres.NewChunkRepository(db, cfg.DBQueryTimeout), nil
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil
	default:
		return nil, fmt.Errorf("unknown chunk store %q", cfg.ChunkStore)
	}
}

// inlinePublisher processes an ingest event in the caller's goroutine.
type inlinePublisher struct {
	ingestor ports.ManualIngestor
}

func (p inlinePublisher) PublishManualIngested(ctx context.Context, event domain.IngestEvent) error {
	chunks, err := p.ingestor.IngestManual(ctx, event)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "manual_ingested", "manual_id", event.ManualID, "version", event.Version, "chunks", chunks)
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
