package config

import (
	"testing"
	"time"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	for _, key := range []string{
		"RETRIEVAL_CANDIDATE_LIMIT", "RETRIEVAL_MIN_SCORE", "MMR_LAMBDA", "MMR_TARGET_COUNT",
		"GATE_MIN_CANDIDATES", "GATE_RERANK_FLOOR", "GATE_BASE_FLOOR", "RERANK_TOP_N",
		"CHUNK_STORE", "CHUNK_TOKENIZER", "NATS_SUBJECT", "RERANK_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.RetrievalCandidateLimit != 60 || cfg.RetrievalMinScore != 0.30 {
		t.Fatalf("unexpected retrieval defaults %d/%v", cfg.RetrievalCandidateLimit, cfg.RetrievalMinScore)
	}
	if cfg.MMRLambda != 0.7 || cfg.MMRTargetCount != 6 {
		t.Fatalf("unexpected MMR defaults %v/%d", cfg.MMRLambda, cfg.MMRTargetCount)
	}
	if cfg.GateMinCandidates != 3 || cfg.GateRerankFloor != 0.45 || cfg.GateBaseFloor != 0.35 {
		t.Fatalf("unexpected gate defaults %+v", cfg)
	}
	if cfg.RerankTopN != 10 || cfg.RerankTimeout != 5*time.Second {
		t.Fatalf("unexpected rerank defaults %d/%v", cfg.RerankTopN, cfg.RerankTimeout)
	}
	if cfg.ChunkStore != "postgres" || cfg.ChunkTokenizer != "words" || cfg.NATSSubject != "manuals.ingest" {
		t.Fatalf("unexpected wiring defaults %q/%q/%q", cfg.ChunkStore, cfg.ChunkTokenizer, cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("GATE_RERANK_FLOOR", "0.5")
	t.Setenv("MMR_TARGET_COUNT", "8")
	t.Setenv("CHUNK_STORE", "Qdrant")
	t.Setenv("GENERATE_TIMEOUT", "90s")
	t.Setenv("RERANK_ENABLED", "false")

	cfg := Load()
	if cfg.GateRerankFloor != 0.5 || cfg.MMRTargetCount != 8 {
		t.Fatalf("overrides not applied: %v/%d", cfg.GateRerankFloor, cfg.MMRTargetCount)
	}
	if cfg.ChunkStore != "qdrant" {
		t.Fatalf("expected lower-cased store kind, got %q", cfg.ChunkStore)
	}
	if cfg.GenerateTimeout != 90*time.Second || cfg.RerankEnabled {
		t.Fatalf("unexpected timeout/enabled %v/%v", cfg.GenerateTimeout, cfg.RerankEnabled)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("GATE_BASE_FLOOR", "high")
	t.Setenv("EMBED_TIMEOUT", "10")
	t.Setenv("EMBED_BATCH_SIZE", "many")

	cfg := Load()
	if cfg.GateBaseFloor != 0.35 || cfg.EmbedTimeout != 10*time.Second || cfg.EmbedBatchSize != 32 {
		t.Fatalf("malformed values must fall back: %v/%v/%d", cfg.GateBaseFloor, cfg.EmbedTimeout, cfg.EmbedBatchSize)
	}
}

func TestStageViewsMirrorLoadedValues(t *testing.T) {
	t.Setenv("CHUNK_SOFT_LIMIT", "400")
	t.Setenv("CHUNK_TOKENIZER", "TikToken")
	t.Setenv("GENERATION_MAX_TOKENS", "512")

	cfg := Load()
	chunking := cfg.Chunking()
	if chunking.SoftLimit != 400 || chunking.Tokenizer != "tiktoken" || chunking.HardLimit != cfg.ChunkHardLimit {
		t.Fatalf("unexpected chunking view %+v", chunking)
	}
	generation := cfg.Generation()
	if generation.MaxTokens != 512 || generation.Temperature != cfg.GenerationTemperature {
		t.Fatalf("unexpected generation view %+v", generation)
	}
}
