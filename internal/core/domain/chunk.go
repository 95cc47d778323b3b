package domain

import (
	"errors"
	"fmt"
)

// MaxValidPage is the exclusive upper bound for page numbers. Anything at or
// above it is treated as corrupt extraction output.
const MaxValidPage = 1000

// ValidPage reports whether p is a plausible manual page number.
func ValidPage(p int) bool {
	return p > 0 && p < MaxValidPage
}

// ManualDocument is a page-tagged markdown body produced by the conversion step.
type ManualDocument struct {
	ManualID string `json:"manual_id"`
	TenantID string `json:"tenant_id,omitempty"`
	Version  string `json:"version"`
	Body     string `json:"-"`
}

// Chunk is the atomic retrieval unit. Immutable once ingested.
type Chunk struct {
	ID          string         `json:"id"`
	ManualID    string         `json:"manual_id"`
	TenantID    string         `json:"tenant_id,omitempty"`
	Version     string         `json:"version"`
	PageStart   int            `json:"page_start"`
	PageEnd     int            `json:"page_end"`
	SectionPath []string       `json:"section_path,omitempty"`
	Content     string         `json:"content"`
	Embedding   []float32      `json:"-"`
	Features    map[string]any `json:"features,omitempty"`
}

func (c Chunk) Validate() error {
	if c.ID == "" {
		return WrapError(ErrInvalidInput, "validate chunk", errors.New("empty id"))
	}
	if c.ManualID == "" {
		return WrapError(ErrInvalidInput, "validate chunk", fmt.Errorf("chunk %s: empty manual id", c.ID))
	}
	if !ValidPage(c.PageStart) || !ValidPage(c.PageEnd) || c.PageStart > c.PageEnd {
		return WrapError(ErrInvalidInput, "validate chunk", fmt.Errorf("chunk %s: corrupt page range %d-%d", c.ID, c.PageStart, c.PageEnd))
	}
	return nil
}

// Candidate is a chunk scored against one query. Never persisted.
type Candidate struct {
	Chunk
	Score         float64  `json:"score"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
	OriginalScore float64  `json:"original_score"`
}

// EffectiveScore is the cross-encoder score when present, else the vector score.
func (c Candidate) EffectiveScore() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.Score
}

func CandidateChunks(candidates []Candidate) []Chunk {
	out := make([]Chunk, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Chunk)
	}
	return out
}

func CandidateIDs(candidates []Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.ID)
	}
	return out
}
