package domain

// Strategy labels how an answer's evidence was obtained.
type Strategy string

const (
	StrategyVector Strategy = "vector"
	StrategyNone   Strategy = "none"
	StrategyError  Strategy = "error"
)

const (
	GateReasonNoEvidence             = "no_evidence"
	GateReasonInsufficientCandidates = "insufficient_candidates"
	GateReasonInsufficientQuality    = "insufficient_quality"
)

const (
	NoEvidenceMessage = "I couldn't find relevant information in the manual to answer that question."

	InsufficientEvidenceMessage = "I found a few passages that might be related, but not enough reliable information " +
		"to answer confidently. Check the sources below, or rephrase the question with a model number, " +
		"error code, or component name."
)

type QueryRequest struct {
	Query    string `json:"query"`
	ManualID string `json:"manual_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

// Source is a redacted candidate returned alongside an answer.
type Source struct {
	ID          string   `json:"id"`
	ManualID    string   `json:"manual_id"`
	PageStart   int      `json:"page_start"`
	PageEnd     int      `json:"page_end"`
	SectionPath []string `json:"section_path,omitempty"`
	Snippet     string   `json:"snippet"`
	Score       float64  `json:"score"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

type AnswerMetadata struct {
	RetrievalStrategy Strategy  `json:"retrieval_strategy"`
	CandidateCount    int       `json:"candidate_count"`
	RerankScores      []float64 `json:"rerank_scores"`
	RerankFallback    bool      `json:"rerank_fallback"`
	FallbackReason    string    `json:"fallback_reason,omitempty"`
	Keywords          []string  `json:"keywords,omitempty"`
}

type AnswerResponse struct {
	Answer     string         `json:"answer"`
	Citations  []string       `json:"citations"`
	Thumbnails []Thumbnail    `json:"thumbnails"`
	Sources    []Source       `json:"sources"`
	Strategy   Strategy       `json:"strategy"`
	GateReason string         `json:"gate_reason,omitempty"`
	Metadata   AnswerMetadata `json:"metadata"`
}

type StreamEventType string

const (
	StreamEventContent  StreamEventType = "content"
	StreamEventMetadata StreamEventType = "metadata"
	StreamEventError    StreamEventType = "error"
)

// StreamEvent is one increment of a streamed answer. The metadata event
// carries the full response with an empty Answer field.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Content  string          `json:"content,omitempty"`
	Response *AnswerResponse `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// IngestEvent asks the worker to (re)chunk one manual.
type IngestEvent struct {
	ManualID   string `json:"manual_id"`
	TenantID   string `json:"tenant_id,omitempty"`
	Version    string `json:"version"`
	StorageKey string `json:"storage_key"`
}
