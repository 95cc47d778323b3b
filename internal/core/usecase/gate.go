package usecase

import "github.com/kirillkom/manual-assistant/internal/core/domain"

type GateConfig struct {
	MinCandidates int
	RerankFloor   float64
	BaseFloor     float64
}

func DefaultGateConfig() GateConfig {
	return GateConfig{MinCandidates: 3, RerankFloor: 0.45, BaseFloor: 0.35}
}

type GateDecision struct {
	Answerable bool
	Reason     string
	MaxRerank  float64
	MaxBase    float64
}

// AnswerabilityGate decides whether a candidate set is strong enough to answer from.
type AnswerabilityGate struct {
	cfg GateConfig
}

func NewAnswerabilityGate(cfg GateConfig) *AnswerabilityGate {
	if cfg.MinCandidates <= 0 {
		cfg.MinCandidates = DefaultGateConfig().MinCandidates
	}
	return &AnswerabilityGate{cfg: cfg}
}

func (g *AnswerabilityGate) Config() GateConfig {
	return g.cfg
}

// Evaluate rejects sets smaller than MinCandidates regardless of score, and
// sets where neither the best rerank score nor the best vector score clears its floor.
func (g *AnswerabilityGate) Evaluate(candidates []domain.Candidate) GateDecision {
	return evaluateGate(g.cfg, candidates)
}

func evaluateGate(cfg GateConfig, candidates []domain.Candidate) GateDecision {
	var d GateDecision
	for _, c := range candidates {
		if c.RerankScore != nil && *c.RerankScore > d.MaxRerank {
			d.MaxRerank = *c.RerankScore
		}
		if c.Score > d.MaxBase {
			d.MaxBase = c.Score
		}
	}

	switch {
	case len(candidates) < cfg.MinCandidates:
		d.Reason = domain.GateReasonInsufficientCandidates
	case d.MaxRerank >= cfg.RerankFloor || d.MaxBase >= cfg.BaseFloor:
		d.Answerable = true
	default:
		d.Reason = domain.GateReasonInsufficientQuality
	}
	return d
}

// EvaluateWith runs the gate under alternative thresholds.
func EvaluateWith(cfg GateConfig, candidates []domain.Candidate) GateDecision {
	return evaluateGate(cfg, candidates)
}
