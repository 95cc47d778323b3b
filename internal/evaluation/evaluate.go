package evaluation

import (
	"context"
	"log/slog"
	"math"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/usecase"
)

// Assessor runs a query up to the gate without generating an answer.
type Assessor interface {
	Assess(ctx context.Context, req domain.QueryRequest) (usecase.Assessment, error)
}

// Observation is the recorded pre-generation state of one case.
type Observation struct {
	Case       Case
	Strategy   domain.Strategy
	Candidates []domain.Candidate
	Decision   usecase.GateDecision
	Err        error
}

// Scores treats "answerable" as the positive class.
type Scores struct {
	Total          int     `json:"total"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
}

type SweepPoint struct {
	RerankFloor float64 `json:"rerank_floor"`
	BaseFloor   float64 `json:"base_floor"`
	Scores      Scores  `json:"scores"`
}

type Report struct {
	Cases      int                `json:"cases"`
	Errors     int                `json:"errors"`
	Gate       usecase.GateConfig `json:"gate"`
	Configured Scores             `json:"configured"`
	Sweep      []SweepPoint       `json:"sweep"`
	Best       SweepPoint         `json:"best"`
}

// Record assesses every case. Per-case failures are kept on the observation;
// only context cancellation aborts the run.
func Record(ctx context.Context, assessor Assessor, set Set) ([]Observation, error) {
	out := make([]Observation, 0, len(set.Cases))
	for _, c := range set.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := assessor.Assess(ctx, c.Request())
		if err != nil {
			slog.WarnContext(ctx, "eval_case_failed", "query", c.Query, "error", err)
			out = append(out, Observation{Case: c, Strategy: domain.StrategyError, Err: err})
			continue
		}
		out = append(out, Observation{
			Case:       c,
			Strategy:   a.Strategy,
			Candidates: a.Candidates,
			Decision:   a.Decision,
		})
	}
	return out, nil
}

// ScoreGate replays the gate under cfg against the recorded candidates.
func ScoreGate(observations []Observation, cfg usecase.GateConfig) Scores {
	var s Scores
	for _, o := range observations {
		if o.Err != nil {
			continue
		}
		predicted := o.Strategy != domain.StrategyNone && usecase.EvaluateWith(cfg, o.Candidates).Answerable
		s.Total++
		switch {
		case predicted && o.Case.Answerable:
			s.TruePositives++
		case predicted && !o.Case.Answerable:
			s.FalsePositives++
		case !predicted && !o.Case.Answerable:
			s.TrueNegatives++
		default:
			s.FalseNegatives++
		}
	}
	s.Accuracy = ratio(s.TruePositives+s.TrueNegatives, s.Total)
	s.Precision = ratio(s.TruePositives, s.TruePositives+s.FalsePositives)
	s.Recall = ratio(s.TruePositives, s.TruePositives+s.FalseNegatives)
	return s
}

// Sweep scores every (rerank floor, base floor) pair, keeping MinCandidates from base.
func Sweep(observations []Observation, base usecase.GateConfig, rerankFloors, baseFloors []float64) []SweepPoint {
	points := make([]SweepPoint, 0, len(rerankFloors)*len(baseFloors))
	for _, rf := range rerankFloors {
		for _, bf := range baseFloors {
			cfg := base
			cfg.RerankFloor = rf
			cfg.BaseFloor = bf
			points = append(points, SweepPoint{RerankFloor: rf, BaseFloor: bf, Scores: ScoreGate(observations, cfg)})
		}
	}
	return points
}

// Best prefers accuracy, then precision. Earlier points win ties.
func Best(points []SweepPoint) SweepPoint {
	var best SweepPoint
	for i, p := range points {
		if i == 0 ||
			p.Scores.Accuracy > best.Scores.Accuracy ||
			(p.Scores.Accuracy == best.Scores.Accuracy && p.Scores.Precision > best.Scores.Precision) {
			best = p
		}
	}
	return best
}

func Evaluate(ctx context.Context, assessor Assessor, set Set, gate usecase.GateConfig, rerankFloors, baseFloors []float64) (Report, error) {
	observations, err := Record(ctx, assessor, set)
	if err != nil {
		return Report{}, err
	}
	report := Report{
		Cases:      len(observations),
		Gate:       gate,
		Configured: ScoreGate(observations, gate),
		Sweep:      Sweep(observations, gate, rerankFloors, baseFloors),
	}
	for _, o := range observations {
		if o.Err != nil {
			report.Errors++
		}
	}
	report.Best = Best(report.Sweep)
	return report, nil
}

// Floors returns from..to inclusive in step increments, rounded to two decimals.
func Floors(from, to, step float64) []float64 {
	if step <= 0 || to < from {
		return nil
	}
	n := int(math.Round((to-from)/step)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, math.Round((from+float64(i)*step)*100)/100)
	}
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
