package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/usecase"
)

type fakeAssessor struct {
	byQuery map[string]usecase.Assessment
	failing map[string]error
	calls   []domain.QueryRequest
}

func (f *fakeAssessor) Assess(_ context.Context, req domain.QueryRequest) (usecase.Assessment, error) {
	f.calls = append(f.calls, req)
	if err, ok := f.failing[req.Query]; ok {
		return usecase.Assessment{}, err
	}
	return f.byQuery[req.Query], nil
}

func candidates(n int, score float64, rerank *float64) []domain.Candidate {
	out := make([]domain.Candidate, n)
	for i := range out {
		out[i] = domain.Candidate{
			Chunk:       domain.Chunk{ID: fmt.Sprintf("c%d", i), ManualID: "pump-x1", PageStart: i + 1, PageEnd: i + 1},
			Score:       score,
			RerankScore: rerank,
		}
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func labeledFixture() (*fakeAssessor, Set) {
	assessor := &fakeAssessor{
		byQuery: map[string]usecase.Assessment{
			"What does E-104 mean?":          {Strategy: domain.StrategyVector, Candidates: candidates(3, 0.50, ptr(0.60))},
			"Why is the pump noisy?":         {Strategy: domain.StrategyVector, Candidates: candidates(3, 0.33, nil)},
			"Is the warranty valid on Mars?": {Strategy: domain.StrategyNone},
			"How do I bake bread?":           {Strategy: domain.StrategyVector, Candidates: candidates(3, 0.28, ptr(0.40))},
		},
		failing: map[string]error{
			"broken": domain.WrapError(domain.ErrRetrieval, "embed query", errors.New("ollama down")),
		},
	}
	set := Set{Cases: []Case{
		{Query: "What does E-104 mean?", ManualID: "pump-x1", Answerable: true},
		{Query: "Why is the pump noisy?", ManualID: "pump-x1", Answerable: true},
		{Query: "Is the warranty valid on Mars?", Answerable: false},
		{Query: "How do I bake bread?", TenantID: "acme", Answerable: false},
		{Query: "broken", Answerable: true},
	}}
	return assessor, set
}

func TestLoadSetParsesCases(t *testing.T) {
	doc := `
cases:
  - query: "What does E-104 mean?"
    manual_id: pump-x1
    tenant_id: acme
    answerable: true
  - query: "How do I bake bread?"
    answerable: false
`
	set, err := LoadSet(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, set.Cases, 2)
	assert.Equal(t, domain.QueryRequest{Query: "What does E-104 mean?", ManualID: "pump-x1", TenantID: "acme"}, set.Cases[0].Request())
	assert.False(t, set.Cases[1].Answerable)
}

func TestLoadSetRejectsMalformedSets(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":         "",
		"no cases":      "cases: []\n",
		"blank query":   "cases:\n  - query: \"  \"\n    answerable: true\n",
		"unknown field": "cases:\n  - query: q\n    expected: yes\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSet(strings.NewReader(doc))
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.ErrInvalidInput), "expected invalid input, got %v", err)
		})
	}
}

func TestRecordKeepsPerCaseFailures(t *testing.T) {
	assessor, set := labeledFixture()

	observations, err := Record(context.Background(), assessor, set)
	require.NoError(t, err)
	require.Len(t, observations, 5)
	assert.Len(t, assessor.calls, 5)
	assert.Equal(t, "acme", assessor.calls[3].TenantID)

	failed := observations[4]
	assert.Equal(t, domain.StrategyError, failed.Strategy)
	assert.True(t, domain.IsKind(failed.Err, domain.ErrRetrieval))
}

func TestRecordStopsOnCancelledContext(t *testing.T) {
	assessor, set := labeledFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Record(ctx, assessor, set)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, assessor.calls)
}

func TestScoreGateUnderConfiguredThresholds(t *testing.T) {
	assessor, set := labeledFixture()
	observations, err := Record(context.Background(), assessor, set)
	require.NoError(t, err)

	scores := ScoreGate(observations, usecase.DefaultGateConfig())
	assert.Equal(t, 4, scores.Total)
	assert.Equal(t, 1, scores.TruePositives)
	assert.Equal(t, 1, scores.FalseNegatives)
	assert.Equal(t, 2, scores.TrueNegatives)
	assert.Equal(t, 0, scores.FalsePositives)
	assert.InDelta(t, 0.75, scores.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, scores.Precision, 1e-9)
	assert.InDelta(t, 0.5, scores.Recall, 1e-9)
}

func TestEvaluateSweepFindsBetterFloors(t *testing.T) {
	assessor, set := labeledFixture()

	report, err := Evaluate(context.Background(), assessor, set, usecase.DefaultGateConfig(),
		[]float64{0.40, 0.45}, []float64{0.30, 0.35})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Cases)
	assert.Equal(t, 1, report.Errors)
	require.Len(t, report.Sweep, 4)
	assert.InDelta(t, 0.75, report.Sweep[0].Scores.Accuracy, 1e-9)
	assert.Equal(t, 1, report.Sweep[0].Scores.FalsePositives)

	assert.Equal(t, 0.45, report.Best.RerankFloor)
	assert.Equal(t, 0.30, report.Best.BaseFloor)
	assert.InDelta(t, 1.0, report.Best.Scores.Accuracy, 1e-9)
	assert.Equal(t, 2, report.Best.Scores.TruePositives)
}

func TestBestBreaksTiesByPrecisionThenOrder(t *testing.T) {
	points := []SweepPoint{
		{RerankFloor: 0.3, Scores: Scores{Accuracy: 0.8, Precision: 0.6}},
		{RerankFloor: 0.4, Scores: Scores{Accuracy: 0.8, Precision: 0.9}},
		{RerankFloor: 0.5, Scores: Scores{Accuracy: 0.8, Precision: 0.9}},
	}
	assert.Equal(t, 0.4, Best(points).RerankFloor)
	assert.Equal(t, SweepPoint{}, Best(nil))
}

func TestFloorsAreRoundedAndInclusive(t *testing.T) {
	assert.Equal(t, []float64{0.3, 0.35, 0.4, 0.45, 0.5}, Floors(0.30, 0.50, 0.05))
	assert.Nil(t, Floors(0.5, 0.3, 0.05))
	assert.Nil(t, Floors(0.3, 0.5, 0))
}
