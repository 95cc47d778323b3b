package usecase

import (
	"strings"
	"unicode"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

type DiversifyConfig struct {
	Lambda         float64
	TargetCount    int
	TechnicalBonus float64
}

func DefaultDiversifyConfig() DiversifyConfig {
	return DiversifyConfig{Lambda: 0.7, TargetCount: 6, TechnicalBonus: 0.15}
}

// Diversifier selects a relevant, non-redundant subset with maximal marginal relevance.
type Diversifier struct {
	terms ports.TermExtractor
	bonus float64
}

func NewDiversifier(terms ports.TermExtractor, technicalBonus float64) *Diversifier {
	if terms == nil {
		terms = NewRegexTermExtractor()
	}
	return &Diversifier{terms: terms, bonus: technicalBonus}
}

// Diversify returns candidates in selection order. Relevance is the effective
// score plus the technical bonus; redundancy is the maximum word-set Jaccard
// similarity to anything already selected. Ties go to the earliest input index.
func (d *Diversifier) Diversify(candidates []domain.Candidate, lambda float64, target int) []domain.Candidate {
	if target <= 0 || len(candidates) <= target {
		return candidates
	}

	relevance := make([]float64, len(candidates))
	wordSets := make([]map[string]struct{}, len(candidates))
	first := 0
	for i, c := range candidates {
		relevance[i] = c.EffectiveScore()
		if d.bonus != 0 && len(d.terms.Extract(c.Content)) > 0 {
			relevance[i] += d.bonus
		}
		wordSets[i] = toTokenSet(c.Content)
		if c.EffectiveScore() > candidates[first].EffectiveScore() {
			first = i
		}
	}

	selected := make([]int, 0, target)
	taken := make([]bool, len(candidates))
	maxSim := make([]float64, len(candidates))

	pick := func(idx int) {
		selected = append(selected, idx)
		taken[idx] = true
		for i := range candidates {
			if taken[i] {
				continue
			}
			if sim := jaccard(wordSets[i], wordSets[idx]); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}
	pick(first)

	for len(selected) < target {
		best := -1
		bestScore := 0.0
		for i := range candidates {
			if taken[i] {
				continue
			}
			score := lambda*relevance[i] + (1-lambda)*(1-maxSim[i])
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best == -1 {
			break
		}
		pick(best)
	}

	out := make([]domain.Candidate, 0, len(selected))
	for _, idx := range selected {
		out = append(out, candidates[idx])
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for token := range small {
		if _, ok := large[token]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
