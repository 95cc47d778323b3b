package chunking

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many model tokens a text costs.
type TokenCounter interface {
	Count(text string) int
}

// WordHeuristic approximates tokens as words × factor.
type WordHeuristic struct {
	TokensPerWord float64
}

func (h WordHeuristic) Count(text string) int {
	factor := h.TokensPerWord
	if factor <= 0 {
		factor = 1.3
	}
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * factor))
}

// TiktokenCounter counts with a BPE encoding.
type TiktokenCounter struct {
	mu       sync.RWMutex
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter resolves the encoding for model, falling back to cl100k_base.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding: %w", err)
		}
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// NewTokenCounter builds the counter named by kind ("words" or "tiktoken").
func NewTokenCounter(kind, model string, tokensPerWord float64) (TokenCounter, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "words":
		return WordHeuristic{TokensPerWord: tokensPerWord}, nil
	case "tiktoken":
		return NewTiktokenCounter(model)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}
