package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingEstimator struct {
	calls int
}

func (c *countingEstimator) EstimateTokens(text string) int {
	c.calls++
	return len(text)
}

func TestWordBasedTokenEstimator(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		text  string
		want  int
	}{
		{"empty", 1.0, "", 0},
		{"one per word", 1.0, "the supplier shall indemnify", 4},
		{"default ratio", 0, "the supplier shall indemnify the buyer", 7},
		{"collapses whitespace", 2.0, "  a \n b  ", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewWordBasedTokenEstimator(tt.ratio).EstimateTokens(tt.text))
		})
	}
}

func TestCharacterBasedTokenEstimator(t *testing.T) {
	assert.Equal(t, 0, NewCharacterBasedTokenEstimator(4).EstimateTokens(""))
	assert.Equal(t, 2, NewCharacterBasedTokenEstimator(4).EstimateTokens("12345678"))
	assert.Equal(t, 2, NewCharacterBasedTokenEstimator(0).EstimateTokens("123456789"))
}

func TestCachingTokenEstimator_MemoizesResults(t *testing.T) {
	// Given a caching estimator over a counting estimator
	base := &countingEstimator{}
	est := NewCachingTokenEstimator(base, 2)

	// When the same text is estimated twice
	first := est.EstimateTokens("clause text")
	second := est.EstimateTokens("clause text")

	// Then the underlying estimator runs once
	assert.Equal(t, first, second)
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, 1, est.Len())
}

func TestCachingTokenEstimator_EvictsLeastRecentlyUsed(t *testing.T) {
	base := &countingEstimator{}
	est := NewCachingTokenEstimator(base, 2)

	est.EstimateTokens("a")
	est.EstimateTokens("bb")
	est.EstimateTokens("ccc")
	assert.Equal(t, 2, est.Len())

	// "a" was evicted and must be recomputed.
	est.EstimateTokens("a")
	assert.Equal(t, 4, base.calls)
}
