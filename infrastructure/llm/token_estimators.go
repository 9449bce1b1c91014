package llm

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Default estimator ratios for English contract prose.
const (
	DefaultCharsPerToken = 4.0
	DefaultTokensPerWord = 1.3
)

// WordBasedTokenEstimator multiplies the whitespace word count by a ratio.
type WordBasedTokenEstimator struct{ TokensPerWord float64 }

// NewWordBasedTokenEstimator returns a word estimator. Non-positive ratios
// select DefaultTokensPerWord.
func NewWordBasedTokenEstimator(tokensPerWord float64) *WordBasedTokenEstimator {
	if tokensPerWord <= 0 {
		tokensPerWord = DefaultTokensPerWord
	}
	return &WordBasedTokenEstimator{TokensPerWord: tokensPerWord}
}

// EstimateTokens implements TokenEstimator.
func (e *WordBasedTokenEstimator) EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * e.TokensPerWord)
}

// CharacterBasedTokenEstimator divides the byte length by a ratio.
type CharacterBasedTokenEstimator struct{ charsPerToken float64 }

// NewCharacterBasedTokenEstimator returns a character estimator.
// Non-positive ratios select DefaultCharsPerToken.
func NewCharacterBasedTokenEstimator(charsPerToken float64) *CharacterBasedTokenEstimator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &CharacterBasedTokenEstimator{charsPerToken: charsPerToken}
}

// EstimateTokens implements TokenEstimator.
func (e *CharacterBasedTokenEstimator) EstimateTokens(text string) int {
	return int(float64(len(text)) / e.charsPerToken)
}

// CachingTokenEstimator memoizes another estimator in a bounded LRU.
// Reconciliation resubmits the same clause text, so repeated estimates are
// common within a run.
type CachingTokenEstimator struct {
	underlying TokenEstimator
	cache      *lru.Cache[string, int]
}

// NewCachingTokenEstimator wraps underlying. Non-positive sizes default
// to 1024 entries.
func NewCachingTokenEstimator(underlying TokenEstimator, size int) *CachingTokenEstimator {
	if size <= 0 {
		size = 1024
	}
	// lru.New only fails for non-positive sizes.
	cache, _ := lru.New[string, int](size)
	return &CachingTokenEstimator{underlying: underlying, cache: cache}
}

// EstimateTokens implements TokenEstimator.
func (e *CachingTokenEstimator) EstimateTokens(text string) int {
	if n, ok := e.cache.Get(text); ok {
		return n
	}
	n := e.underlying.EstimateTokens(text)
	e.cache.Add(text, n)
	return n
}

// Len reports the number of cached estimates.
func (e *CachingTokenEstimator) Len() int { return e.cache.Len() }
