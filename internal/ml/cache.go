package ml

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedPredictor memoises raw outputs per input text in front of a single
// immutable model. Failed calls are never cached.
type CachedPredictor struct {
	inner  PredictorInterface
	cache  *lru.Cache[string, any]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedPredictor wraps inner with an LRU cache holding up to size entries.
func NewCachedPredictor(inner PredictorInterface, size int) (*CachedPredictor, error) {
	cache, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("create prediction cache: %w", err)
	}
	return &CachedPredictor{inner: inner, cache: cache}, nil
}

// Predict serves cached outputs and forwards only the misses to the model.
func (c *CachedPredictor) Predict(texts []string) ([]any, error) {
	out := make([]any, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = v
			c.hits.Add(1)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	c.misses.Add(int64(len(missTexts)))

	if len(missTexts) == 0 {
		return out, nil
	}

	got, err := c.inner.Predict(missTexts)
	if err != nil {
		return nil, err
	}
	if len(got) == 0 {
		return nil, ErrEmptyPrediction
	}
	if len(got) != len(missTexts) {
		return nil, fmt.Errorf("model returned %d outputs for %d inputs", len(got), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = got[j]
		c.cache.Add(missTexts[j], got[j])
	}
	return out, nil
}

// HitRate returns the fraction of lookups served from the cache.
func (c *CachedPredictor) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Unwrap returns the wrapped model.
func (c *CachedPredictor) Unwrap() PredictorInterface {
	return c.inner
}
