package ai

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Ensure CachedEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*CachedEmbedding)(nil)

// CachedEmbedding remembers query vectors keyed by model and query text.
// Batch Embed calls go straight to the wrapped service.
type CachedEmbedding struct {
	inner driven.EmbeddingService
	cache *expirable.LRU[string, []float32]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEmbedding wraps inner with an LRU of size entries. A ttl of 0
// keeps entries until they are evicted by size.
func NewCachedEmbedding(inner driven.EmbeddingService, size int, ttl time.Duration) *CachedEmbedding {
	return &CachedEmbedding{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *CachedEmbedding) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return c.inner.Embed(ctx, model, texts)
}

// EmbedQuery serves repeated queries from the cache
func (c *CachedEmbedding) EmbedQuery(ctx context.Context, model, query string) ([]float32, error) {
	if model == "" {
		model = c.inner.Model()
	}
	key := model + "\x00" + query

	if v, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	v, err := c.inner.EmbedQuery(ctx, model, query)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func (c *CachedEmbedding) Model() string {
	return c.inner.Model()
}

func (c *CachedEmbedding) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}

// Close purges the cache and closes the wrapped service
func (c *CachedEmbedding) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

// Stats returns cache hits and misses
func (c *CachedEmbedding) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
