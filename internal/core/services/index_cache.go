package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// LoadFunc returns the documents of the knowledge base
type LoadFunc func(ctx context.Context) ([]domain.Document, error)

// EmbedderProvider hands out the currently configured embedding service.
// runtime.Services implements it.
type EmbedderProvider interface {
	EmbeddingService() driven.EmbeddingService
}

var errNoEmbedder = fmt.Errorf("%w: no embedding service configured", domain.ErrEmbeddingUnavailable)

// ProgressFunc reports embedding progress during a rebuild
type ProgressFunc func(done, total int)

// IndexCache holds the embedded knowledge base for one model at a time.
//
// The cached index is replaced atomically and only after a rebuild fully
// succeeds, so readers never see a partial index and a failed rebuild leaves
// the previous one in place. Concurrent misses for the same model share a
// single rebuild. When a DistributedLock is configured, instances take turns
// rebuilding so a model change does not hit the embedding API from every
// instance at once.
type IndexCache struct {
	chunker driven.Chunker
	lock    driven.DistributedLock
	logger  *slog.Logger

	batchSize int
	lockTTL   time.Duration
	lockWait  time.Duration
	lockPoll  time.Duration

	current atomic.Pointer[domain.EmbeddingIndex]
	group   singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	rebuilds atomic.Int64
	failures atomic.Int64

	mu       sync.Mutex
	lastErr  string
	progress ProgressFunc
}

// IndexCacheConfig holds configuration for the index cache.
type IndexCacheConfig struct {
	Chunker   driven.Chunker
	Lock      driven.DistributedLock // Optional: staggers rebuilds across instances
	Logger    *slog.Logger
	BatchSize int           // Texts per embedding call (default: 0, all texts in one call)
	LockTTL   time.Duration // TTL of the rebuild lock (default: 2m)
	LockWait  time.Duration // Max wait for another instance's rebuild (default: 30s)
	LockPoll  time.Duration // Lock retry interval (default: 500ms)
}

// NewIndexCache creates an empty index cache.
func NewIndexCache(cfg IndexCacheConfig) *IndexCache {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * time.Minute
	}

	lockWait := cfg.LockWait
	if lockWait == 0 {
		lockWait = 30 * time.Second
	}

	lockPoll := cfg.LockPoll
	if lockPoll == 0 {
		lockPoll = 500 * time.Millisecond
	}

	return &IndexCache{
		chunker:   cfg.Chunker,
		lock:      cfg.Lock,
		logger:    logger,
		batchSize: cfg.BatchSize,
		lockTTL:   lockTTL,
		lockWait:  lockWait,
		lockPoll:  lockPoll,
	}
}

// Ensure returns the index for the embedder's model, rebuilding it with that
// embedder when the cache is empty or holds another model. A cache hit loads
// no documents and embeds nothing.
//
// Rebuilds are detached from ctx cancellation so a disconnecting client does
// not abort a rebuild other requests are waiting on.
func (c *IndexCache) Ensure(ctx context.Context, embedder driven.EmbeddingService, load LoadFunc, chunkSize int) (*domain.EmbeddingIndex, error) {
	if embedder == nil {
		return nil, c.fail("", errNoEmbedder)
	}
	model := embedder.Model()

	if idx := c.current.Load(); idx.ValidFor(model) {
		c.hits.Add(1)
		return idx, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(model, func() (interface{}, error) {
		if idx := c.current.Load(); idx.ValidFor(model) {
			return idx, nil
		}
		return c.rebuild(context.WithoutCancel(ctx), embedder, load, chunkSize)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.EmbeddingIndex), nil
}

// Rebuild builds a fresh index with embedder even when a valid one is
// cached. On failure the cached index is kept.
func (c *IndexCache) Rebuild(ctx context.Context, embedder driven.EmbeddingService, load LoadFunc, chunkSize int) (*domain.EmbeddingIndex, error) {
	if embedder == nil {
		return nil, c.fail("", errNoEmbedder)
	}
	v, err, _ := c.group.Do("rebuild:"+embedder.Model(), func() (interface{}, error) {
		return c.rebuild(context.WithoutCancel(ctx), embedder, load, chunkSize)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.EmbeddingIndex), nil
}

// Current returns the cached index, or nil
func (c *IndexCache) Current() *domain.EmbeddingIndex {
	return c.current.Load()
}

// Invalidate drops the cached index; the next Ensure rebuilds
func (c *IndexCache) Invalidate() {
	if old := c.current.Swap(nil); old != nil {
		c.logger.Info("index invalidated", "model", old.Model, "chunks", old.Size())
	}
}

// SetProgress installs a callback invoked after every embedding batch
func (c *IndexCache) SetProgress(fn ProgressFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = fn
}

// Stats reports the cached index and cache counters
func (c *IndexCache) Stats() domain.IndexStats {
	stats := domain.IndexStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Rebuilds: c.rebuilds.Load(),
		Failures: c.failures.Load(),
	}

	c.mu.Lock()
	stats.LastError = c.lastErr
	c.mu.Unlock()

	if idx := c.current.Load(); idx != nil {
		builtAt := idx.BuiltAt
		stats.Model = idx.Model
		stats.Chunks = idx.Size()
		stats.Documents = idx.Documents
		stats.Dimensions = idx.Dimensions
		stats.BuiltAt = &builtAt
	}
	return stats
}

func (c *IndexCache) rebuild(ctx context.Context, embedder driven.EmbeddingService, load LoadFunc, chunkSize int) (*domain.EmbeddingIndex, error) {
	start := time.Now()
	model := embedder.Model()

	lease := c.acquireRebuildLock(ctx, model)
	defer lease.release(ctx)

	docs, err := load(ctx)
	if err != nil {
		// A missing knowledge source means an empty knowledge base
		c.logger.Warn("knowledge source failed, building empty index", "model", model, "error", err)
		docs = nil
	}

	chunks, err := c.chunker.Chunk(docs, chunkSize)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, c.fail(model, err)
		}
		c.logger.Warn("skipped invalid documents", "model", model, "error", err)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	vectors, err := c.embedAll(ctx, embedder, lease, texts)
	if err != nil {
		return nil, c.fail(model, err)
	}

	dimensions := 0
	if len(vectors) > 0 {
		dimensions = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dimensions {
			return nil, c.fail(model, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				domain.ErrEmbeddingShapeMismatch, i, len(v), dimensions))
		}
		chunks[i].Embedding = v
	}

	idx := &domain.EmbeddingIndex{
		Model:      model,
		Chunks:     chunks,
		Dimensions: dimensions,
		Documents:  len(docs),
		BuiltAt:    time.Now(),
	}
	c.current.Store(idx)
	c.rebuilds.Add(1)

	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()

	c.logger.Info("index rebuilt",
		"model", model,
		"documents", idx.Documents,
		"chunks", idx.Size(),
		"dimensions", dimensions,
		"took", time.Since(start))
	return idx, nil
}

// embedAll embeds texts in one call, or in batches of batchSize when set,
// and checks every batch for shape. The rebuild lock is extended after each
// batch so a long rebuild keeps it.
func (c *IndexCache) embedAll(ctx context.Context, embedder driven.EmbeddingService, lease rebuildLease, texts []string) ([][]float32, error) {
	model := embedder.Model()

	c.mu.Lock()
	progress := c.progress
	c.mu.Unlock()

	size := c.batchSize
	if size <= 0 {
		size = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := embedder.Embed(ctx, model, texts[start:end])
		if err != nil {
			if !errors.Is(err, domain.ErrEmbeddingUnavailable) && !errors.Is(err, domain.ErrEmbeddingShapeMismatch) {
				err = &domain.EmbeddingError{Err: err}
			}
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: sent %d texts, received %d vectors",
				domain.ErrEmbeddingShapeMismatch, end-start, len(batch))
		}

		vectors = append(vectors, batch...)
		lease.extend(ctx)
		if progress != nil {
			progress(len(vectors), len(texts))
		}
	}
	return vectors, nil
}

// rebuildLease is the cross-instance rebuild lock as seen by one rebuild.
// A lease that was never acquired extends and releases nothing.
type rebuildLease struct {
	c     *IndexCache
	name  string
	model string
	held  bool
}

func (l rebuildLease) extend(ctx context.Context) {
	if !l.held {
		return
	}
	if err := l.c.lock.Extend(ctx, l.name, l.c.lockTTL); err != nil {
		l.c.logger.Warn("failed to extend rebuild lock", "model", l.model, "error", err)
	}
}

func (l rebuildLease) release(ctx context.Context) {
	if !l.held {
		return
	}
	if err := l.c.lock.Release(ctx, l.name); err != nil {
		l.c.logger.Warn("failed to release rebuild lock", "model", l.model, "error", err)
	}
}

// acquireRebuildLock waits for the cross-instance rebuild lock. It gives up
// after lockWait and rebuilds anyway; lock errors are logged, not returned.
func (c *IndexCache) acquireRebuildLock(ctx context.Context, model string) rebuildLease {
	lease := rebuildLease{c: c, name: "index-rebuild:" + model, model: model}
	if c.lock == nil {
		return lease
	}

	deadline := time.Now().Add(c.lockWait)
	for {
		acquired, err := c.lock.Acquire(ctx, lease.name, c.lockTTL)
		if err != nil {
			c.logger.Warn("failed to acquire rebuild lock", "model", model, "error", err)
			return lease
		}
		if acquired {
			lease.held = true
			return lease
		}
		if time.Now().After(deadline) {
			c.logger.Warn("rebuild lock still held elsewhere, rebuilding anyway", "model", model)
			return lease
		}

		c.logger.Debug("rebuild lock held by another instance, waiting", "model", model)
		select {
		case <-ctx.Done():
			return lease
		case <-time.After(c.lockPoll):
		}
	}
}

func (c *IndexCache) fail(model string, err error) error {
	c.failures.Add(1)

	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()

	c.logger.Error("index rebuild failed, keeping previous index", "model", model, "error", err)
	return err
}
