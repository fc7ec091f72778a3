package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-chat/internal/postprocessors"
	"github.com/custodia-labs/sercha-chat/internal/runtime"
)

// countEmbedder returns a fixed number of vectors regardless of input
type countEmbedder struct {
	*mocks.MockEmbeddingService
	vectors int
}

func (e *countEmbedder) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, e.vectors)
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type cacheFixture struct {
	services *runtime.Services
	embedder *mocks.MockEmbeddingService
	source   *mocks.MockKnowledgeSource
	cache    *IndexCache
}

func newCacheFixture(t *testing.T, cfg IndexCacheConfig) *cacheFixture {
	t.Helper()

	services := runtime.NewServices(nil)
	embedder := mocks.NewMockEmbeddingService()
	services.SetEmbeddingService(embedder)

	if cfg.Chunker == nil {
		cfg.Chunker = postprocessors.DefaultPipeline()
	}

	return &cacheFixture{
		services: services,
		embedder: embedder,
		source: mocks.NewMockKnowledgeSource(
			domain.Document{ID: "intro.md", Text: "Sercha answers questions about the handbook."},
			domain.Document{ID: "faq.md", Text: "Refunds are processed within fourteen days."},
		),
		cache: NewIndexCache(cfg),
	}
}

func (f *cacheFixture) ensure(t *testing.T) (*domain.EmbeddingIndex, error) {
	t.Helper()
	return f.cache.Ensure(context.Background(), f.services.EmbeddingService(), f.source.LoadDocuments, 800)
}

func TestIndexCache_BuildsOnceThenHits(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})

	first, err := f.ensure(t)
	require.NoError(t, err)
	assert.Equal(t, "mock-embedding-model", first.Model)
	assert.Equal(t, 2, first.Size())
	assert.Equal(t, 2, first.Documents)
	assert.Equal(t, 8, first.Dimensions)

	second, err := f.ensure(t)
	require.NoError(t, err)
	assert.Same(t, first, second)

	assert.Equal(t, 1, f.source.Loads())
	assert.Equal(t, 1, f.embedder.EmbedCalls())

	stats := f.cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Rebuilds)
	assert.Equal(t, 2, stats.Chunks)
	require.NotNil(t, stats.BuiltAt)
}

func TestIndexCache_EveryChunkHasVectorOfIndexDimensions(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	f.source.SetDocuments(domain.Document{ID: "long.md", Text: strings.Repeat("lorem ipsum ", 300)})

	idx, err := f.ensure(t)
	require.NoError(t, err)
	require.Greater(t, idx.Size(), 1)

	for _, c := range idx.Chunks {
		assert.True(t, c.HasEmbedding())
		assert.Len(t, c.Embedding, idx.Dimensions)
	}
}

func TestIndexCache_ModelChangeRebuilds(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})

	first, err := f.ensure(t)
	require.NoError(t, err)

	f.embedder.SetModel("text-embedding-3-large")
	second, err := f.ensure(t)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, "text-embedding-3-large", second.Model)
	assert.Equal(t, 2, f.source.Loads())
	assert.Equal(t, []string{"mock-embedding-model", "text-embedding-3-large"}, f.embedder.Models())
	assert.Same(t, second, f.cache.Current())
}

func TestIndexCache_FailedRebuildKeepsPrevious(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})

	previous, err := f.ensure(t)
	require.NoError(t, err)

	f.embedder.SetFailNext(nil)
	_, err = f.cache.Rebuild(context.Background(), f.embedder, f.source.LoadDocuments, 800)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	var embErr *domain.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 503, embErr.Status)
	assert.Equal(t, "mock embedding failure", embErr.Body)

	assert.Same(t, previous, f.cache.Current())

	stats := f.cache.Stats()
	assert.Equal(t, int64(1), stats.Failures)
	assert.NotEmpty(t, stats.LastError)
}

func TestIndexCache_FailedModelSwitchKeepsPrevious(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})

	previous, err := f.ensure(t)
	require.NoError(t, err)

	f.embedder.SetModel("new-model")
	f.embedder.SetFailNext(nil)
	_, err = f.ensure(t)
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	assert.Same(t, previous, f.cache.Current())
	assert.Equal(t, "mock-embedding-model", f.cache.Current().Model)
}

func TestIndexCache_FirstBuildFailure(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	f.embedder.SetFailNext(errors.New("connection reset"))

	_, err := f.ensure(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Nil(t, f.cache.Current())

	// Recovers on the next attempt
	idx, err := f.ensure(t)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Size())
}

func TestIndexCache_EmptyKnowledgeBase(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	f.source.SetDocuments()

	idx, err := f.ensure(t)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.True(t, idx.IsEmpty())
	assert.Equal(t, 0, idx.Dimensions)
	assert.Equal(t, "mock-embedding-model", idx.Model)
	assert.Equal(t, 0, f.embedder.EmbedCalls())

	// An empty index is still a cache hit
	_, err = f.ensure(t)
	require.NoError(t, err)
	assert.Equal(t, 1, f.source.Loads())
}

func TestIndexCache_LoaderErrorBuildsEmptyIndex(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	f.source.SetError(errors.New("knowledge directory missing"))

	idx, err := f.ensure(t)
	require.NoError(t, err)
	assert.True(t, idx.IsEmpty())
}

func TestIndexCache_WhitespaceOnlyDocumentYieldsNoChunks(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	f.source.SetDocuments(domain.Document{ID: "blank.md", Text: " \n\t  \n"})

	idx, err := f.ensure(t)
	require.NoError(t, err)
	assert.True(t, idx.IsEmpty())
	assert.Equal(t, 1, idx.Documents)
}

func TestIndexCache_InvalidDocumentSkipped(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	f.source.SetDocuments(
		domain.Document{ID: "", Text: "no id"},
		domain.Document{ID: "ok.md", Text: "valid text"},
	)

	idx, err := f.ensure(t)
	require.NoError(t, err)
	require.Equal(t, 1, idx.Size())
	assert.Equal(t, "ok.md", idx.Chunks[0].SourceID)
}

func TestIndexCache_InvalidChunkSize(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})

	_, err := f.cache.Ensure(context.Background(), f.embedder, f.source.LoadDocuments, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, f.cache.Current())
}

func TestIndexCache_BatchesAndReportsProgress(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{BatchSize: 2})
	docs := make([]domain.Document, 5)
	for i := range docs {
		docs[i] = domain.Document{ID: string(rune('a'+i)) + ".md", Text: "document body"}
	}
	f.source.SetDocuments(docs...)

	var mu sync.Mutex
	var progress []int
	f.cache.SetProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 5, total)
		progress = append(progress, done)
	})

	idx, err := f.ensure(t)
	require.NoError(t, err)
	assert.Equal(t, 5, idx.Size())
	assert.Equal(t, 3, f.embedder.EmbedCalls())
	assert.Equal(t, 5, f.embedder.EmbeddedTexts())
	assert.Equal(t, []int{2, 4, 5}, progress)
}

func TestIndexCache_InconsistentDimensions(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	f.embedder.EmbedFn = func(text string) []float32 {
		if strings.HasPrefix(text, "Refunds") {
			return []float32{1, 2}
		}
		return []float32{1, 2, 3}
	}

	_, err := f.ensure(t)
	assert.ErrorIs(t, err, domain.ErrEmbeddingShapeMismatch)
	assert.Nil(t, f.cache.Current())
}

func TestIndexCache_VectorCountMismatch(t *testing.T) {
	embedder := &countEmbedder{MockEmbeddingService: mocks.NewMockEmbeddingService(), vectors: 1}
	cache := NewIndexCache(IndexCacheConfig{Chunker: postprocessors.DefaultPipeline()})
	source := mocks.NewMockKnowledgeSource(
		domain.Document{ID: "a.md", Text: "one"},
		domain.Document{ID: "b.md", Text: "two"},
	)

	_, err := cache.Ensure(context.Background(), embedder, source.LoadDocuments, 800)
	assert.ErrorIs(t, err, domain.ErrEmbeddingShapeMismatch)
}

func TestIndexCache_NoEmbeddingService(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	f.services.SetEmbeddingService(nil)

	_, err := f.cache.Ensure(context.Background(), f.services.EmbeddingService(), f.source.LoadDocuments, 800)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIndexCache_RebuildsWithGivenEmbedder(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	resolved := f.services.EmbeddingService()

	// A reload swaps the registry after the caller resolved its embedder
	replacement := mocks.NewMockEmbeddingService()
	replacement.SetModel("text-embedding-3-large")
	f.services.SetEmbeddingService(replacement)

	idx, err := f.cache.Ensure(context.Background(), resolved, f.source.LoadDocuments, 800)
	require.NoError(t, err)
	assert.Equal(t, "mock-embedding-model", idx.Model)
	assert.Equal(t, 1, f.embedder.EmbedCalls())
	assert.Equal(t, 0, replacement.EmbedCalls())
}

func TestIndexCache_ConcurrentMissesShareOneRebuild(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})
	f.embedder.EmbedFn = func(text string) []float32 {
		time.Sleep(20 * time.Millisecond)
		return []float32{1, 0, 0}
	}

	const callers = 16
	results := make([]*domain.EmbeddingIndex, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := f.ensure(t)
			assert.NoError(t, err)
			results[i] = idx
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.source.Loads())
	assert.Equal(t, 1, f.embedder.EmbedCalls())
	for _, idx := range results {
		assert.Same(t, results[0], idx)
	}
}

func TestIndexCache_RebuildDetachedFromCancellation(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	load := func(ctx context.Context) ([]domain.Document, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []domain.Document{{ID: "a.md", Text: "still indexed"}}, nil
	}

	idx, err := f.cache.Ensure(ctx, f.embedder, load, 800)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Size())
}

func TestIndexCache_Invalidate(t *testing.T) {
	f := newCacheFixture(t, IndexCacheConfig{})

	_, err := f.ensure(t)
	require.NoError(t, err)

	f.cache.Invalidate()
	assert.Nil(t, f.cache.Current())

	_, err = f.ensure(t)
	require.NoError(t, err)
	assert.Equal(t, 2, f.source.Loads())
}

func TestIndexCache_RebuildLock(t *testing.T) {
	t.Run("acquired and released", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		f := newCacheFixture(t, IndexCacheConfig{Lock: lock})

		_, err := f.ensure(t)
		require.NoError(t, err)
		assert.Equal(t, 1, lock.Acquires())
		assert.Equal(t, 1, lock.Releases())
		assert.False(t, lock.IsHeld("index-rebuild:mock-embedding-model"))
	})

	t.Run("extended after every batch", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		f := newCacheFixture(t, IndexCacheConfig{Lock: lock, BatchSize: 1})

		idx, err := f.ensure(t)
		require.NoError(t, err)
		assert.Equal(t, 2, idx.Size())
		assert.Equal(t, []string{"index-rebuild:mock-embedding-model", "index-rebuild:mock-embedding-model"}, lock.Extends())
	})

	t.Run("not extended when never acquired", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
			return false, errors.New("redis down")
		}
		f := newCacheFixture(t, IndexCacheConfig{Lock: lock, BatchSize: 1})

		_, err := f.ensure(t)
		require.NoError(t, err)
		assert.Empty(t, lock.Extends())
	})

	t.Run("held elsewhere rebuilds after wait", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		lock.SetLockHeld("index-rebuild:mock-embedding-model", time.Minute)
		f := newCacheFixture(t, IndexCacheConfig{
			Lock:     lock,
			LockWait: 30 * time.Millisecond,
			LockPoll: 5 * time.Millisecond,
		})

		idx, err := f.ensure(t)
		require.NoError(t, err)
		assert.Equal(t, 2, idx.Size())
		assert.Greater(t, lock.Acquires(), 1)
		assert.Equal(t, 0, lock.Releases())
	})

	t.Run("released by other instance", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		var attempts int
		lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
			attempts++
			return attempts >= 3, nil
		}
		f := newCacheFixture(t, IndexCacheConfig{
			Lock:     lock,
			LockWait: time.Second,
			LockPoll: time.Millisecond,
		})

		_, err := f.ensure(t)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 1, lock.Releases())
	})

	t.Run("backend error does not block rebuild", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
			return false, errors.New("redis down")
		}
		f := newCacheFixture(t, IndexCacheConfig{Lock: lock})

		idx, err := f.ensure(t)
		require.NoError(t, err)
		assert.Equal(t, 2, idx.Size())
	})
}
