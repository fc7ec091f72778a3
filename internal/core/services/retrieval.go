package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-chat/internal/postprocessors"
)

// Ensure retrievalService implements RetrievalService
var _ driving.RetrievalService = (*retrievalService)(nil)

// retrievalService implements the RetrievalService interface
type retrievalService struct {
	embedders EmbedderProvider
	cache     *IndexCache
	source    driven.KnowledgeSource
	chunkSize int
	topK      int
	logger    *slog.Logger
}

// RetrievalServiceConfig holds configuration for the retrieval service.
type RetrievalServiceConfig struct {
	Embedders EmbedderProvider // Dynamic AI services (runtime.Services)
	Cache     *IndexCache
	Source    driven.KnowledgeSource
	ChunkSize int // Window size in characters (default: postprocessors.DefaultChunkSize)
	TopK      int // Default K (default: domain.DefaultTopK)
	Logger    *slog.Logger
}

// NewRetrievalService creates a new RetrievalService.
// The embedding service is looked up on every call, so a reload that changes
// the model is picked up by the next request.
func NewRetrievalService(cfg RetrievalServiceConfig) driving.RetrievalService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = postprocessors.DefaultChunkSize
	}

	return &retrievalService{
		embedders: cfg.Embedders,
		cache:     cfg.Cache,
		source:    cfg.Source,
		chunkSize: chunkSize,
		topK:      topK,
		logger:    logger,
	}
}

// Retrieve returns the chunks most similar to query
func (s *retrievalService) Retrieve(ctx context.Context, query string, k int) (*domain.RetrievalResult, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = s.topK
	}

	embedder, err := s.embedder()
	if err != nil {
		return nil, err
	}
	model := embedder.Model()

	idx, err := s.cache.Ensure(ctx, embedder, s.source.LoadDocuments, s.chunkSize)
	if err != nil {
		return nil, err
	}

	result := &domain.RetrievalResult{
		Query:  query,
		Model:  model,
		Chunks: []*domain.ScoredChunk{},
	}

	// Nothing to rank against; skip the query embedding call
	if idx.IsEmpty() {
		result.Took = time.Since(start)
		return result, nil
	}

	vector, err := embedder.EmbedQuery(ctx, model, query)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) && !errors.Is(err, domain.ErrEmbeddingShapeMismatch) {
			err = &domain.EmbeddingError{Err: err}
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := TopK(idx, vector, k)
	if err != nil {
		return nil, err
	}

	result.Chunks = scored
	result.Took = time.Since(start)
	return result, nil
}

// Warm builds the index for the active model if it is not cached
func (s *retrievalService) Warm(ctx context.Context) (*domain.IndexStats, error) {
	embedder, err := s.embedder()
	if err != nil {
		return nil, err
	}
	if _, err := s.cache.Ensure(ctx, embedder, s.source.LoadDocuments, s.chunkSize); err != nil {
		return nil, err
	}
	stats := s.cache.Stats()
	return &stats, nil
}

// Rebuild re-reads the knowledge source and re-embeds it
func (s *retrievalService) Rebuild(ctx context.Context) (*domain.IndexStats, error) {
	embedder, err := s.embedder()
	if err != nil {
		return nil, err
	}
	if _, err := s.cache.Rebuild(ctx, embedder, s.source.LoadDocuments, s.chunkSize); err != nil {
		return nil, err
	}
	stats := s.cache.Stats()
	return &stats, nil
}

// queryCacheReporter is implemented by embedding services that cache query
// vectors
type queryCacheReporter interface {
	Stats() (hits, misses int64)
}

// Stats reports the cached index and cache counters, plus query cache
// counters when the active embedding service keeps one
func (s *retrievalService) Stats() domain.IndexStats {
	stats := s.cache.Stats()
	if reporter, ok := s.embedders.EmbeddingService().(queryCacheReporter); ok {
		hits, misses := reporter.Stats()
		stats.QueryCache = &domain.QueryCacheStats{Hits: hits, Misses: misses}
	}
	return stats
}

func (s *retrievalService) embedder() (driven.EmbeddingService, error) {
	embedder := s.embedders.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedding service configured", domain.ErrEmbeddingUnavailable)
	}
	return embedder, nil
}
