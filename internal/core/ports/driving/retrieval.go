package driving

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// RetrievalService finds knowledge-base chunks relevant to a query
type RetrievalService interface {
	// Retrieve returns the k most similar chunks (k <= 0 uses domain.DefaultTopK).
	// Errors are returned as is; callers decide whether to degrade.
	Retrieve(ctx context.Context, query string, k int) (*domain.RetrievalResult, error)

	// Warm builds the index for the active embedding model if needed
	Warm(ctx context.Context) (*domain.IndexStats, error)

	// Rebuild drops the cached index and builds a fresh one
	Rebuild(ctx context.Context) (*domain.IndexStats, error)

	// Stats reports the cached index and cache counters
	Stats() domain.IndexStats
}

// ContextAssembler renders retrieved chunks into a prompt block
type ContextAssembler interface {
	// Assemble returns the block and how many chunks made it in
	Assemble(scored []*domain.ScoredChunk) (string, int)
}
