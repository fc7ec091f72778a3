package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// similarityEpsilon keeps cosine similarity finite for all-zero vectors
const similarityEpsilon = 1e-12

// CosineSimilarity returns dot(a,b) / (|a|*|b| + eps).
// Vectors of different length score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + similarityEpsilon)
}

// TopK scores the query against every chunk of the index and returns the k
// best, highest first. Equal scores keep index order. k <= 0 uses
// domain.DefaultTopK. An empty index yields an empty, non-nil slice.
func TopK(index *domain.EmbeddingIndex, query []float32, k int) ([]*domain.ScoredChunk, error) {
	if k <= 0 {
		k = domain.DefaultTopK
	}
	if index.IsEmpty() {
		return []*domain.ScoredChunk{}, nil
	}
	if len(query) != index.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index %q has %d",
			domain.ErrEmbeddingShapeMismatch, len(query), index.Model, index.Dimensions)
	}

	scored := make([]*domain.ScoredChunk, len(index.Chunks))
	for i := range index.Chunks {
		chunk := index.Chunks[i]
		scored[i] = &domain.ScoredChunk{
			Chunk: &chunk,
			Score: CosineSimilarity(query, chunk.Embedding),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
