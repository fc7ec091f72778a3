package domain

import "time"

// DefaultTopK is the number of chunks retrieved when the caller does not ask for a specific count
const DefaultTopK = 3

// EmbeddingIndex holds every chunk of the knowledge base embedded with one model.
// An index is immutable once built; a model change produces a new index.
type EmbeddingIndex struct {
	Model      string    `json:"model"`
	Chunks     []Chunk   `json:"-"`
	Dimensions int       `json:"dimensions"`
	Documents  int       `json:"documents"`
	BuiltAt    time.Time `json:"built_at"`
}

// Size returns the number of chunks in the index
func (idx *EmbeddingIndex) Size() int {
	if idx == nil {
		return 0
	}
	return len(idx.Chunks)
}

// IsEmpty reports whether the index holds no chunks
func (idx *EmbeddingIndex) IsEmpty() bool {
	return idx.Size() == 0
}

// ValidFor reports whether the index was built with the given model
func (idx *EmbeddingIndex) ValidFor(model string) bool {
	return idx != nil && idx.Model == model
}

// ScoredChunk pairs a chunk with its similarity to a query
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is the ordered top-K outcome of one retrieval
type RetrievalResult struct {
	Query  string         `json:"query"`
	Model  string         `json:"model"`
	Chunks []*ScoredChunk `json:"chunks"`
	Took   time.Duration  `json:"took"`
}

// IsEmpty reports whether nothing was retrieved
func (r *RetrievalResult) IsEmpty() bool {
	return r == nil || len(r.Chunks) == 0
}

// IndexStats reports cache activity for the retrieval status endpoint
type IndexStats struct {
	Model      string     `json:"model,omitempty"`
	Chunks     int        `json:"chunks"`
	Documents  int        `json:"documents"`
	Dimensions int        `json:"dimensions"`
	BuiltAt    *time.Time `json:"built_at,omitempty"`
	Hits       int64      `json:"hits"`
	Misses     int64      `json:"misses"`
	Rebuilds   int64      `json:"rebuilds"`
	Failures   int64      `json:"failures"`
	LastError  string     `json:"last_error,omitempty"`

	QueryCache *QueryCacheStats `json:"query_cache,omitempty"` // nil without a query-vector cache
	Refresh    *RefreshStats    `json:"refresh,omitempty"`     // nil without a refresh scheduler
}

// QueryCacheStats counts query-vector cache lookups of the active embedding
// service. A model swap starts a fresh cache.
type QueryCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// RefreshStats reports the periodic index refresh
type RefreshStats struct {
	Running   bool `json:"running"`
	Refreshes int  `json:"refreshes"`
	Failures  int  `json:"failures"`
}
