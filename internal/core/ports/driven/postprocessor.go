package driven

import "github.com/custodia-labs/sercha-chat/internal/core/domain"

// PostProcessor refines the windows of a single document after splitting.
// Processors form a pipeline ordered by Order().
type PostProcessor interface {
	// Process receives the windows of one document in order and returns the kept ones
	Process(chunks []domain.Chunk) []domain.Chunk

	// Name returns the processor name for logging/debugging.
	Name() string

	// Order returns the processor order in the pipeline (lower = earlier).
	Order() int
}

// Chunker splits documents into fixed-size chunks without vectors
type Chunker interface {
	// Chunk returns the chunks of every valid document in document order.
	// Invalid documents are skipped and reported through the joined error,
	// so callers may receive both chunks and a non-nil error.
	Chunk(docs []domain.Document, size int) ([]domain.Chunk, error)
}
