package driven

import "context"

// EmbeddingService turns text into vectors
type EmbeddingService interface {
	// Embed returns one vector per text, in input order. An empty model
	// selects Model(). Failures wrap domain.ErrEmbeddingUnavailable or
	// domain.ErrEmbeddingShapeMismatch.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)

	EmbedQuery(ctx context.Context, model, query string) ([]float32, error)

	// Model is the identity the vector index is keyed by
	Model() string

	HealthCheck(ctx context.Context) error
	Close() error
}
