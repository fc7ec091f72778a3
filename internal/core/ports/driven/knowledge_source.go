package driven

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// KnowledgeSource enumerates the documents of the knowledge base.
// Implementations are read-only.
type KnowledgeSource interface {
	// Name identifies the backend in logs and status output
	Name() string

	// LoadDocuments returns every document in a stable order
	LoadDocuments(ctx context.Context) ([]domain.Document, error)
}
