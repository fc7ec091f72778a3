package driven

import "github.com/custodia-labs/sercha-chat/internal/core/domain"

// AIServiceFactory turns settings into live clients. A nil service with a
// nil error means the settings leave that service unconfigured.
type AIServiceFactory interface {
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)
	CreateLLMService(settings *domain.LLMSettings) (LLMService, error)
}
