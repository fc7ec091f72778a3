package driving

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// SettingsService manages AI service configuration
type SettingsService interface {
	// ApplyAISettings validates settings and hot-reloads the AI services.
	// A changed embedding model drops the cached index; the next query
	// rebuilds it.
	ApplyAISettings(ctx context.Context, settings *domain.AISettings) (*AISettingsStatus, error)

	// GetAIStatus returns the current status of AI services
	GetAIStatus(ctx context.Context) (*AISettingsStatus, error)

	// TestConnection tests the AI provider connections
	TestConnection(ctx context.Context) error
}

// AISettingsStatus represents the status of AI services
type AISettingsStatus struct {
	Embedding     AIServiceStatus `json:"embedding"`
	LLM           AIServiceStatus `json:"llm"`
	EffectiveMode domain.ChatMode `json:"effective_mode"`
}

// AIServiceStatus represents the status of a single AI service
type AIServiceStatus struct {
	Available bool              `json:"available"`
	Provider  domain.AIProvider `json:"provider,omitempty"`
	Model     string            `json:"model,omitempty"`
	Error     string            `json:"error,omitempty"`
}
