package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-chat/internal/runtime"
)

// Ensure settingsService implements SettingsService
var _ driving.SettingsService = (*settingsService)(nil)

// settingsService implements the SettingsService interface.
// The applied settings live in memory; configuration is their source.
type settingsService struct {
	aiFactory driven.AIServiceFactory
	services  *runtime.Services
	logger    *slog.Logger
	index     IndexInvalidator

	mu      sync.Mutex
	current *domain.AISettings
	status  driving.AISettingsStatus
}

// IndexInvalidator drops a cached index. *IndexCache implements it.
type IndexInvalidator interface {
	Invalidate()
}

// SettingsOption configures the settings service
type SettingsOption func(*settingsService)

// WithIndexInvalidator drops the cached index whenever a new embedding model
// goes live, so vectors for the old model are not held until the next query.
func WithIndexInvalidator(index IndexInvalidator) SettingsOption {
	return func(s *settingsService) {
		s.index = index
	}
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(
	aiFactory driven.AIServiceFactory,
	services *runtime.Services,
	logger *slog.Logger,
	opts ...SettingsOption,
) driving.SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &settingsService{
		aiFactory: aiFactory,
		services:  services,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyAISettings validates settings and hot-reloads services.
// Services whose settings did not change are kept as they are.
func (s *settingsService) ApplyAISettings(ctx context.Context, settings *domain.AISettings) (*driving.AISettingsStatus, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied := *settings
	applied.UpdatedAt = time.Now()

	var previous *domain.AISettings
	if s.current != nil {
		previous = s.current
	}

	status := driving.AISettingsStatus{}
	generation, model := s.services.Generation(), s.services.EmbeddingModel()

	// Embedding service
	switch {
	case previous != nil && previous.Embedding == applied.Embedding && s.services.EmbeddingService() != nil:
		status.Embedding = s.status.Embedding
	case applied.Embedding.IsConfigured():
		status.Embedding = s.applyEmbedding(ctx, &applied.Embedding)
	default:
		s.services.SetEmbeddingService(nil)
		status.Embedding = driving.AIServiceStatus{Available: false}
	}

	// A cleared embedding service keeps the index for when it comes back
	if next := s.services.EmbeddingModel(); s.services.Generation() != generation && next != "" && next != model {
		s.logger.Info("embedding model changed, index will rebuild on next use", "from", model, "to", next)
		if s.index != nil {
			s.index.Invalidate()
		}
	}

	// LLM service
	switch {
	case previous != nil && previous.LLM == applied.LLM && s.services.LLMService() != nil:
		status.LLM = s.status.LLM
	case applied.LLM.IsConfigured():
		status.LLM = s.applyLLM(ctx, &applied.LLM)
	default:
		s.services.SetLLMService(nil)
		status.LLM = driving.AIServiceStatus{Available: false}
	}

	status.EffectiveMode = s.services.Config().EffectiveMode()

	s.current = &applied
	s.status = status

	out := status
	return &out, nil
}

func (s *settingsService) applyEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) driving.AIServiceStatus {
	embSvc, err := s.aiFactory.CreateEmbeddingService(settings)
	if err == nil {
		err = s.services.ValidateAndSetEmbedding(ctx, embSvc)
	}
	if err != nil {
		// Service stays unavailable; chat degrades to answers without context
		s.logger.Warn("embedding service unavailable", "provider", settings.Provider, "model", settings.Model, "error", err)
		s.services.SetEmbeddingService(nil)
		return driving.AIServiceStatus{Available: false, Provider: settings.Provider, Model: settings.Model, Error: err.Error()}
	}
	return driving.AIServiceStatus{Available: true, Provider: settings.Provider, Model: embSvc.Model()}
}

func (s *settingsService) applyLLM(ctx context.Context, settings *domain.LLMSettings) driving.AIServiceStatus {
	llmSvc, err := s.aiFactory.CreateLLMService(settings)
	if err == nil {
		err = s.services.ValidateAndSetLLM(ctx, llmSvc)
	}
	if err != nil {
		s.logger.Warn("chat service unavailable", "provider", settings.Provider, "model", settings.Model, "error", err)
		s.services.SetLLMService(nil)
		return driving.AIServiceStatus{Available: false, Provider: settings.Provider, Model: settings.Model, Error: err.Error()}
	}
	return driving.AIServiceStatus{Available: true, Provider: settings.Provider, Model: llmSvc.Model()}
}

// GetAIStatus returns the current status of AI services
func (s *settingsService) GetAIStatus(ctx context.Context) (*driving.AISettingsStatus, error) {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	// Reflect the live registry in case a service was cleared elsewhere
	if embSvc := s.services.EmbeddingService(); embSvc != nil {
		status.Embedding.Available = true
		status.Embedding.Model = embSvc.Model()
	} else {
		status.Embedding.Available = false
	}
	if llmSvc := s.services.LLMService(); llmSvc != nil {
		status.LLM.Available = true
		status.LLM.Model = llmSvc.Model()
	} else {
		status.LLM.Available = false
	}
	status.EffectiveMode = s.services.Config().EffectiveMode()

	return &status, nil
}

// TestConnection tests the AI provider connections
func (s *settingsService) TestConnection(ctx context.Context) error {
	if embSvc := s.services.EmbeddingService(); embSvc != nil {
		if err := embSvc.HealthCheck(ctx); err != nil {
			return err
		}
	}

	if llmSvc := s.services.LLMService(); llmSvc != nil {
		if err := llmSvc.Ping(ctx); err != nil {
			return err
		}
	}

	return nil
}
