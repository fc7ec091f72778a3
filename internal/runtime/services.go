// Package runtime holds the AI services that a settings reload can replace
// while requests are in flight.
package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// snapshot is an immutable view of the active services. Readers load it
// without locking; writers publish a fresh copy.
type snapshot struct {
	embedding  driven.EmbeddingService
	llm        driven.LLMService
	generation uint64 // bumped on every embedding swap
}

// Services is the registry of hot-swappable AI services.
type Services struct {
	config *domain.RuntimeConfig

	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewServices creates an empty registry
func NewServices(config *domain.RuntimeConfig) *Services {
	if config == nil {
		config = domain.NewRuntimeConfig("", "")
	}
	s := &Services{config: config}
	s.current.Store(&snapshot{})
	return s
}

func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the active embedding service, or nil
func (s *Services) EmbeddingService() driven.EmbeddingService {
	return s.current.Load().embedding
}

// EmbeddingModel is the model identity the vector index is keyed by.
// Empty when no embedding service is configured.
func (s *Services) EmbeddingModel() string {
	if emb := s.current.Load().embedding; emb != nil {
		return emb.Model()
	}
	return ""
}

// Generation counts embedding swaps, including swaps to nil
func (s *Services) Generation() uint64 {
	return s.current.Load().generation
}

// LLMService returns the active chat service, or nil
func (s *Services) LLMService() driven.LLMService {
	return s.current.Load().llm
}

// SetEmbeddingService publishes svc and closes the service it replaces.
// Requests already holding the old service finish against a closed client,
// which only affects idle connections.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old := s.current.Load()
	next := *old
	next.embedding = svc
	next.generation++
	s.current.Store(&next)
	s.config.SetEmbeddingAvailable(svc != nil)

	if old.embedding != nil && old.embedding != svc {
		_ = old.embedding.Close()
	}
}

// SetLLMService publishes svc and closes the service it replaces
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old := s.current.Load()
	next := *old
	next.llm = svc
	s.current.Store(&next)
	s.config.SetLLMAvailable(svc != nil)

	if old.llm != nil && old.llm != svc {
		_ = old.llm.Close()
	}
}

// Close drops both services and returns their close errors
func (s *Services) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old := s.current.Load()
	s.current.Store(&snapshot{generation: old.generation})
	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)

	var errs []error
	if old.embedding != nil {
		errs = append(errs, old.embedding.Close())
	}
	if old.llm != nil {
		errs = append(errs, old.llm.Close())
	}
	return errors.Join(errs...)
}

// ValidateAndSetEmbedding health-checks svc before publishing it. On
// failure svc is closed and the active service stays in place. A nil svc
// clears the slot.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc != nil {
		if err := svc.HealthCheck(ctx); err != nil {
			_ = svc.Close()
			return err
		}
	}
	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM pings svc before publishing it
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc != nil {
		if err := svc.Ping(ctx); err != nil {
			_ = svc.Close()
			return err
		}
	}
	s.SetLLMService(svc)
	return nil
}
