package domain

import (
	"errors"
	"fmt"
	"time"
)

// AIProvider names an OpenAI-compatible backend
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderOllama AIProvider = "ollama" // self-hosted, no key
)

const DefaultEmbeddingModel = "text-embedding-3-small"

// RequiresAPIKey reports whether requests must carry a bearer key
func (p AIProvider) RequiresAPIKey() bool {
	return p != AIProviderOllama
}

func (p AIProvider) IsValid() bool {
	return p == AIProviderOpenAI || p == AIProviderOllama
}

// AISettings is the hot-reloadable part of the configuration.
// API keys never leave the process through JSON.
type AISettings struct {
	Embedding EmbeddingSettings `json:"embedding"`
	LLM       LLMSettings       `json:"llm"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type EmbeddingSettings struct {
	Provider  AIProvider `json:"provider"`
	Model     string     `json:"model"`
	APIKey    string     `json:"-"`
	BaseURL   string     `json:"base_url,omitempty"`
	BatchSize int        `json:"batch_size,omitempty"` // texts per request, 0 = all
}

func (e *EmbeddingSettings) IsConfigured() bool {
	return configured(e.Provider, e.APIKey)
}

type LLMSettings struct {
	Provider    AIProvider `json:"provider"`
	Model       string     `json:"model"`
	APIKey      string     `json:"-"`
	BaseURL     string     `json:"base_url,omitempty"`
	Temperature float32    `json:"temperature"`
	MaxTokens   int        `json:"max_tokens"`
}

func (l *LLMSettings) IsConfigured() bool {
	return configured(l.Provider, l.APIKey)
}

// configured is false for an unset provider or a missing required key.
// An unset service is not an error: the chat mode degrades instead.
func configured(p AIProvider, apiKey string) bool {
	if p == "" {
		return false
	}
	return apiKey != "" || !p.RequiresAPIKey()
}

// Validate rejects unknown providers, naming the service at fault
func (s *AISettings) Validate() error {
	var errs []error
	if p := s.Embedding.Provider; p != "" && !p.IsValid() {
		errs = append(errs, fmt.Errorf("embedding: %w: %s", ErrInvalidProvider, p))
	}
	if p := s.LLM.Provider; p != "" && !p.IsValid() {
		errs = append(errs, fmt.Errorf("chat: %w: %s", ErrInvalidProvider, p))
	}
	return errors.Join(errs...)
}
