package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestAIProvider_RequiresAPIKey(t *testing.T) {
	if !AIProviderOpenAI.RequiresAPIKey() {
		t.Error("expected openai to require an API key")
	}
	if AIProviderOllama.RequiresAPIKey() {
		t.Error("expected ollama not to require an API key")
	}
}

func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		provider AIProvider
		valid    bool
	}{
		{AIProviderOpenAI, true},
		{AIProviderOllama, true},
		{AIProvider("anthropic"), false},
		{AIProvider(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			if tt.provider.IsValid() != tt.valid {
				t.Errorf("expected IsValid=%t for %q", tt.valid, tt.provider)
			}
		})
	}
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		expected bool
	}{
		{"empty", EmbeddingSettings{}, false},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk-test"}, true},
		{"ollama without key", EmbeddingSettings{Provider: AIProviderOllama}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.IsConfigured(); got != tt.expected {
				t.Errorf("expected %t, got %t", tt.expected, got)
			}
		})
	}
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	s := LLMSettings{Provider: AIProviderOpenAI}
	if s.IsConfigured() {
		t.Error("expected openai without key to be unconfigured")
	}
	s.APIKey = "sk-test"
	if !s.IsConfigured() {
		t.Error("expected openai with key to be configured")
	}
}

func TestAISettings_Validate(t *testing.T) {
	valid := &AISettings{
		Embedding: EmbeddingSettings{Provider: AIProviderOpenAI},
		LLM:       LLMSettings{Provider: AIProviderOllama},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	invalid := &AISettings{LLM: LLMSettings{Provider: "cohere"}}
	if err := invalid.Validate(); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}

	both := &AISettings{
		Embedding: EmbeddingSettings{Provider: "voyage"},
		LLM:       LLMSettings{Provider: "cohere"},
	}
	err := both.Validate()
	if !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("expected ErrInvalidProvider, got %v", err)
	}
	if !strings.Contains(err.Error(), "embedding") || !strings.Contains(err.Error(), "chat") {
		t.Errorf("expected both services named, got %v", err)
	}

	empty := &AISettings{}
	if err := empty.Validate(); err != nil {
		t.Errorf("expected empty settings to validate, got %v", err)
	}
}
