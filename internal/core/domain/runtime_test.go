package domain

import (
	"testing"
)

func TestNewRuntimeConfig(t *testing.T) {
	config := NewRuntimeConfig("filesystem", "redis")

	if config == nil {
		t.Fatal("expected non-nil config")
	}
	if config.KnowledgeBackend != "filesystem" {
		t.Errorf("expected filesystem, got %s", config.KnowledgeBackend)
	}
	if config.LockBackend != "redis" {
		t.Errorf("expected redis, got %s", config.LockBackend)
	}
	if config.EmbeddingAvailable() {
		t.Error("expected embedding to be unavailable initially")
	}
	if config.LLMAvailable() {
		t.Error("expected LLM to be unavailable initially")
	}
}

func TestRuntimeConfig_EmbeddingAvailable(t *testing.T) {
	config := NewRuntimeConfig("sqlite", "")

	config.SetEmbeddingAvailable(true)
	if !config.EmbeddingAvailable() || !config.CanRetrieve() {
		t.Error("expected embedding to be available after setting")
	}

	config.SetEmbeddingAvailable(false)
	if config.EmbeddingAvailable() || config.CanRetrieve() {
		t.Error("expected embedding to be unavailable after clearing")
	}
}

func TestRuntimeConfig_EffectiveMode(t *testing.T) {
	tests := []struct {
		name      string
		embedding bool
		llm       bool
		expected  ChatMode
	}{
		{"nothing configured", false, false, ChatModeDisabled},
		{"embedding only", true, false, ChatModeDisabled},
		{"llm only", false, true, ChatModePlain},
		{"both", true, true, ChatModeRetrieval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewRuntimeConfig("filesystem", "")
			config.SetEmbeddingAvailable(tt.embedding)
			config.SetLLMAvailable(tt.llm)

			if got := config.EffectiveMode(); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
			if config.CanChat() != tt.llm {
				t.Errorf("expected CanChat %t", tt.llm)
			}
		})
	}
}
