package domain

import "sync/atomic"

// ChatMode describes how chat replies are produced
type ChatMode string

const (
	ChatModeRetrieval ChatMode = "retrieval" // grounded in knowledge-base excerpts
	ChatModePlain     ChatMode = "plain"     // model only, no embedding service
	ChatModeDisabled  ChatMode = "disabled"  // no chat service
)

// RuntimeConfig records the deployment shape chosen at startup and which AI
// services are currently usable.
type RuntimeConfig struct {
	KnowledgeBackend string // filesystem, postgres or sqlite
	LockBackend      string // redis, postgres, or empty for in-process gating only

	embedding atomic.Bool
	llm       atomic.Bool
}

func NewRuntimeConfig(knowledgeBackend, lockBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		KnowledgeBackend: knowledgeBackend,
		LockBackend:      lockBackend,
	}
}

func (c *RuntimeConfig) EmbeddingAvailable() bool { return c.embedding.Load() }
func (c *RuntimeConfig) LLMAvailable() bool       { return c.llm.Load() }

func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) { c.embedding.Store(available) }
func (c *RuntimeConfig) SetLLMAvailable(available bool)       { c.llm.Store(available) }

// CanRetrieve reports whether chunks and queries can be embedded
func (c *RuntimeConfig) CanRetrieve() bool {
	return c.EmbeddingAvailable()
}

// CanChat reports whether a completion service is configured
func (c *RuntimeConfig) CanChat() bool {
	return c.LLMAvailable()
}

// EffectiveMode derives the chat mode from the available services.
// Retrieval without a chat model is pointless, so a missing LLM disables chat.
func (c *RuntimeConfig) EffectiveMode() ChatMode {
	if !c.CanChat() {
		return ChatModeDisabled
	}
	if c.CanRetrieve() {
		return ChatModeRetrieval
	}
	return ChatModePlain
}
