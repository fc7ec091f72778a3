package domain

import "strings"

// ChatRole identifies the author of a chat message
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

const (
	// DefaultSystemPrompt is used when a request carries no system prompt
	DefaultSystemPrompt = "You are a helpful assistant."

	// EmptyReply stands in for missing prompt or reply content
	EmptyReply = "(empty)"

	// DefaultChatModel is the chat model used when none is configured
	DefaultChatModel = "gpt-4o-mini"

	// DefaultTemperature and DefaultMaxTokens are the completion parameters
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 800
)

// ChatMessage is a single conversation turn
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatRequest is the inbound chat payload.
// Either Prompt or Messages must be set.
type ChatRequest struct {
	Prompt       string        `json:"prompt,omitempty"`
	SystemPrompt string        `json:"systemPrompt,omitempty"`
	Messages     []ChatMessage `json:"messages,omitempty"`
}

// ResolvePrompt returns the user query for this request.
// Prompt wins; otherwise the last user message is used, or EmptyReply when
// messages exist but none is from the user.
func (r *ChatRequest) ResolvePrompt() (string, error) {
	if r.Prompt != "" {
		return r.Prompt, nil
	}
	if r.Messages == nil {
		return "", ErrMissingPrompt
	}
	if i := r.lastUserIndex(); i >= 0 && r.Messages[i].Content != "" {
		return r.Messages[i].Content, nil
	}
	return EmptyReply, nil
}

// ResolveSystemPrompt returns the system prompt or the default one
func (r *ChatRequest) ResolveSystemPrompt() string {
	if strings.TrimSpace(r.SystemPrompt) == "" {
		return DefaultSystemPrompt
	}
	return r.SystemPrompt
}

// History returns prior user and assistant turns, excluding the turn that
// supplies the prompt. System messages are dropped.
func (r *ChatRequest) History() []ChatMessage {
	if r.Prompt != "" {
		return filterTurns(r.Messages, -1)
	}
	return filterTurns(r.Messages, r.lastUserIndex())
}

func (r *ChatRequest) lastUserIndex() int {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == ChatRoleUser {
			return i
		}
	}
	return -1
}

func filterTurns(msgs []ChatMessage, skip int) []ChatMessage {
	var out []ChatMessage
	for i, m := range msgs {
		if i == skip {
			continue
		}
		if m.Role != ChatRoleUser && m.Role != ChatRoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ChatCompletion is a request to the chat completion collaborator
type ChatCompletion struct {
	Model       string
	Messages    []ChatMessage
	Temperature float32
	MaxTokens   int
}

// ChatReply is the outbound chat response
type ChatReply struct {
	Reply         string `json:"reply"`
	ContextChunks int    `json:"-"`
	Model         string `json:"-"`
}
