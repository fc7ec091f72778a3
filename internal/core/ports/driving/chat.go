package driving

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// ChatService answers chat requests, grounding them in retrieved context when possible
type ChatService interface {
	// Reply resolves the prompt, retrieves context and calls the chat model.
	// Returns domain.ErrMissingPrompt, domain.ErrServiceUnavailable or an error
	// wrapping domain.ErrChatUnavailable.
	Reply(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)

	// Available reports whether a chat model is configured
	Available() bool
}
