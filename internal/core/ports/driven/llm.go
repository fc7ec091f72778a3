package driven

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// LLMService produces chat completions
type LLMService interface {
	// Complete returns the first choice's content, "" when there is none.
	// Failures wrap domain.ErrChatUnavailable.
	Complete(ctx context.Context, req domain.ChatCompletion) (string, error)

	Model() string
	Ping(ctx context.Context) error
	Close() error
}
