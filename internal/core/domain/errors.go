package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates a required service is not configured
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInvalidDocument indicates a knowledge-source entry could not be chunked
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmbeddingUnavailable indicates the embedding service failed or could not be reached
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrEmbeddingShapeMismatch indicates the embedding service broke its contract
	// (wrong vector count, missing index or inconsistent dimensionality)
	ErrEmbeddingShapeMismatch = errors.New("embedding shape mismatch")

	// ErrChatUnavailable indicates the chat completion service failed
	ErrChatUnavailable = errors.New("chat unavailable")

	// ErrMissingPrompt indicates a chat request carried neither a prompt nor messages
	ErrMissingPrompt = errors.New("missing prompt or messages")
)

// EmbeddingError carries the raw response of a failed embedding call.
// It matches ErrEmbeddingUnavailable with errors.Is.
type EmbeddingError struct {
	Status int    // HTTP status, 0 when the request never completed
	Body   string // Raw response body kept for diagnostics
	Err    error  // Transport error, if any
}

func (e *EmbeddingError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("embedding unavailable: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("embedding unavailable: status %d: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("embedding unavailable: status %d", e.Status)
	}
}

func (e *EmbeddingError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrEmbeddingUnavailable, e.Err}
	}
	return []error{ErrEmbeddingUnavailable}
}

// ChatError carries the detail of a failed chat completion.
// It matches ErrChatUnavailable with errors.Is.
type ChatError struct {
	Status int
	Detail string
}

func (e *ChatError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat unavailable: status %d: %s", e.Status, e.Detail)
	}
	return "chat unavailable: " + e.Detail
}

func (e *ChatError) Unwrap() error {
	return ErrChatUnavailable
}
