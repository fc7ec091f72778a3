package domain

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrInvalidProvider,
		ErrServiceUnavailable,
		ErrInvalidDocument,
		ErrEmbeddingUnavailable,
		ErrEmbeddingShapeMismatch,
		ErrChatUnavailable,
		ErrMissingPrompt,
	}

	for i, a := range allErrors {
		for j, b := range allErrors {
			if i != j && errors.Is(a, b) {
				t.Errorf("expected %v and %v to be distinct", a, b)
			}
		}
	}
}

func TestEmbeddingError(t *testing.T) {
	err := &EmbeddingError{Status: 429, Body: `{"error":{"message":"rate limited"}}`}

	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Error("expected EmbeddingError to match ErrEmbeddingUnavailable")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected raw body in message, got %q", err.Error())
	}

	var target *EmbeddingError
	wrapped := errors.Join(errors.New("rebuild"), err)
	if !errors.As(wrapped, &target) {
		t.Fatal("expected errors.As to find EmbeddingError")
	}
	if target.Status != 429 {
		t.Errorf("expected status 429, got %d", target.Status)
	}
}

func TestEmbeddingError_Transport(t *testing.T) {
	err := &EmbeddingError{Err: io.ErrUnexpectedEOF}

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected transport error to be reachable")
	}
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Error("expected EmbeddingError to match ErrEmbeddingUnavailable")
	}
}

func TestChatError(t *testing.T) {
	err := &ChatError{Status: 401, Detail: "invalid api key"}

	if !errors.Is(err, ErrChatUnavailable) {
		t.Error("expected ChatError to match ErrChatUnavailable")
	}
	if errors.Is(err, ErrEmbeddingUnavailable) {
		t.Error("ChatError must not match ErrEmbeddingUnavailable")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status in message, got %q", err.Error())
	}
}
