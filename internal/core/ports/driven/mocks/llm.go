package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// MockLLMService is a mock implementation of LLMService for testing.
// It records every completion request.
type MockLLMService struct {
	mu       sync.Mutex
	model    string
	requests []domain.ChatCompletion

	CompleteFn func(req domain.ChatCompletion) (string, error)
	PingErr    error
	Closed     bool
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{model: "mock-chat-model"}
}

func (m *MockLLMService) Complete(ctx context.Context, req domain.ChatCompletion) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.CompleteFn
	m.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return "mock reply", nil
}

func (m *MockLLMService) Model() string {
	return m.model
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockLLMService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Requests returns the completion requests received so far
func (m *MockLLMService) Requests() []domain.ChatCompletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ChatCompletion, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent completion request
func (m *MockLLMService) LastRequest() (domain.ChatCompletion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return domain.ChatCompletion{}, false
	}
	return m.requests[len(m.requests)-1], true
}
