package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// MockKnowledgeSource serves a fixed document set and counts loads
type MockKnowledgeSource struct {
	mu    sync.Mutex
	docs  []domain.Document
	err   error
	loads int
}

// NewMockKnowledgeSource creates a source returning the given documents
func NewMockKnowledgeSource(docs ...domain.Document) *MockKnowledgeSource {
	return &MockKnowledgeSource{docs: docs}
}

func (m *MockKnowledgeSource) Name() string {
	return "mock"
}

func (m *MockKnowledgeSource) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Document, len(m.docs))
	copy(out, m.docs)
	return out, nil
}

// SetDocuments replaces the document set
func (m *MockKnowledgeSource) SetDocuments(docs ...domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = docs
}

// SetError makes every load fail with err (nil clears it)
func (m *MockKnowledgeSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Loads returns how many times documents were loaded
func (m *MockKnowledgeSource) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}
