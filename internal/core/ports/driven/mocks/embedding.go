package mocks

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Vectors are deterministic per text unless EmbedFn is set.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	failNext   bool
	failErr    error
	embedCalls int
	queryCalls int
	texts      int
	models     []string

	// EmbedFn overrides vector generation for a single text when set
	EmbedFn        func(text string) []float32
	HealthCheckErr error
	Closed         bool
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.embedCalls++
	m.models = append(m.models, model)
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	m.texts += len(texts)
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.vector(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, model, query string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return m.vector(query), nil
}

func (m *MockEmbeddingService) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return m.HealthCheckErr
}

func (m *MockEmbeddingService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockEmbeddingService) takeFailure() error {
	if !m.failNext {
		return nil
	}
	m.failNext = false
	if m.failErr != nil {
		return m.failErr
	}
	return &domain.EmbeddingError{Status: 503, Body: "mock embedding failure"}
}

func (m *MockEmbeddingService) vector(text string) []float32 {
	if m.EmbedFn != nil {
		return m.EmbedFn(text)
	}
	return m.generateEmbedding(text)
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// Helper methods for testing

// SetFailNext makes the next Embed or EmbedQuery call fail.
// A nil err fails with an EmbeddingError.
func (m *MockEmbeddingService) SetFailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
	m.failErr = err
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

func (m *MockEmbeddingService) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// EmbedCalls returns the number of batch Embed calls, failed ones included
func (m *MockEmbeddingService) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// QueryCalls returns the number of EmbedQuery calls
func (m *MockEmbeddingService) QueryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryCalls
}

// EmbeddedTexts returns the number of texts embedded by successful batch calls
func (m *MockEmbeddingService) EmbeddedTexts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.texts
}

// Models returns the model passed to each batch call
func (m *MockEmbeddingService) Models() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.models))
	copy(out, m.models)
	return out
}
