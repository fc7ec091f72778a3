package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Ensure OpenAIEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOllamaBaseURL = "http://localhost:11434/v1"

	defaultOllamaEmbeddingModel = "nomic-embed-text"

	// maxResponseBody bounds how much of a response is read and kept
	maxResponseBody = 64 << 20
)

// OpenAIEmbedding implements EmbeddingService against the OpenAI
// /embeddings endpoint or any server speaking the same protocol (Ollama).
type OpenAIEmbedding struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIEmbedding creates a new OpenAI embedding service
func NewOpenAIEmbedding(apiKey, model, baseURL string) (driven.EmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	if model == "" {
		model = domain.DefaultEmbeddingModel
	}

	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return newOpenAIEmbedding(apiKey, model, baseURL), nil
}

// NewOllamaEmbedding creates an embedding service for a local Ollama server
// through its OpenAI-compatible API. No API key is sent.
func NewOllamaEmbedding(baseURL, model string) (driven.EmbeddingService, error) {
	if model == "" {
		model = defaultOllamaEmbeddingModel
	}
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return newOpenAIEmbedding("", model, baseURL), nil
}

func newOpenAIEmbedding(apiKey, model, baseURL string) *OpenAIEmbedding {
	return &OpenAIEmbedding{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// embeddingRequest is the request body for OpenAI embedding API
type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

// embeddingResponse is the response from OpenAI embedding API
type embeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates one embedding per text, in input order.
// An empty model uses the service default.
func (e *OpenAIEmbedding) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if model == "" {
		model = e.model
	}

	resp, err := e.doRequest(ctx, embeddingRequest{
		Input:          texts,
		Model:          model,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, err
	}

	return orderEmbeddings(resp, len(texts))
}

// orderEmbeddings places every returned vector at its input position.
// Servers that omit the index field are taken to answer in request order.
func orderEmbeddings(resp *embeddingResponse, n int) ([][]float32, error) {
	if len(resp.Data) != n {
		return nil, fmt.Errorf("%w: sent %d texts, received %d embeddings",
			domain.ErrEmbeddingShapeMismatch, n, len(resp.Data))
	}

	positional := true
	for i, d := range resp.Data {
		if d.Index != 0 && d.Index != i {
			positional = false
		}
	}

	embeddings := make([][]float32, n)
	for i, d := range resp.Data {
		pos := i
		if !positional {
			pos = d.Index
		}
		if pos < 0 || pos >= n {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrEmbeddingShapeMismatch, pos)
		}
		if embeddings[pos] != nil {
			return nil, fmt.Errorf("%w: duplicate embedding index %d", domain.ErrEmbeddingShapeMismatch, pos)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", domain.ErrEmbeddingShapeMismatch, pos)
		}
		embeddings[pos] = d.Embedding
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding for a single query text
func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, model, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, model, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Model returns the default model name
func (e *OpenAIEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding service is available
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	// Make a small embedding request to verify connectivity and credentials
	_, err := e.EmbedQuery(ctx, "", "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *OpenAIEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// doRequest posts to the /embeddings endpoint. Transport failures and
// non-2xx answers come back as *domain.EmbeddingError with the raw body.
func (e *OpenAIEmbedding) doRequest(ctx context.Context, reqBody embeddingRequest) (*embeddingResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &domain.EmbeddingError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &domain.EmbeddingError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.EmbeddingError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, &domain.EmbeddingError{
			Status: resp.StatusCode,
			Body:   string(respBody),
			Err:    fmt.Errorf("parse response: %w", err),
		}
	}

	return &embResp, nil
}
