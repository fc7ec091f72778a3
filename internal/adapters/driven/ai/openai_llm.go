package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

const defaultOllamaChatModel = "llama3.2"

// OpenAILLM implements LLMService with the OpenAI chat completions API.
// Ollama is served through its OpenAI-compatible endpoint.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// NewOpenAILLM creates a chat service for OpenAI or a compatible base URL
func NewOpenAILLM(apiKey, model, baseURL string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = domain.DefaultChatModel
	}
	return newOpenAILLM(apiKey, model, baseURL), nil
}

// NewOllamaLLM creates a chat service for a local Ollama server
func NewOllamaLLM(baseURL, model string) (driven.LLMService, error) {
	if model == "" {
		model = defaultOllamaChatModel
	}
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return newOpenAILLM("ollama", model, baseURL), nil
}

func newOpenAILLM(apiKey, model, baseURL string) *OpenAILLM {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAILLM{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete returns the content of the first choice. Upstream failures are
// returned as *domain.ChatError.
func (l *OpenAILLM) Complete(ctx context.Context, req domain.ChatCompletion) (string, error) {
	model := req.Model
	if model == "" {
		model = l.model
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", toChatError(err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// toChatError keeps the upstream status and message for the caller
func toChatError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ChatError{Status: apiErr.HTTPStatusCode, Detail: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := fmt.Sprintf("status %d", reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			detail = reqErr.Err.Error()
		}
		return &domain.ChatError{Status: reqErr.HTTPStatusCode, Detail: detail}
	}

	return &domain.ChatError{Detail: err.Error()}
}

// Model returns the model name being used
func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping verifies the endpoint answers and the credentials are accepted
func (l *OpenAILLM) Ping(ctx context.Context) error {
	if _, err := l.client.ListModels(ctx); err != nil {
		return toChatError(err)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *OpenAILLM) Close() error {
	return nil
}
