package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-chat/internal/runtime"
)

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

// contextInstruction introduces the retrieved block to the model
const contextInstruction = "Answer using the knowledge base excerpts below when they are relevant to the question."

// chatService implements the ChatService interface
type chatService struct {
	services    *runtime.Services
	retrieval   driving.RetrievalService
	assembler   driving.ContextAssembler
	temperature float32
	maxTokens   int
	topK        int
	logger      *slog.Logger
}

// ChatServiceConfig holds configuration for the chat service.
type ChatServiceConfig struct {
	Services    *runtime.Services
	Retrieval   driving.RetrievalService // Optional: nil answers without context
	Assembler   driving.ContextAssembler
	Temperature float32 // default: domain.DefaultTemperature
	MaxTokens   int     // default: domain.DefaultMaxTokens
	TopK        int
	Logger      *slog.Logger
}

// NewChatService creates a new ChatService
func NewChatService(cfg ChatServiceConfig) driving.ChatService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = domain.DefaultTemperature
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = domain.DefaultMaxTokens
	}

	assembler := cfg.Assembler
	if assembler == nil {
		assembler = NewContextAssembler(0)
	}

	return &chatService{
		services:    cfg.Services,
		retrieval:   cfg.Retrieval,
		assembler:   assembler,
		temperature: temperature,
		maxTokens:   maxTokens,
		topK:        cfg.TopK,
		logger:      logger,
	}
}

// Available reports whether a chat model is configured
func (s *chatService) Available() bool {
	return s.services.LLMService() != nil
}

// Reply answers the request, with retrieved context when retrieval succeeds
func (s *chatService) Reply(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	prompt, err := req.ResolvePrompt()
	if err != nil {
		return nil, err
	}

	llm := s.services.LLMService()
	if llm == nil {
		return nil, fmt.Errorf("%w: no chat model configured", domain.ErrServiceUnavailable)
	}

	block, used := s.retrieveContext(ctx, prompt)

	messages := []domain.ChatMessage{
		{Role: domain.ChatRoleSystem, Content: req.ResolveSystemPrompt()},
	}
	if block != "" {
		messages = append(messages, domain.ChatMessage{
			Role:    domain.ChatRoleSystem,
			Content: contextInstruction + "\n\n" + block,
		})
	}
	messages = append(messages, req.History()...)
	messages = append(messages, domain.ChatMessage{Role: domain.ChatRoleUser, Content: prompt})

	content, err := llm.Complete(ctx, domain.ChatCompletion{
		Model:       llm.Model(),
		Messages:    messages,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrChatUnavailable) {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		return nil, err
	}

	if strings.TrimSpace(content) == "" {
		content = domain.EmptyReply
	}

	return &domain.ChatReply{
		Reply:         content,
		ContextChunks: used,
		Model:         llm.Model(),
	}, nil
}

// retrieveContext returns the assembled context block and the number of chunks
// in it. Retrieval errors are logged and answered without context.
func (s *chatService) retrieveContext(ctx context.Context, prompt string) (string, int) {
	if s.retrieval == nil {
		return "", 0
	}

	result, err := s.retrieval.Retrieve(ctx, prompt, s.topK)
	if err != nil {
		s.logger.Warn("retrieval failed, answering without context", "error", err)
		return "", 0
	}
	if result.IsEmpty() {
		return "", 0
	}

	return s.assembler.Assemble(result.Chunks)
}
