package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
)

// Tool names
const (
	ToolAsk    = "ask_knowledge_base"
	ToolStatus = "knowledge_base_status"
)

// Server exposes the chat service as MCP tools over stdio
type Server struct {
	chatService      driving.ChatService
	retrievalService driving.RetrievalService
	mcpServer        *server.MCPServer
	logger           *slog.Logger
}

// Config holds MCP server configuration
type Config struct {
	Name      string
	Version   string
	Chat      driving.ChatService
	Retrieval driving.RetrievalService // Optional: enables the status tool
	Logger    *slog.Logger
}

// NewServer creates the MCP server and registers its tools
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "sercha-chat"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		chatService:      cfg.Chat,
		retrievalService: cfg.Retrieval,
		logger:           logger,
	}

	s.mcpServer = server.NewMCPServer(name, version, server.WithToolCapabilities(true))

	askTool := mcpgo.NewTool(ToolAsk,
		mcpgo.WithDescription("Ask a question answered from the knowledge base. Relevant excerpts are retrieved and passed to the chat model as context."),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("The question to answer")),
		mcpgo.WithString("system_prompt",
			mcpgo.Description("Optional system prompt (default: \"You are a helpful assistant.\")")),
	)
	s.mcpServer.AddTool(askTool, s.handleAsk)

	if s.retrievalService != nil {
		statusTool := mcpgo.NewTool(ToolStatus,
			mcpgo.WithDescription("Report the cached knowledge-base index: embedding model, chunk count, dimensionality and cache counters."),
		)
		s.mcpServer.AddTool(statusTool, s.handleStatus)
	}

	return s
}

// MCPServer returns the underlying protocol server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves JSON-RPC on stdin/stdout until EOF.
// Logs must go to stderr while this runs.
func (s *Server) ServeStdio() error {
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func (s *Server) handleAsk(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || query == "" {
		return mcpgo.NewToolResultError("query parameter is required"), nil
	}

	if !s.chatService.Available() {
		return mcpgo.NewToolResultError("chat model not configured: set OPENAI_API_KEY"), nil
	}

	reply, err := s.chatService.Reply(ctx, domain.ChatRequest{
		Prompt:       query,
		SystemPrompt: request.GetString("system_prompt", ""),
	})
	if err != nil {
		var chatErr *domain.ChatError
		if errors.As(err, &chatErr) {
			return mcpgo.NewToolResultError("chat request failed: " + chatErr.Detail), nil
		}
		s.logger.Error("mcp ask failed", "error", err)
		return mcpgo.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	return mcpgo.NewToolResultText(reply.Reply), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	data, err := json.MarshalIndent(s.retrievalService.Stats(), "", "  ")
	if err != nil {
		return nil, err
	}
	return mcpgo.NewToolResultText(string(data)), nil
}
