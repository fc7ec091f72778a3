package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error  string `json:"error" example:"Missing prompt or messages"`
	Detail string `json:"detail,omitempty" example:"chat unavailable: status 401: Incorrect API key provided"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ChatProbeResponse answers GET /api/chat
// @Description Chat endpoint probe
type ChatProbeResponse struct {
	OK               bool   `json:"ok" example:"true"`
	Method           string `json:"method" example:"GET"`
	OpenAIKeyPresent bool   `json:"openai_key_present" example:"true"`
	Hint             string `json:"hint"`
}

// ChatResponse is a successful chat reply
// @Description Chat reply
type ChatResponse struct {
	Reply string `json:"reply" example:"Refunds are processed within 14 days."`
}

const (
	hintReady      = "POST /api/chat with {prompt} or {systemPrompt, messages}"
	hintMissingKey = "Set OPENAI_API_KEY in the environment and restart the server."
)

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database and Redis when they are configured
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  StatusResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name   string
		pinger Pinger
	}{
		{"database", s.db},
		{"redis", s.redisClient},
	}
	for _, c := range checks {
		if c.pinger == nil {
			continue
		}
		if err := c.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "dependency", c.name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "not ready", Error: c.name + " unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Chat endpoint

// handleChat godoc
// @Summary      Chat with the knowledge base
// @Description  Answers a prompt, or the last user message of a conversation, grounded in retrieved knowledge-base excerpts
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body      domain.ChatRequest  true  "Prompt or conversation"
// @Success      200      {object}  ChatResponse
// @Failure      400      {object}  ErrorResponse  "Missing prompt or messages"
// @Failure      405      {object}  ErrorResponse  "Method not allowed"
// @Failure      500      {object}  ErrorResponse  "Missing API key or server error"
// @Failure      502      {object}  ErrorResponse  "Chat completion failed"
// @Router       /api/chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet:
		available := s.chatService.Available()
		hint := hintReady
		if !available {
			hint = hintMissingKey
		}
		writeJSON(w, http.StatusOK, ChatProbeResponse{
			OK:               true,
			Method:           http.MethodGet,
			OpenAIKeyPresent: available,
			Hint:             hint,
		})
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req := s.decodeChatRequest(w, r)

	if !s.chatService.Available() {
		writeError(w, http.StatusInternalServerError, "Missing OPENAI_API_KEY")
		return
	}

	reply, err := s.chatService.Reply(r.Context(), req)
	if err != nil {
		var chatErr *domain.ChatError
		switch {
		case errors.Is(err, domain.ErrMissingPrompt):
			writeError(w, http.StatusBadRequest, "Missing prompt or messages")
		case errors.Is(err, domain.ErrServiceUnavailable):
			writeError(w, http.StatusInternalServerError, "Missing OPENAI_API_KEY")
		case errors.As(err, &chatErr):
			s.logger.Warn("chat completion failed", "status", chatErr.Status, "request_id", GetRequestID(r.Context()))
			writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "OpenAI request failed", Detail: chatErr.Detail})
		default:
			s.logger.Error("chat request failed", "error", err, "request_id", GetRequestID(r.Context()))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Server error", Detail: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply.Reply})
}

// decodeChatRequest parses the body leniently. Empty, oversized, malformed
// or non-object bodies yield an empty request. Within an object each field
// is decoded on its own, so a wrong-typed field is dropped without losing
// the others.
func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) domain.ChatRequest {
	var req domain.ChatRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil || len(body) == 0 {
		return req
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		s.logger.Debug("ignoring malformed chat body", "error", err)
		return req
	}

	decodeField(s.logger, fields, "prompt", &req.Prompt)
	decodeField(s.logger, fields, "systemPrompt", &req.SystemPrompt)
	decodeField(s.logger, fields, "messages", &req.Messages)
	return req
}

// decodeField unmarshals fields[name] into dst, leaving dst untouched when
// the field is absent or has the wrong type
func decodeField[T any](logger *slog.Logger, fields map[string]json.RawMessage, name string, dst *T) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Debug("ignoring chat body field", "field", name, "error", err)
		return
	}
	*dst = v
}

// Status endpoints

// handleRetrievalStatus godoc
// @Summary      Retrieval index status
// @Description  Reports the cached index (model, chunk count, dimensionality, build time), cache counters, query cache counters and the refresh scheduler. Never returns chunk text.
// @Tags         Retrieval
// @Produce      json
// @Success      200  {object}  domain.IndexStats
// @Failure      503  {object}  ErrorResponse  "Retrieval not configured"
// @Router       /api/v1/retrieval/status [get]
func (s *Server) handleRetrievalStatus(w http.ResponseWriter, r *http.Request) {
	if s.retrievalService == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval not configured")
		return
	}
	stats := s.retrievalService.Stats()
	if s.refresh != nil {
		refresh := s.refresh.Stats()
		stats.Refresh = &refresh
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleGetAIStatus godoc
// @Summary      Get AI status
// @Description  Get the current status of the embedding and chat services
// @Tags         AI Settings
// @Produce      json
// @Success      200  {object}  driving.AISettingsStatus
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /api/v1/settings/ai/status [get]
func (s *Server) handleGetAIStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.settingsService.GetAIStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get AI status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleTestAIConnection godoc
// @Summary      Test AI connection
// @Description  Health-checks the embedding service and pings the chat service
// @Tags         AI Settings
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      502  {object}  ErrorResponse  "Provider unreachable"
// @Router       /api/v1/settings/ai/test [post]
func (s *Server) handleTestAIConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.settingsService.TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "connection test failed", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
