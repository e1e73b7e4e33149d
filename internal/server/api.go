// ABOUTME: REST handlers for session management, buffered chat, and agent listing
// ABOUTME: Every response uses the success/data/error wrapper shape

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/2389/agent-studio/internal/relay"
	"github.com/2389/agent-studio/internal/store"
)

// previewLength caps the last-message preview on session listings.
const previewLength = 100

// ApiResponse is the wrapper shape for every REST response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, body ApiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) respondData(w http.ResponseWriter, status int, data any) {
	s.respond(w, status, ApiResponse{Success: true, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, ApiResponse{Success: false, Error: msg})
}

// SessionResponse is one session on a listing, titled by a preview of
// its most recent message.
type SessionResponse struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Preview   string `json:"preview"`
}

// AgentResponse is one agent on the listing.
type AgentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username,omitempty"`
	Description string `json:"description,omitempty"`
}

// MessageResponse is one stored chat message.
type MessageResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func sessionResponse(sess *store.Session, preview string) SessionResponse {
	if preview == "" {
		preview = "New chat"
	}
	return SessionResponse{
		ID:        sess.ID,
		AgentID:   sess.AgentID,
		CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: sess.UpdatedAt.UTC().Format(time.RFC3339),
		Preview:   preview,
	}
}

func messageResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// truncatePreview shortens text to the preview length on a rune boundary.
func truncatePreview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLength]) + "..."
}

// handleCreateSession starts a chat session against a known agent.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		s.respondError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	agent, ok := s.upstream.GetAgent(r.Context(), req.AgentID)
	if !ok {
		s.respondError(w, http.StatusNotFound, "agent not found")
		return
	}

	sess, err := s.store.CreateSession(r.Context(), req.AgentID)
	if err != nil {
		s.logger.Error("creating session", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.respondData(w, http.StatusCreated, map[string]any{
		"session": sessionResponse(sess, ""),
		"agent": AgentResponse{
			ID:          agent.ID,
			Name:        agent.Name,
			Username:    agent.Username,
			Description: agent.Description,
		},
		"websocket_url": "/ws/" + sess.ID,
	})
}

// handleListSessions lists sessions newest-first with message previews.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		s.logger.Error("listing sessions", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		preview := ""
		messages, err := s.store.GetMessages(r.Context(), sess.ID, 1)
		if err == nil && len(messages) > 0 {
			preview = truncatePreview(messages[0].Content)
		}
		out = append(out, sessionResponse(sess, preview))
	}
	s.respondData(w, http.StatusOK, out)
}

// handleGetMessages returns a session's messages in chronological order.
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		s.sessionError(w, sessionID, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	messages, err := s.store.GetMessages(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error("fetching messages", "session_id", sessionID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageResponse(m))
	}
	s.respondData(w, http.StatusOK, out)
}

// handleSendMessage relays one message in buffered mode: the response
// comes back whole in the HTTP reply rather than over a websocket.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	sess, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		s.sessionError(w, sessionID, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	if utf8.RuneCountInString(req.Content) > s.config.Chat.MaxMessageLength {
		s.respondError(w, http.StatusBadRequest, "message too long")
		return
	}

	agent, ok := s.upstream.GetAgent(r.Context(), sess.AgentID)
	if !ok {
		s.respondError(w, http.StatusBadGateway, "agent no longer available")
		return
	}

	prior, err := s.store.GetMessages(r.Context(), sessionID, 0)
	if err != nil {
		s.logger.Error("fetching history", "session_id", sessionID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	userMsg, err := s.store.AddMessage(r.Context(), sessionID, store.RoleUser, req.Content)
	if err != nil {
		s.logger.Error("storing user message", "session_id", sessionID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	reply := s.aggregator.GenerateResponse(r.Context(), &relay.Request{
		Agent:   agent,
		Message: req.Content,
		History: relay.BuildPrompt(agent, prior, req.Content),
	})

	assistantMsg, err := s.store.AddMessage(r.Context(), sessionID, store.RoleAssistant, reply.Text)
	if err != nil {
		s.logger.Error("storing assistant message", "session_id", sessionID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to store response")
		return
	}

	s.respondData(w, http.StatusOK, map[string]any{
		"user_message": messageResponse(userMsg),
		"ai_message":   messageResponse(assistantMsg),
	})
}

// handleDeleteSession removes a session and its messages.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if err := s.store.DeleteSession(r.Context(), sessionID); err != nil {
		s.sessionError(w, sessionID, err)
		return
	}
	s.respondData(w, http.StatusOK, map[string]string{"id": sessionID})
}

// handleListAgents lists the agents available upstream.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.upstream.ListAgents(r.Context())
	out := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, AgentResponse{
			ID:          a.ID,
			Name:        a.Name,
			Username:    a.Username,
			Description: a.Description,
		})
	}
	s.respondData(w, http.StatusOK, out)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondData(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// sessionError maps store errors on a session lookup to a response.
func (s *Server) sessionError(w http.ResponseWriter, sessionID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Error("session lookup failed", "session_id", sessionID, "error", err)
	s.respondError(w, http.StatusInternalServerError, "internal error")
}
