// ABOUTME: Serves the built-in chat page and rendered session transcripts
// ABOUTME: Transcripts run stored messages through a markdown renderer

package server

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
)

// transcriptMessage is one rendered message on the transcript page.
type transcriptMessage struct {
	Role    string
	SentAt  string
	Content template.HTML
}

// handleChatPage serves the built-in chat client.
func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/chat.html"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, nil); err != nil {
		s.logger.Error("rendering chat page", "error", err)
	}
}

// handleTranscript renders a session's conversation as a readable HTML
// page, converting message markdown to HTML.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	sess, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		s.sessionError(w, sessionID, err)
		return
	}

	messages, err := s.store.GetMessages(r.Context(), sessionID, 0)
	if err != nil {
		s.logger.Error("loading transcript", "session_id", sessionID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	rendered := make([]transcriptMessage, 0, len(messages))
	for _, m := range messages {
		var htmlBuf bytes.Buffer
		if err := goldmark.Convert([]byte(m.Content), &htmlBuf); err != nil {
			s.logger.Error("converting markdown", "message_id", m.ID, "error", err)
			htmlBuf.Reset()
			htmlBuf.WriteString(template.HTMLEscapeString(m.Content))
		}
		rendered = append(rendered, transcriptMessage{
			Role:    m.Role,
			SentAt:  m.CreatedAt.UTC().Format(time.RFC3339),
			Content: template.HTML(htmlBuf.String()),
		})
	}

	data := struct {
		SessionID string
		AgentID   string
		Messages  []transcriptMessage
	}{
		SessionID: sess.ID,
		AgentID:   sess.AgentID,
		Messages:  rendered,
	}

	tmpl := template.Must(template.ParseFS(templateFS, "templates/transcript.html"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("rendering transcript", "session_id", sessionID, "error", err)
	}
}
