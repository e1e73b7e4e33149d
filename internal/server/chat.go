// ABOUTME: Per-message relay orchestration for the websocket channel
// ABOUTME: Persists both sides of the exchange and fans progress out to every tab

package server

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/2389/agent-studio/internal/hub"
	"github.com/2389/agent-studio/internal/relay"
	"github.com/2389/agent-studio/internal/store"
)

// handleUserMessage relays one user message through the upstream agent
// and streams progress to every connection on the session.
//
// The sequence per message: store and echo the user message, raise the
// typing indicator, then forward response deltas as they arrive. The
// assistant's message row is created on the first chunk and finalized
// with the full text when the stream ends, so history reads during the
// stream see a consistent, if partial, record.
//
// Messages are not serialized per session: two in-flight exchanges may
// interleave their chunk broadcasts.
func (s *Server) handleUserMessage(ctx context.Context, sess *store.Session, conn *wsConn, content, threadID string) {
	if strings.TrimSpace(content) == "" {
		conn.SendEnvelope(hub.NewEnvelope(hub.TypeError, map[string]any{
			"message": "message is empty",
		}))
		return
	}
	if utf8.RuneCountInString(content) > s.config.Chat.MaxMessageLength {
		conn.SendEnvelope(hub.NewEnvelope(hub.TypeError, map[string]any{
			"message": "message too long",
		}))
		return
	}

	agent, ok := s.upstream.GetAgent(ctx, sess.AgentID)
	if !ok {
		s.logger.Warn("agent no longer available", "session_id", sess.ID, "agent_id", sess.AgentID)
		return
	}

	prior, err := s.store.GetMessages(ctx, sess.ID, 0)
	if err != nil {
		s.logger.Error("fetching history", "session_id", sess.ID, "error", err)
		prior = nil
	}

	userMsg, err := s.store.AddMessage(ctx, sess.ID, store.RoleUser, content)
	if err != nil {
		s.logger.Error("storing user message", "session_id", sess.ID, "error", err)
		conn.SendEnvelope(hub.NewEnvelope(hub.TypeError, map[string]any{
			"message": "failed to store message",
		}))
		return
	}

	s.registry.Broadcast(sess.ID, hub.NewEnvelope(hub.TypeUserMsg, map[string]any{
		"message": messageResponse(userMsg),
	}))
	s.setTyping(sess.ID, true)

	deltas, err := s.aggregator.GenerateResponseStream(ctx, &relay.Request{
		Agent:    agent,
		Message:  content,
		History:  relay.BuildPrompt(agent, prior, content),
		ThreadID: threadID,
	})
	if err != nil {
		s.logger.Error("opening relay stream", "session_id", sess.ID, "agent_id", agent.ID, "error", err)
		s.setTyping(sess.ID, false)
		s.registry.Broadcast(sess.ID, hub.NewEnvelope(hub.TypeError, map[string]any{
			"message": "failed to reach the agent, please try again",
		}))
		return
	}

	s.forwardDeltas(ctx, sess.ID, deltas)
}

// forwardDeltas drains one response stream, broadcasting progress and
// persisting the assistant's message.
func (s *Server) forwardDeltas(ctx context.Context, sessionID string, deltas <-chan relay.Delta) {
	var buf strings.Builder
	var assistantID string

	for d := range deltas {
		if d.ThreadID != "" {
			s.registry.Broadcast(sessionID, hub.NewEnvelope(hub.TypeThreadInfo, map[string]any{
				"thread_id": d.ThreadID,
			}))
		}

		if d.Text != "" {
			buf.WriteString(d.Text)
			if assistantID == "" {
				msg, err := s.store.AddMessage(ctx, sessionID, store.RoleAssistant, d.Text)
				if err != nil {
					s.logger.Error("storing assistant message", "session_id", sessionID, "error", err)
				} else {
					assistantID = msg.ID
				}
			}
			s.registry.Broadcast(sessionID, hub.NewEnvelope(hub.TypeAIChunk, map[string]any{
				"content":    d.Text,
				"message_id": assistantID,
			}))
		}

		if d.Final {
			break
		}
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		text = relay.EmptyResponseText
	}

	if assistantID == "" {
		msg, err := s.store.AddMessage(ctx, sessionID, store.RoleAssistant, text)
		if err != nil {
			s.logger.Error("storing assistant message", "session_id", sessionID, "error", err)
		} else {
			assistantID = msg.ID
		}
	} else if err := s.store.UpdateMessageContent(ctx, assistantID, text); err != nil {
		s.logger.Error("finalizing assistant message", "session_id", sessionID, "error", err)
	}

	s.setTyping(sessionID, false)
	s.registry.Broadcast(sessionID, hub.NewEnvelope(hub.TypeAIComplete, map[string]any{
		"content":    text,
		"message_id": assistantID,
	}))
}

func (s *Server) setTyping(sessionID string, typing bool) {
	s.registry.Broadcast(sessionID, hub.NewEnvelope(hub.TypeTyping, map[string]any{
		"isTyping": typing,
	}))
}
