// ABOUTME: Websocket channel for browser clients attached to a chat session
// ABOUTME: Each connection gets history on attach, then a user_message/ping read loop

package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/2389/agent-studio/internal/hub"
)

// closeUnknownSession is the close code sent when a client attaches to a
// session that does not exist.
const closeUnknownSession = 4004

var upgrader = websocket.Upgrader{
	// The chat page may be served from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn wraps a websocket connection with a write lock so broadcasts
// from relay goroutines and read-loop replies never interleave frames.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) SendEnvelope(env *hub.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *wsConn) close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.mu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.mu.Unlock()
	c.conn.Close()
}

// clientFrame is what browsers send: a chat message or a ping.
type clientFrame struct {
	Type    string `json:"type"`
	Payload struct {
		Content  string `json:"content"`
		ThreadID string `json:"threadId"`
	} `json:"payload"`
}

// handleWebSocket attaches a client connection to a session. The session
// must exist before connecting; unknown sessions get a dedicated close
// code after the upgrade so browsers can distinguish them from network
// failures.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	conn := &wsConn{conn: raw}

	sess, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		conn.close(closeUnknownSession, "session not found")
		return
	}

	s.registry.Register(sessionID, conn)
	defer func() {
		s.registry.Unregister(sessionID, conn)
		raw.Close()
	}()

	s.sendHistory(r, conn, sessionID)

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("client connection dropped", "session_id", sessionID, "error", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			conn.SendEnvelope(hub.NewEnvelope(hub.TypeError, map[string]any{
				"message": "invalid message format",
			}))
			continue
		}

		switch frame.Type {
		case "user_message":
			s.handleUserMessage(r.Context(), sess, conn, frame.Payload.Content, frame.Payload.ThreadID)
		case "ping":
			conn.SendEnvelope(hub.NewEnvelope(hub.TypePong, nil))
		default:
			conn.SendEnvelope(hub.NewEnvelope(hub.TypeError, map[string]any{
				"message": "unknown message type",
			}))
		}
	}
}

// sendHistory delivers the session's stored messages to a newly attached
// connection. Other tabs on the session do not receive it.
func (s *Server) sendHistory(r *http.Request, conn *wsConn, sessionID string) {
	messages, err := s.store.GetMessages(r.Context(), sessionID, 0)
	if err != nil {
		s.logger.Error("loading history", "session_id", sessionID, "error", err)
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageResponse(m))
	}
	conn.SendEnvelope(hub.NewEnvelope(hub.TypeHistory, map[string]any{
		"messages": out,
	}))
}
