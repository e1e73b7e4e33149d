// ABOUTME: Duplex streaming client for the upstream agent platform
// ABOUTME: Dials the agent websocket, performs the auth+message handshake, and emits Events

package upstream

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// connectTimeout bounds the websocket handshake. Failure here is
	// terminal for the relay attempt.
	connectTimeout = 15 * time.Second
	// readWindow bounds the whole read loop. Expiry ends the stream
	// cleanly; partial results are final, not an error.
	readWindow = 30 * time.Second
	// wireTimestampLayout is the millisecond-precision UTC format the
	// upstream protocol expects on outbound frames.
	wireTimestampLayout = "2006-01-02T15:04:05.000Z"
	// eventBufferSize is the channel buffer for emitted events.
	eventBufferSize = 16
)

// PromptMessage is one turn of conversation context sent upstream.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamOptions carries model parameters resolved from agent settings.
// The current wire protocol does not transmit them in the message frame;
// they are part of the stream contract for callers that resolve them.
type StreamOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Messages    []PromptMessage
}

// StreamRequest describes one outbound relay attempt.
type StreamRequest struct {
	InstanceName string
	Message      string
	Options      StreamOptions
	ThreadID     string // optional; continues an upstream thread when set
}

// authFrame is the first client-to-server frame of the handshake
type authFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	AgentID   string `json:"agentId"`
	Timestamp string `json:"timestamp"`
}

// messageFrame is the second client-to-server frame carrying the user message
type messageFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	AgentID   string `json:"agentId"`
	Timestamp string `json:"timestamp"`
	TabID     string `json:"tabId"`
	ThreadID  string `json:"threadId,omitempty"`
}

// Client talks to the upstream agent platform over HTTP and websockets.
// One Client is shared across all relay attempts for the process
// lifetime and torn down exactly once at shutdown.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	dialer  *websocket.Dialer
	tokens  *TokenProvider
	logger  *slog.Logger
}

// NewClient creates the shared upstream client. Pass nil logger for default.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	httpc := &http.Client{}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   httpc,
		dialer: &websocket.Dialer{
			HandshakeTimeout: connectTimeout,
		},
		tokens: NewTokenProvider(baseURL, apiKey, httpc, logger),
		logger: logger.With("component", "upstream"),
	}
}

// Close releases pooled connections. Never called mid-request.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}

// randomHex returns the first n characters of a random UUID's hex form.
func randomHex(n int) string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:n]
}

// newSessionID generates the per-attempt upstream session identifier:
// a millisecond timestamp prefix with a short random suffix.
func newSessionID() string {
	return fmt.Sprintf("session-%d-%s", time.Now().UnixMilli(), randomHex(9))
}

// streamURL builds the websocket endpoint for an agent instance,
// rewriting the configured base URL's scheme to its duplex counterpart.
func (c *Client) streamURL(instanceName, sessionID, tabID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}

	u.Path = u.Path + "/agents/" + instanceName + "/ws"

	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("tab_id", tabID)
	q.Set("auth", "true")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Stream opens a duplex connection to the named agent instance, sends the
// two-phase handshake (auth frame, then message frame), and returns a
// channel of decoded upstream events.
//
// The channel closes when a complete frame arrives, the connection
// closes, an unrecoverable transport error occurs, or the 30 second read
// window elapses - the last two end the stream without an error event;
// whatever was received stands. Dial and handshake failures are terminal
// and returned as errors.
func (c *Client) Stream(ctx context.Context, req *StreamRequest) (<-chan Event, error) {
	sessionID := newSessionID()
	tabID := randomHex(26)

	wsURL, err := c.streamURL(req.InstanceName, sessionID, tabID)
	if err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx, req.InstanceName)
	if err != nil {
		return nil, fmt.Errorf("obtaining streaming token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("connecting to agent %s: %w", req.InstanceName, err)
	}

	timestamp := time.Now().UTC().Format(wireTimestampLayout)

	if err := conn.WriteJSON(authFrame{
		Type:      "auth",
		SessionID: sessionID,
		AgentID:   req.InstanceName,
		Timestamp: timestamp,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending auth frame: %w", err)
	}

	if err := conn.WriteJSON(messageFrame{
		Type:      "message",
		Content:   req.Message,
		UserID:    "1", // fixed protocol user id
		SessionID: sessionID,
		AgentID:   req.InstanceName,
		Timestamp: timestamp,
		TabID:     tabID,
		ThreadID:  req.ThreadID,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending message frame: %w", err)
	}

	c.logger.Debug("upstream stream opened",
		"instance", req.InstanceName,
		"session_id", sessionID,
		"thread_id", req.ThreadID)

	events := make(chan Event, eventBufferSize)
	go c.readLoop(ctx, conn, req.InstanceName, events)

	return events, nil
}

// readLoop reads frames until completion, close, error, or the read
// window elapses, decoding each into an Event.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, instance string, events chan<- Event) {
	defer close(events)
	defer conn.Close()

	deadline := time.Now().Add(readWindow)
	if err := conn.SetReadDeadline(deadline); err != nil {
		c.logger.Error("setting read deadline", "instance", instance, "error", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logReadEnd(instance, err)
			return
		}

		ev, ok := decodeFrame(data)
		if !ok {
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}

		// Terminal events end the loop; the channel close signals the end
		// of the stream to the consumer.
		if ev.Kind == EventComplete || ev.Kind == EventError {
			return
		}
	}
}

// logReadEnd classifies why the read loop stopped. Timeouts and normal
// closures are expected stream ends, not failures.
func (c *Client) logReadEnd(instance string, err error) {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		c.logger.Debug("read window elapsed, partial results are final", "instance", instance)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.logger.Debug("upstream closed the connection", "instance", instance)
	default:
		c.logger.Warn("upstream read ended", "instance", instance, "error", err)
	}
}
