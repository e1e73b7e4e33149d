// ABOUTME: End-to-end tests for the websocket chat channel
// ABOUTME: A real client dials the test server and asserts the envelope sequence

package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agent-studio/internal/upstream"
)

// dial connects a websocket client to the test server for a session.
func dial(t *testing.T, baseURL, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads one envelope with a test deadline.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// payload extracts the nested payload object, failing if it is absent.
func payload(t *testing.T, frame map[string]any) map[string]any {
	t.Helper()
	p, ok := frame["payload"].(map[string]any)
	require.True(t, ok, "frame %v has no payload", frame["type"])
	return p
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

// userFrame builds the client frame carrying one chat message.
func userFrame(content string) map[string]any {
	return map[string]any{
		"type":    "user_message",
		"payload": map[string]any{"content": content},
	}
}

func TestWebSocket_HistoryOnConnect(t *testing.T) {
	_, ts := newTestServer(t, helloStreamer())
	id := createSession(t, ts)

	// Seed one exchange over the buffered API first.
	status, _ := apiCall(t, http.MethodPost, ts.URL+"/sessions/"+id+"/messages", `{"content":"hi"}`)
	require.Equal(t, http.StatusOK, status)

	conn := dial(t, ts.URL, id)
	frame := readFrame(t, conn)
	assert.Equal(t, "history", frame["type"])
	messages := payload(t, frame)["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].(map[string]any)["content"])
	assert.Equal(t, "Hello", messages[1].(map[string]any)["content"])
}

func TestWebSocket_UnknownSessionClosedWithCode(t *testing.T) {
	_, ts := newTestServer(t, helloStreamer())

	conn := dial(t, ts.URL, "no-such-session")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, closeUnknownSession, closeErr.Code)
}

func TestWebSocket_MessageExchange(t *testing.T) {
	_, ts := newTestServer(t, helloStreamer())
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	assert.Equal(t, "history", readFrame(t, conn)["type"])

	sendFrame(t, conn, userFrame("hi"))

	frame := readFrame(t, conn)
	require.Equal(t, "user_message", frame["type"])
	assert.Equal(t, "hi", payload(t, frame)["message"].(map[string]any)["content"])

	frame = readFrame(t, conn)
	require.Equal(t, "typing", frame["type"])
	assert.Equal(t, true, payload(t, frame)["isTyping"])

	frame = readFrame(t, conn)
	require.Equal(t, "ai_chunk", frame["type"])
	assert.Equal(t, "Hel", payload(t, frame)["content"])

	frame = readFrame(t, conn)
	require.Equal(t, "ai_chunk", frame["type"])
	assert.Equal(t, "lo", payload(t, frame)["content"])

	frame = readFrame(t, conn)
	require.Equal(t, "typing", frame["type"])
	assert.Equal(t, false, payload(t, frame)["isTyping"])

	frame = readFrame(t, conn)
	require.Equal(t, "ai_complete", frame["type"])
	assert.Equal(t, "Hello", payload(t, frame)["content"])
	assert.NotEmpty(t, payload(t, frame)["message_id"])
}

func TestWebSocket_PersistsAssistantMessage(t *testing.T) {
	_, ts := newTestServer(t, helloStreamer())
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	readFrame(t, conn) // history

	sendFrame(t, conn, userFrame("hi"))
	for {
		if readFrame(t, conn)["type"] == "ai_complete" {
			break
		}
	}

	status, body := apiCall(t, http.MethodGet, ts.URL+"/sessions/"+id+"/messages", "")
	require.Equal(t, http.StatusOK, status)
	messages := body.Data.([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello", messages[1].(map[string]any)["content"])
}

func TestWebSocket_EmptyStreamStoresSentinel(t *testing.T) {
	_, ts := newTestServer(t, &scriptedStreamer{events: []upstream.Event{
		{Kind: upstream.EventComplete},
	}})
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	readFrame(t, conn) // history

	sendFrame(t, conn, userFrame("hi"))
	var complete map[string]any
	for {
		frame := readFrame(t, conn)
		if frame["type"] == "ai_complete" {
			complete = frame
			break
		}
	}

	text := payload(t, complete)["content"].(string)
	assert.Contains(t, text, "no response received")
}

func TestWebSocket_UpstreamErrorStreamed(t *testing.T) {
	_, ts := newTestServer(t, &scriptedStreamer{events: []upstream.Event{
		{Kind: upstream.EventChunk, Text: "part"},
		{Kind: upstream.EventError, Err: "backend down"},
	}})
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	readFrame(t, conn) // history

	sendFrame(t, conn, userFrame("hi"))
	var chunks []string
	var complete map[string]any
	for {
		frame := readFrame(t, conn)
		switch frame["type"] {
		case "ai_chunk":
			chunks = append(chunks, payload(t, frame)["content"].(string))
		case "ai_complete":
			complete = frame
		}
		if complete != nil {
			break
		}
	}

	assert.Equal(t, []string{"part", "Error: backend down"}, chunks)
	assert.Equal(t, "partError: backend down", payload(t, complete)["content"])
}

func TestWebSocket_ThreadInfoForwarded(t *testing.T) {
	_, ts := newTestServer(t, &scriptedStreamer{events: []upstream.Event{
		{Kind: upstream.EventThreadInfo, ThreadID: "thread-42"},
		{Kind: upstream.EventChunk, Text: "ok"},
		{Kind: upstream.EventComplete},
	}})
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	readFrame(t, conn) // history

	sendFrame(t, conn, userFrame("hi"))
	sawThread := false
	for {
		frame := readFrame(t, conn)
		if frame["type"] == "thread_info" {
			sawThread = true
			assert.Equal(t, "thread-42", payload(t, frame)["thread_id"])
		}
		if frame["type"] == "ai_complete" {
			break
		}
	}
	assert.True(t, sawThread)
}

func TestWebSocket_ClientThreadIDReachesUpstream(t *testing.T) {
	streamer := helloStreamer()
	_, ts := newTestServer(t, streamer)
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	readFrame(t, conn) // history

	sendFrame(t, conn, map[string]any{
		"type":    "user_message",
		"payload": map[string]any{"content": "hi again", "threadId": "thread-42"},
	})
	for {
		if readFrame(t, conn)["type"] == "ai_complete" {
			break
		}
	}

	req := streamer.last()
	require.NotNil(t, req)
	assert.Equal(t, "thread-42", req.ThreadID)
}

func TestWebSocket_PingPong(t *testing.T) {
	_, ts := newTestServer(t, helloStreamer())
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	readFrame(t, conn) // history

	sendFrame(t, conn, map[string]any{"type": "ping"})
	frame := readFrame(t, conn)
	assert.Equal(t, "pong", frame["type"])
	assert.NotEmpty(t, frame["timestamp"])
}

func TestWebSocket_RejectsOversizedMessage(t *testing.T) {
	_, ts := newTestServer(t, helloStreamer())
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	readFrame(t, conn) // history

	sendFrame(t, conn, userFrame(strings.Repeat("a", 5000)))
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "message too long", payload(t, frame)["message"])
}

func TestWebSocket_UnknownFrameType(t *testing.T) {
	_, ts := newTestServer(t, helloStreamer())
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	readFrame(t, conn) // history

	sendFrame(t, conn, map[string]any{"type": "subscribe"})
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
}

func TestWebSocket_BroadcastReachesAllTabs(t *testing.T) {
	_, ts := newTestServer(t, helloStreamer())
	id := createSession(t, ts)

	tab1 := dial(t, ts.URL, id)
	tab2 := dial(t, ts.URL, id)
	readFrame(t, tab1) // history
	readFrame(t, tab2)

	sendFrame(t, tab1, userFrame("hi"))

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		var complete map[string]any
		for {
			frame := readFrame(t, conn)
			if frame["type"] == "ai_complete" {
				complete = frame
				break
			}
		}
		assert.Equal(t, "Hello", payload(t, complete)["content"])
	}
}

func TestWebSocket_InvalidJSONFrame(t *testing.T) {
	_, ts := newTestServer(t, helloStreamer())
	id := createSession(t, ts)

	conn := dial(t, ts.URL, id)
	readFrame(t, conn) // history

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "invalid message format", payload(t, frame)["message"])
}
