// ABOUTME: Tests for upstream frame decoding
// ABOUTME: Covers every frame type, the error-field override, and the raw fallback

package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeFrame_Chunk(t *testing.T) {
	ev, ok := decodeFrame([]byte(`{"type":"chunk","content":"Hello, "}`))
	assert.True(t, ok)
	assert.Equal(t, EventChunk, ev.Kind)
	assert.Equal(t, "Hello, ", ev.Text)
}

func TestDecodeFrame_Complete(t *testing.T) {
	ev, ok := decodeFrame([]byte(`{"type":"complete"}`))
	assert.True(t, ok)
	assert.Equal(t, EventComplete, ev.Kind)
}

func TestDecodeFrame_Connected(t *testing.T) {
	ev, ok := decodeFrame([]byte(`{"type":"connected"}`))
	assert.True(t, ok)
	assert.Equal(t, EventConnected, ev.Kind)
}

func TestDecodeFrame_Typing(t *testing.T) {
	ev, ok := decodeFrame([]byte(`{"type":"typing","isTyping":true}`))
	assert.True(t, ok)
	assert.Equal(t, EventTyping, ev.Kind)
	assert.True(t, ev.Typing)

	ev, ok = decodeFrame([]byte(`{"type":"typing","isTyping":false}`))
	assert.True(t, ok)
	assert.False(t, ev.Typing)
}

func TestDecodeFrame_ThreadInfo(t *testing.T) {
	ev, ok := decodeFrame([]byte(`{"type":"thread_info","threadId":"thread-abc"}`))
	assert.True(t, ok)
	assert.Equal(t, EventThreadInfo, ev.Kind)
	assert.Equal(t, "thread-abc", ev.ThreadID)
}

func TestDecodeFrame_ErrorField(t *testing.T) {
	ev, ok := decodeFrame([]byte(`{"error":"agent exploded"}`))
	assert.True(t, ok)
	assert.Equal(t, EventError, ev.Kind)
	assert.Equal(t, "agent exploded", ev.Err)
}

func TestDecodeFrame_ErrorFieldWinsOverType(t *testing.T) {
	// An error field terminates the exchange even on an otherwise
	// ordinary chunk frame.
	ev, ok := decodeFrame([]byte(`{"type":"chunk","content":"partial","error":"rate limited"}`))
	assert.True(t, ok)
	assert.Equal(t, EventError, ev.Kind)
	assert.Equal(t, "rate limited", ev.Err)
}

func TestDecodeFrame_InvalidJSONBecomesRaw(t *testing.T) {
	ev, ok := decodeFrame([]byte("plain text, not JSON at all"))
	assert.True(t, ok)
	assert.Equal(t, EventRaw, ev.Kind)
	assert.Equal(t, "plain text, not JSON at all", ev.Text)
}

func TestDecodeFrame_UnknownTypeIgnored(t *testing.T) {
	_, ok := decodeFrame([]byte(`{"type":"cf_agent_state","state":{}}`))
	assert.False(t, ok)
}
