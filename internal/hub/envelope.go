// ABOUTME: The JSON envelope protocol spoken to browser clients
// ABOUTME: Every frame carries a type tag, an optional payload, and a UTC timestamp

package hub

import "time"

// Envelope types sent to clients.
const (
	TypeHistory    = "history"      // past messages, sent once on connect
	TypeUserMsg    = "user_message" // echo of an accepted user message
	TypeTyping     = "typing"       // assistant typing indicator
	TypeAIChunk    = "ai_chunk"     // incremental response text
	TypeAIComplete = "ai_complete"  // full response, ends the exchange
	TypeThreadInfo = "thread_info"  // upstream thread identifier
	TypeError      = "error"        // relay or protocol error
	TypePong       = "pong"         // reply to a client ping
)

// Envelope is one frame sent to a client.
type Envelope struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// NewEnvelope stamps an envelope with the current UTC time.
func NewEnvelope(typ string, payload map[string]any) *Envelope {
	return &Envelope{
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
