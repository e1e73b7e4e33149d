// ABOUTME: Typed upstream event variants and the frame decode step
// ABOUTME: Decoding never fails - unparseable frames become raw text chunks

package upstream

import "encoding/json"

// EventKind identifies the variant of an upstream event
type EventKind string

// Event kinds emitted by the streaming client
const (
	EventChunk      EventKind = "chunk"       // incremental text fragment
	EventComplete   EventKind = "complete"    // end of response
	EventConnected  EventKind = "connected"   // upstream accepted the session
	EventTyping     EventKind = "typing"      // typing indicator
	EventThreadInfo EventKind = "thread_info" // upstream-assigned thread id
	EventError      EventKind = "error"       // upstream-reported error
	EventRaw        EventKind = "raw"         // unparseable frame, treated as plain text
)

// Event is a tagged variant over the frames the upstream agent sends.
// Exactly one of the payload fields is meaningful for a given Kind.
type Event struct {
	Kind     EventKind
	Text     string // chunk, raw
	ThreadID string // thread_info
	Typing   bool   // typing
	Err      string // error
}

// frame mirrors the JSON wire shape of server-to-client frames
type frame struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	IsTyping bool   `json:"isTyping"`
	ThreadID string `json:"threadId"`
	Error    string `json:"error"`
}

// decodeFrame converts a raw text frame into an Event. It never fails:
// frames that are not valid JSON come back as the raw-text fallback
// variant. An error field wins over the frame's declared type, even
// when that type is not "error". Unrecognized types return ok=false
// and are skipped by the caller for forward compatibility.
func decodeFrame(data []byte) (Event, bool) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{Kind: EventRaw, Text: string(data)}, true
	}

	if f.Error != "" {
		return Event{Kind: EventError, Err: f.Error}, true
	}

	switch f.Type {
	case "chunk":
		return Event{Kind: EventChunk, Text: f.Content}, true
	case "complete":
		return Event{Kind: EventComplete}, true
	case "connected":
		return Event{Kind: EventConnected}, true
	case "typing":
		return Event{Kind: EventTyping, Typing: f.IsTyping}, true
	case "thread_info":
		return Event{Kind: EventThreadInfo, ThreadID: f.ThreadID}, true
	default:
		// Unknown structured frame (cf_agent_state and friends) - ignore
		return Event{}, false
	}
}
