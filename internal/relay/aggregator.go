// ABOUTME: Turns the upstream event stream into client-facing responses
// ABOUTME: Buffered mode returns one string; streaming mode yields deltas with a single terminal marker

package relay

import (
	"context"
	"log/slog"
	"strings"

	"github.com/2389/agent-studio/internal/upstream"
)

const (
	// EmptyResponseText stands in for a stream that completed
	// without producing any text.
	EmptyResponseText = "WebSocket connection successful, but no response received."
	// ApologyText replaces the response when the upstream reports an
	// error in buffered mode.
	ApologyText = "I apologize, but I encountered an error while processing your request. Please try again."
	// threadInfoPrefix marks chunk content that smuggles thread metadata
	// instead of response text.
	threadInfoPrefix = "__THREAD_INFO__"

	deltaBufferSize = 16
)

// Streamer opens one upstream exchange. Satisfied by *upstream.Client.
type Streamer interface {
	Stream(ctx context.Context, req *upstream.StreamRequest) (<-chan upstream.Event, error)
}

// Request describes one message exchange to relay.
type Request struct {
	Agent    *upstream.Agent
	Message  string
	History  []upstream.PromptMessage
	ThreadID string // continues an upstream thread when set
}

// Reply is the buffered result of one exchange.
type Reply struct {
	Text     string
	ThreadID string // upstream-assigned thread, empty if none was reported
}

// Delta is one increment of a streamed response. At most one of the
// fields is meaningful: Text carries response content, ThreadID carries
// thread metadata, and Final marks the end of the stream. Every stream
// ends with exactly one Final delta regardless of how the upstream
// connection ended.
type Delta struct {
	Text     string
	ThreadID string
	Final    bool
}

// Aggregator relays message exchanges through a Streamer.
type Aggregator struct {
	streamer Streamer
	logger   *slog.Logger
}

// NewAggregator creates an aggregator. Pass nil logger for default.
func NewAggregator(streamer Streamer, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		streamer: streamer,
		logger:   logger.With("component", "relay"),
	}
}

// streamRequest translates a relay request into the upstream form.
func streamRequest(req *Request, instance string) *upstream.StreamRequest {
	settings := ParseModelSettings(req.Agent.ModelSettings)
	return &upstream.StreamRequest{
		InstanceName: instance,
		Message:      req.Message,
		ThreadID:     req.ThreadID,
		Options: upstream.StreamOptions{
			Model:       settings.Model,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
			Messages:    req.History,
		},
	}
}

// parseThreadInfo recognizes thread metadata smuggled through chunk
// content: the marker followed verbatim by the thread id. Such chunks
// never contribute to the response text, even with an empty id.
func parseThreadInfo(text string) (string, bool) {
	if !strings.HasPrefix(text, threadInfoPrefix) {
		return "", false
	}
	return strings.TrimPrefix(text, threadInfoPrefix), true
}

// GenerateResponse relays one exchange and returns the whole response at
// once: chunks concatenated and trimmed, with the empty-response
// sentinel when nothing arrived and the apology text when the upstream
// reported an error. It never returns an error to the caller; relay
// failures degrade to the apology.
//
// The agent's username addresses the upstream instance here, with the ID
// as fallback, matching how the platform routes buffered exchanges.
func (a *Aggregator) GenerateResponse(ctx context.Context, req *Request) *Reply {
	instance := req.Agent.Username
	if instance == "" {
		instance = req.Agent.ID
	}

	events, err := a.streamer.Stream(ctx, streamRequest(req, instance))
	if err != nil {
		a.logger.Error("opening upstream stream", "agent_id", req.Agent.ID, "error", err)
		return &Reply{Text: ApologyText}
	}

	var buf strings.Builder
	var threadID string
	for ev := range events {
		switch ev.Kind {
		case upstream.EventChunk, upstream.EventRaw:
			if id, isThreadInfo := parseThreadInfo(ev.Text); isThreadInfo {
				if id != "" {
					threadID = id
				}
				continue
			}
			buf.WriteString(ev.Text)
		case upstream.EventThreadInfo:
			threadID = ev.ThreadID
		case upstream.EventError:
			a.logger.Warn("upstream reported an error", "agent_id", req.Agent.ID, "error", ev.Err)
			return &Reply{Text: ApologyText, ThreadID: threadID}
		case upstream.EventComplete:
			// loop ends when the client closes the channel
		}
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		text = EmptyResponseText
	}
	return &Reply{Text: text, ThreadID: threadID}
}

// GenerateResponseStream relays one exchange as a stream of deltas.
// The returned channel carries text and thread-info increments and closes
// after exactly one Final delta: empty on normal completion or connection
// end, or carrying an error description when the upstream reported one.
// Opening the stream can fail; that is the only error path.
//
// Streaming exchanges address the upstream instance by agent ID.
func (a *Aggregator) GenerateResponseStream(ctx context.Context, req *Request) (<-chan Delta, error) {
	events, err := a.streamer.Stream(ctx, streamRequest(req, req.Agent.ID))
	if err != nil {
		return nil, err
	}

	out := make(chan Delta, deltaBufferSize)
	go func() {
		defer close(out)

		send := func(d Delta) bool {
			select {
			case out <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		sentFinal := false
		finish := func(d Delta) {
			if sentFinal {
				return
			}
			sentFinal = true
			d.Final = true
			send(d)
		}
		// The channel closing without a complete frame still ends the
		// stream with its one Final delta.
		defer finish(Delta{})

		for ev := range events {
			switch ev.Kind {
			case upstream.EventChunk, upstream.EventRaw:
				if id, isThreadInfo := parseThreadInfo(ev.Text); isThreadInfo {
					if id != "" && !send(Delta{ThreadID: id}) {
						return
					}
					continue
				}
				if !send(Delta{Text: ev.Text}) {
					return
				}
			case upstream.EventThreadInfo:
				if !send(Delta{ThreadID: ev.ThreadID}) {
					return
				}
			case upstream.EventError:
				finish(Delta{Text: "Error: " + ev.Err})
				return
			case upstream.EventComplete:
				finish(Delta{})
				return
			}
		}
	}()

	return out, nil
}
