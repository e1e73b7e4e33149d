// Package upstream talks to the hosted agent platform.
//
// It covers three concerns: exchanging the long-lived API key for
// short-lived streaming tokens (TokenProvider), discovering agents over
// the platform's REST API (Client.ListAgents), and streaming a single
// message exchange over a websocket (Client.Stream).
//
// Stream follows the platform's two-phase handshake - an auth frame and
// then the message frame - and returns a channel of decoded Events. The
// channel closes when the response completes, the connection drops, or
// the read window elapses; partial results stand in all cases. Frame
// decoding never fails: frames that are not valid JSON surface as
// raw-text events so no upstream output is silently discarded.
package upstream
