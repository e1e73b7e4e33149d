// Package hub fans envelopes out to the browser connections attached to
// each chat session.
//
// The Registry maps session IDs to their live connections and is the
// single broadcast point for the server: relay progress, typing
// indicators, and errors all pass through Registry.Broadcast. Envelope
// defines the JSON frame format clients receive.
package hub
