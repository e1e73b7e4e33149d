// Package server hosts the client-facing surface of agent-studio.
//
// It exposes a REST API for session and agent management, a websocket
// channel per session for streamed chat, a built-in chat page, and
// rendered conversation transcripts. The Server wires together the
// SQLite store, the upstream platform client, the relay aggregator, and
// the connection hub, and owns their lifecycle from startup checks
// through graceful shutdown.
package server
