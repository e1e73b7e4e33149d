// Package store provides persistence for chat sessions and messages.
//
// # Overview
//
// The store keeps exactly two tables: chat_sessions and chat_messages.
// Sessions bind a conversation to one upstream agent; messages record the
// user/assistant exchange in arrival order. Assistant messages are created
// empty when the first streamed chunk arrives and finalized with
// UpdateMessageContent once the relay completes.
//
// # Implementations
//
// SQLiteStore is the production implementation, backed by
// modernc.org/sqlite (pure Go, no cgo) with WAL mode enabled. The schema
// is created automatically on first open.
//
// # Semantics
//
//   - GetMessages returns the most recent N messages in chronological order.
//   - AddMessage touches the parent session's updated_at timestamp.
//   - DeleteSession removes the session and all its messages.
//   - CleanupOldSessions removes sessions idle past a retention window.
//   - Lookups for missing rows return ErrNotFound.
package store
