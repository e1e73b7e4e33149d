// ABOUTME: Registry of live client connections grouped by chat session
// ABOUTME: Broadcast snapshots the member list so sends happen outside the lock

package hub

import (
	"log/slog"
	"sync"
)

// Conn is one live client connection. Implementations serialize their
// own writes; SendEnvelope may be called from any goroutine.
type Conn interface {
	SendEnvelope(env *Envelope) error
}

// Registry tracks which connections are attached to which session.
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string][]Conn
	logger *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  make(map[string][]Conn),
		logger: logger.With("component", "hub"),
	}
}

// Register attaches a connection to a session. Connections are kept in
// arrival order; the same session can hold several (multiple tabs).
func (r *Registry) Register(sessionID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sessionID] = append(r.conns[sessionID], conn)
	r.logger.Debug("connection registered", "session_id", sessionID, "count", len(r.conns[sessionID]))
}

// Unregister detaches a connection from a session. Unknown connections
// and sessions are ignored, so it is safe to call from deferred cleanup
// paths that may run twice. The session's entry disappears entirely when
// its last connection leaves.
func (r *Registry) Unregister(sessionID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.conns[sessionID]
	for i, c := range members {
		if c == conn {
			members = append(members[:i], members[i+1:]...)
			break
		}
	}

	if len(members) == 0 {
		delete(r.conns, sessionID)
		return
	}
	r.conns[sessionID] = members
}

// Count reports how many connections a session currently holds.
func (r *Registry) Count(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[sessionID])
}

// Broadcast sends an envelope to every connection on a session. The
// member list is snapshotted under the read lock and sends happen
// outside it, so a slow or dead connection never blocks registration.
// Send failures are logged and skipped; the connection's own read loop
// is responsible for unregistering it.
func (r *Registry) Broadcast(sessionID string, env *Envelope) {
	r.mu.RLock()
	snapshot := make([]Conn, len(r.conns[sessionID]))
	copy(snapshot, r.conns[sessionID])
	r.mu.RUnlock()

	for _, conn := range snapshot {
		if err := conn.SendEnvelope(env); err != nil {
			r.logger.Warn("broadcast send failed", "session_id", sessionID, "type", env.Type, "error", err)
		}
	}
}
