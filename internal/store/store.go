// ABOUTME: Store interface and data types for agent-studio persistence
// ABOUTME: Defines Session, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Role constants for message authorship
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session represents a chat session bound to one upstream agent
type Session struct {
	ID        string
	AgentID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents a single message within a session
type Message struct {
	ID        string
	SessionID string
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time
}

// Store defines the interface for session and message persistence
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, agentID string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	TouchSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	CleanupOldSessions(ctx context.Context, olderThan time.Duration) (int, error)

	// Messages
	AddMessage(ctx context.Context, sessionID, role, content string) (*Message, error)
	GetMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error)
	UpdateMessageContent(ctx context.Context, messageID, content string) error

	// Close releases any resources held by the store
	Close() error
}
