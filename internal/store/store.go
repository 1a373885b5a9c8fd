// ABOUTME: Store interface and data types for claudebot persistence
// ABOUTME: Defines Conversation, Message, ConfigEntry structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidRole is returned when a message role is outside the allowed set
var ErrInvalidRole = errors.New("invalid message role")

// DefaultTitle is applied to conversations created without an explicit title.
const DefaultTitle = "New Conversation"

// Role constants for message authorship
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole reports whether role is one of the three allowed values.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

// Conversation represents a chat conversation with ordered message history
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents a single message within a conversation.
// Content is immutable once written; messages are only removed as a
// cascade of conversation deletion.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user", "assistant", "system"
	Content        string
	CreatedAt      time.Time
}

// ConfigEntry represents a key/value configuration row with upsert semantics
type ConfigEntry struct {
	Key       string
	Value     string
	CreatedAt time.Time
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]*Conversation, error)
	RenameConversation(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error

	// Messages (history is the source of truth)
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// Config (key/value, atomic upsert)
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Close releases any resources held by the store
	Close() error
}
