// Package store persists conversations and their messages.
//
// Two implementations are provided: [Memory] for tests and local
// development, and [Postgres] for production. Both scope every read and
// write to a user ID so one user can never observe another's
// conversations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pulsechat/pulsechat"
)

// ErrConversationNotFound is returned when a conversation does not exist
// or belongs to a different user.
var ErrConversationNotFound = errors.New("store: conversation not found")

// Conversation is a titled thread of messages owned by one user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is one durably stored conversation turn.
type StoredMessage struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Role           pulsechat.Role `json:"role"`
	Content        string         `json:"content"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Store persists conversations and messages.
type Store interface {
	// CreateConversation creates a new conversation for the user.
	CreateConversation(ctx context.Context, userID, title string) (Conversation, error)

	// Conversation returns the conversation if it exists and belongs to
	// the user, else ErrConversationNotFound.
	Conversation(ctx context.Context, conversationID, userID string) (Conversation, error)

	// Conversations lists the user's conversations, most recently
	// updated first.
	Conversations(ctx context.Context, userID string) ([]Conversation, error)

	// Messages returns all messages of a conversation in chronological
	// order.
	Messages(ctx context.Context, conversationID, userID string) ([]StoredMessage, error)

	// RecentMessages returns up to limit of the newest messages in
	// chronological order.
	RecentMessages(ctx context.Context, conversationID, userID string, limit int) ([]StoredMessage, error)

	// SaveMessage appends a message to a conversation and returns the
	// stored record.
	SaveMessage(ctx context.Context, conversationID, userID string, role pulsechat.Role, content string) (StoredMessage, error)
}
