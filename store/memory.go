package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsechat/pulsechat"
)

// Memory is an in-memory Store for tests and local development.
// It is safe for concurrent use.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]Conversation
	messages      map[string][]StoredMessage // keyed by conversation ID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]Conversation),
		messages:      make(map[string][]StoredMessage),
	}
}

// CreateConversation implements Store.
func (m *Memory) CreateConversation(ctx context.Context, userID, title string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	conv := Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.conversations[conv.ID] = conv
	return conv, nil
}

// Conversation implements Store.
func (m *Memory) Conversation(ctx context.Context, conversationID, userID string) (Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[conversationID]
	if !ok || conv.UserID != userID {
		return Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// Conversations implements Store.
func (m *Memory) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Conversation
	for _, conv := range m.conversations {
		if conv.UserID == userID {
			result = append(result, conv)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// Messages implements Store.
func (m *Memory) Messages(ctx context.Context, conversationID, userID string) ([]StoredMessage, error) {
	if _, err := m.Conversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[conversationID]
	result := make([]StoredMessage, len(msgs))
	copy(result, msgs)
	return result, nil
}

// RecentMessages implements Store.
func (m *Memory) RecentMessages(ctx context.Context, conversationID, userID string, limit int) ([]StoredMessage, error) {
	msgs, err := m.Messages(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// SaveMessage implements Store.
func (m *Memory) SaveMessage(ctx context.Context, conversationID, userID string, role pulsechat.Role, content string) (StoredMessage, error) {
	if _, err := m.Conversation(ctx, conversationID, userID); err != nil {
		return StoredMessage{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	msg := StoredMessage{
		ID:             pulsechat.GenerateMessageID(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)

	conv := m.conversations[conversationID]
	conv.UpdatedAt = now
	m.conversations[conversationID] = conv

	return msg, nil
}
