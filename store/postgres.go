package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsechat/pulsechat"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS conversations_user_idx ON conversations (user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id UUID NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
	user_id         TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);
`

// Postgres is a Store backed by PostgreSQL via pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: pinging postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate creates the schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: applying schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// CreateConversation implements Store.
func (p *Postgres) CreateConversation(ctx context.Context, userID, title string) (Conversation, error) {
	var conv Conversation
	err := p.pool.QueryRow(ctx,
		`INSERT INTO conversations (user_id, title)
		 VALUES ($1, $2)
		 RETURNING id, user_id, title, created_at, updated_at`,
		userID, title,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("store: creating conversation: %w", err)
	}
	return conv, nil
}

// Conversation implements Store.
func (p *Postgres) Conversation(ctx context.Context, conversationID, userID string) (Conversation, error) {
	var conv Conversation
	err := p.pool.QueryRow(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations
		 WHERE id = $1 AND user_id = $2`,
		conversationID, userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("store: loading conversation: %w", err)
	}
	return conv, nil
}

// Conversations implements Store.
func (p *Postgres) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: listing conversations: %w", err)
	}
	defer rows.Close()

	var result []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning conversation: %w", err)
		}
		result = append(result, conv)
	}
	return result, rows.Err()
}

// Messages implements Store.
func (p *Postgres) Messages(ctx context.Context, conversationID, userID string) ([]StoredMessage, error) {
	if _, err := p.Conversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, conversation_id, user_id, role, content, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: listing messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// RecentMessages implements Store.
func (p *Postgres) RecentMessages(ctx context.Context, conversationID, userID string, limit int) ([]StoredMessage, error) {
	if _, err := p.Conversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, conversation_id, user_id, role, content, created_at
		 FROM (
			SELECT id, conversation_id, user_id, role, content, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		 ) recent
		 ORDER BY created_at`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: listing recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// SaveMessage implements Store.
func (p *Postgres) SaveMessage(ctx context.Context, conversationID, userID string, role pulsechat.Role, content string) (StoredMessage, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return StoredMessage{}, fmt.Errorf("store: beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var msg StoredMessage
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, user_id, role, content)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, conversation_id, user_id, role, content, created_at`,
		pulsechat.GenerateMessageID(), conversationID, userID, string(role), content,
	).Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msg.Role, &msg.Content, &msg.CreatedAt)
	if err != nil {
		return StoredMessage{}, fmt.Errorf("store: saving message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`,
		conversationID,
	); err != nil {
		return StoredMessage{}, fmt.Errorf("store: touching conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return StoredMessage{}, fmt.Errorf("store: committing message: %w", err)
	}
	return msg, nil
}

func scanMessages(rows pgx.Rows) ([]StoredMessage, error) {
	var result []StoredMessage
	for rows.Next() {
		var msg StoredMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning message: %w", err)
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
