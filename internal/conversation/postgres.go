package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// messageCols is the standard SELECT column list for scanMessages.
const messageCols = `id, role, content, tool_calls, user_id, seq, created_at`

// PostgresStore is a Store backed by PostgreSQL.
//
// Append runs in a transaction holding a row lock on the conversation, so
// sequence numbers are assigned atomically per conversation while appends to
// different conversations proceed in parallel.
//
// PostgresStore is safe for concurrent use by multiple goroutines.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// CreateIfAbsent initializes the conversation if it does not exist.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return nil, fmt.Errorf("creating conversation %s: %w", id, err)
	}
	return s.Read(ctx, id)
}

// Append commits a message to the conversation log.
func (s *PostgresStore) Append(ctx context.Context, id uuid.UUID, msg Message) (Message, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var toolCallsJSON []byte
	if len(msg.ToolCalls) > 0 {
		var err error
		toolCallsJSON, err = json.Marshal(msg.ToolCalls)
		if err != nil {
			return Message{}, fmt.Errorf("marshaling tool calls: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("beginning append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row lock serializes sequence assignment per conversation.
	var lockedID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, id).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, fmt.Errorf("appending to conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Message{}, fmt.Errorf("locking conversation %s: %w", id, err)
	}

	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE conversation_id = $1`, id).
		Scan(&msg.Seq)
	if err != nil {
		return Message{}, fmt.Errorf("assigning sequence: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, tool_calls, user_id, seq, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, id, string(msg.Role), msg.Content, toolCallsJSON, msg.UserID, msg.Seq, msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("committing append: %w", err)
	}

	s.logger.Debug("appended message",
		"conversation_id", id, "role", msg.Role, "seq", msg.Seq)
	return msg, nil
}

// Read returns a snapshot of the committed conversation state.
func (s *PostgresStore) Read(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("reading conversation %s: %w", id, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+messageCols+` FROM messages WHERE conversation_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("reading messages for %s: %w", id, err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	return &Conversation{ID: id, Messages: msgs}, nil
}

// scanMessages converts message rows into Message values.
func scanMessages(rows pgx.Rows) ([]Message, error) {
	msgs := []Message{}
	for rows.Next() {
		var (
			m             Message
			role          string
			toolCallsJSON []byte
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &toolCallsJSON,
			&m.UserID, &m.Seq, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = Role(role)
		if len(toolCallsJSON) > 0 {
			if err := json.Unmarshal(toolCallsJSON, &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshaling tool calls for %s: %w", m.ID, err)
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}
