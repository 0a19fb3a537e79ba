package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation.
// It backs tests and single-process deployments; durable deployments use
// PostgresStore.
//
// MemoryStore is safe for concurrent use by multiple goroutines.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[uuid.UUID][]Message
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[uuid.UUID][]Message)}
}

// CreateIfAbsent initializes the conversation if it does not exist.
func (s *MemoryStore) CreateIfAbsent(_ context.Context, id uuid.UUID) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[id]; !ok {
		s.convs[id] = []Message{}
	}
	return s.snapshotLocked(id), nil
}

// Append commits a message to the conversation log.
// The conversation is created implicitly when absent, matching the
// idempotent initialization contract.
func (s *MemoryStore) Append(_ context.Context, id uuid.UUID, msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.convs[id]

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Seq = len(msgs)

	s.convs[id] = append(msgs, msg)
	return msg, nil
}

// Read returns a snapshot of the committed conversation state.
func (s *MemoryStore) Read(_ context.Context, id uuid.UUID) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.convs[id]; !ok {
		return nil, ErrNotFound
	}
	return s.snapshotLocked(id), nil
}

// snapshotLocked copies the message slice so callers never observe
// subsequent appends through a returned snapshot. Caller holds s.mu.
func (s *MemoryStore) snapshotLocked(id uuid.UUID) *Conversation {
	msgs := s.convs[id]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return &Conversation{ID: id, Messages: out}
}
