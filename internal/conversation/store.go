package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Sentinel errors for conversation operations.
var (
	// ErrConflict indicates a turn was submitted while another turn is
	// active for the same conversation. The submission is rejected
	// immediately with no state change; callers may resubmit once the
	// active turn finishes.
	ErrConflict = errors.New("conversation: turn already in progress")

	// ErrNotFound indicates the conversation does not exist.
	ErrNotFound = errors.New("conversation: not found")
)

// Store is the durable, append-only per-conversation message log.
//
// Append is atomic per conversation and assigns the message sequence number.
// Read returns the last committed snapshot and never blocks on in-flight
// turns. No mutation or deletion operation exists.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// CreateIfAbsent initializes a conversation with an empty message list.
	// It is idempotent: an existing conversation is returned unchanged.
	CreateIfAbsent(ctx context.Context, id uuid.UUID) (*Conversation, error)

	// Append commits a message to the conversation log and returns the
	// committed message with ID, Seq, and CreatedAt populated.
	Append(ctx context.Context, id uuid.UUID, msg Message) (Message, error)

	// Read returns a snapshot of the committed conversation state.
	Read(ctx context.Context, id uuid.UUID) (*Conversation, error)
}
