package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStore_CreateIfAbsent_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	id := uuid.New()

	conv, err := store.CreateIfAbsent(ctx, id)
	if err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	if len(conv.Messages) != 0 {
		t.Errorf("new conversation has %d messages, want 0", len(conv.Messages))
	}

	if _, err := store.Append(ctx, id, Message{Role: RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Re-creating must not reset the log.
	conv, err = store.CreateIfAbsent(ctx, id)
	if err != nil {
		t.Fatalf("CreateIfAbsent() second call error = %v", err)
	}
	if len(conv.Messages) != 1 {
		t.Errorf("after re-create got %d messages, want 1", len(conv.Messages))
	}
}

func TestMemoryStore_Append_AssignsSequence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	id := uuid.New()

	contents := []string{"first", "second", "third"}
	for i, c := range contents {
		msg, err := store.Append(ctx, id, Message{Role: RoleUser, Content: c})
		if err != nil {
			t.Fatalf("Append(%q) error = %v", c, err)
		}
		if msg.Seq != i {
			t.Errorf("Append(%q) Seq = %d, want %d", c, msg.Seq, i)
		}
		if msg.ID == uuid.Nil {
			t.Errorf("Append(%q) did not assign an ID", c)
		}
		if msg.CreatedAt.IsZero() {
			t.Errorf("Append(%q) did not assign CreatedAt", c)
		}
	}

	conv, err := store.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	for i, msg := range conv.Messages {
		if msg.Content != contents[i] {
			t.Errorf("Messages[%d].Content = %q, want %q", i, msg.Content, contents[i])
		}
	}
}

func TestMemoryStore_Read_NotFound(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()

	_, err := store.Read(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Read_SnapshotIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	id := uuid.New()

	if _, err := store.Append(ctx, id, Message{Role: RoleUser, Content: "a"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	snap, err := store.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if _, err := store.Append(ctx, id, Message{Role: RoleAssistant, Content: "b"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if len(snap.Messages) != 1 {
		t.Errorf("snapshot grew after later append: %d messages, want 1", len(snap.Messages))
	}
}

// TestMemoryStore_MonotonicGrowth verifies that concurrent appends across
// conversations never shrink any log and assign dense sequence numbers.
func TestMemoryStore_MonotonicGrowth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	const convs = 4
	const perConv = 25

	ids := make([]uuid.UUID, convs)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			for range perConv {
				if _, err := store.Append(ctx, id, Message{Role: RoleUser, Content: "x"}); err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		conv, err := store.Read(ctx, id)
		if err != nil {
			t.Fatalf("Read(%s) error = %v", id, err)
		}
		if len(conv.Messages) != perConv {
			t.Errorf("conversation %s has %d messages, want %d", id, len(conv.Messages), perConv)
		}
		for i, msg := range conv.Messages {
			if msg.Seq != i {
				t.Errorf("conversation %s Messages[%d].Seq = %d, want %d", id, i, msg.Seq, i)
			}
		}
	}
}
