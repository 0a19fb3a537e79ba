package chat

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/matthewloh/pragmadic/internal/conversation"
	"github.com/matthewloh/pragmadic/internal/log"
	"github.com/matthewloh/pragmadic/internal/provider"
	"github.com/matthewloh/pragmadic/internal/tools"
)

// scriptedStream replays a fixed event sequence. A non-nil failAfter
// error replaces the final io.EOF. When blockOnCtx is set, Recv blocks on
// context cancellation once the scripted events are drained, simulating a
// stream interrupted mid-generation; eofOnCancel does the same but ends
// with a clean io.EOF, like a provider whose stream closes silently when
// its context is canceled.
type scriptedStream struct {
	ctx         context.Context
	events      []provider.Event
	failAfter   error
	blockOnCtx  bool
	eofOnCancel bool
	pos         int
}

func (s *scriptedStream) Recv() (provider.Event, error) {
	if s.pos < len(s.events) {
		ev := s.events[s.pos]
		s.pos++
		return ev, nil
	}
	if s.eofOnCancel {
		<-s.ctx.Done()
		return provider.Event{}, io.EOF
	}
	if s.blockOnCtx {
		<-s.ctx.Done()
		return provider.Event{}, s.ctx.Err()
	}
	if s.failAfter != nil {
		return provider.Event{}, s.failAfter
	}
	return provider.Event{}, io.EOF
}

func (s *scriptedStream) Close() error { return nil }

// fakeCompletion hands out one scripted round per Stream call, in order.
// The last round is reused if the orchestrator asks for more.
type fakeCompletion struct {
	mu        sync.Mutex
	rounds    []scriptedStream
	streamErr error
	requests  []provider.Request
}

func (f *fakeCompletion) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if i >= len(f.rounds) {
		i = len(f.rounds) - 1
	}
	round := f.rounds[i]
	round.ctx = ctx
	return &round, nil
}

func (f *fakeCompletion) streamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func textEvents(deltas ...string) []provider.Event {
	evs := make([]provider.Event, 0, len(deltas))
	for _, d := range deltas {
		evs = append(evs, provider.Event{TextDelta: d})
	}
	return evs
}

func toolEvent(name string, args map[string]any) provider.Event {
	return provider.Event{ToolRequest: &provider.ToolRequest{Name: name, Args: args}}
}

// fakeTool is a minimal Tool for orchestrator tests.
type fakeTool struct {
	name      string
	rejectAll bool
	execute   func(ctx context.Context, args any) (any, error)
	mu        sync.Mutex
	execCalls int
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "test tool" }

func (f *fakeTool) Schema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}

func (f *fakeTool) Validate(args map[string]any) (any, *tools.ValidationError) {
	if f.rejectAll {
		return nil, &tools.ValidationError{
			Tool:   f.name,
			Fields: []tools.FieldError{{Field: "q", Message: "is required"}},
		}
	}
	return args, nil
}

func (f *fakeTool) Execute(ctx context.Context, args any) (any, error) {
	f.mu.Lock()
	f.execCalls++
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(ctx, args)
	}
	return "done", nil
}

func (f *fakeTool) executions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execCalls
}

// eventRecorder collects view events; safe to read after Submit returns
// even when Submit ran on another goroutine.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	seen   chan EventKind
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{seen: make(chan EventKind, 128)}
}

func (r *eventRecorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.seen <- ev.Kind
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) kinds() []EventKind {
	kinds := make([]EventKind, 0)
	for _, ev := range r.snapshot() {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func newTestOrchestrator(t *testing.T, completion provider.Completion, maxRounds int, testTools ...tools.Tool) (*Orchestrator, *conversation.MemoryStore) {
	t.Helper()

	if len(testTools) == 0 {
		testTools = []tools.Tool{&fakeTool{name: "lookup"}}
	}
	registry, err := tools.NewRegistry(testTools...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	executor, err := tools.NewExecutor(registry, log.NewNop())
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	store := conversation.NewMemoryStore()
	orch, err := New(Config{
		Store:         store,
		Completion:    completion,
		Registry:      registry,
		Executor:      executor,
		Logger:        log.NewNop(),
		SystemPrompt:  "You are a helpful assistant.",
		MaxToolRounds: maxRounds,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return orch, store
}
