// Package chat implements the streaming turn orchestrator: it drives a
// model conversation through a fixed lifecycle, dispatches the tool
// calls the model requests, commits the durable conversation log, and
// projects ephemeral view events for live rendering.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/matthewloh/pragmadic/internal/conversation"
	"github.com/matthewloh/pragmadic/internal/provider"
	"github.com/matthewloh/pragmadic/internal/tools"
)

const (
	// DefaultMaxToolRounds bounds how many tool dispatch rounds a single
	// turn may take before it is aborted.
	DefaultMaxToolRounds = 8

	// FallbackReply is committed when the model finishes a turn without
	// producing any text.
	FallbackReply = "I wasn't able to generate a response. Please try rephrasing your question."
)

// Sentinel errors returned by Submit. Conflicting turns surface the
// store's conversation.ErrConflict.
var (
	// ErrEmptyInput rejects a submission with no user text. Nothing is
	// appended to the conversation.
	ErrEmptyInput = errors.New("chat: user input is empty")

	// ErrTurnCanceled reports a cooperative cancellation. Accumulated
	// assistant text is discarded; tool effects that already started ran
	// to completion and their records remain committed.
	ErrTurnCanceled = errors.New("chat: turn canceled")

	// ErrToolRoundsExceeded aborts a turn whose model keeps requesting
	// tools past the configured round limit.
	ErrToolRoundsExceeded = errors.New("chat: tool round limit exceeded")
)

// ProviderError wraps a completion provider failure that aborted the
// turn. Partial assistant text is not committed; the orchestrator never
// retries on its own.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("chat: provider failed: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Config contains all required parameters for the Orchestrator.
type Config struct {
	Store      conversation.Store
	Completion provider.Completion
	Registry   *tools.Registry
	Executor   *tools.Executor
	Logger     *slog.Logger

	// SystemPrompt is sent with every model request. Optional.
	SystemPrompt string

	// MaxToolRounds caps tool dispatch rounds per turn (0 uses the
	// default).
	MaxToolRounds int

	// RateLimiter throttles model requests (nil uses the default).
	RateLimiter *rate.Limiter
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Store == nil {
		return errors.New("conversation store is required")
	}
	if cfg.Completion == nil {
		return errors.New("completion provider is required")
	}
	if cfg.Registry == nil {
		return errors.New("tool registry is required")
	}
	if cfg.Executor == nil {
		return errors.New("tool executor is required")
	}
	return nil
}

// Orchestrator runs conversational turns.
//
// All configuration is captured immutably at construction time, so the
// Orchestrator is safe for concurrent use by multiple goroutines. At
// most one turn runs per conversation: a Submit against a conversation
// with an active turn fails fast with conversation.ErrConflict.
type Orchestrator struct {
	store         conversation.Store
	completion    provider.Completion
	registry      *tools.Registry
	executor      *tools.Executor
	logger        *slog.Logger
	systemPrompt  string
	maxToolRounds int
	limiter       *rate.Limiter

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
}

// New creates an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		// 10 requests per second, burst of 30.
		limiter = rate.NewLimiter(10, 30)
	}
	return &Orchestrator{
		store:         cfg.Store,
		completion:    cfg.Completion,
		registry:      cfg.Registry,
		executor:      cfg.Executor,
		logger:        logger,
		systemPrompt:  cfg.SystemPrompt,
		maxToolRounds: maxRounds,
		limiter:       limiter,
		active:        make(map[uuid.UUID]context.CancelFunc),
	}, nil
}

// Submit runs one conversational turn: it appends the user message,
// streams the model response through handler, dispatches requested
// tools, and commits the final assistant message. It blocks until the
// turn reaches a terminal state and returns the committed reply.
//
// handler receives view events on the calling goroutine; a nil handler
// discards them. A second Submit for the same conversation while a turn
// is active fails with conversation.ErrConflict without touching state.
func (o *Orchestrator) Submit(ctx context.Context, conversationID uuid.UUID, userText string, handler Handler) (conversation.Message, error) {
	if userText == "" {
		return conversation.Message{}, ErrEmptyInput
	}
	if handler == nil {
		handler = func(Event) {}
	}

	turnCtx, cancel, err := o.acquire(ctx, conversationID)
	if err != nil {
		return conversation.Message{}, err
	}
	defer o.release(conversationID, cancel)

	reply, err := o.runTurn(turnCtx, conversationID, userText, handler)
	if err != nil {
		o.logger.Warn("turn failed",
			"conversation_id", conversationID, "error", err)
		return conversation.Message{}, err
	}
	return reply, nil
}

// Cancel requests cooperative cancellation of the conversation's active
// turn. It reports whether a turn was active. Tool effects already
// started run to completion; only text generation is abandoned.
func (o *Orchestrator) Cancel(conversationID uuid.UUID) bool {
	o.mu.Lock()
	cancel, ok := o.active[conversationID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// acquire registers the conversation's active turn, enforcing the
// one-turn-per-conversation invariant.
func (o *Orchestrator) acquire(ctx context.Context, id uuid.UUID) (context.Context, context.CancelFunc, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.active[id]; exists {
		return nil, nil, conversation.ErrConflict
	}
	turnCtx, cancel := context.WithCancel(ctx)
	o.active[id] = cancel
	return turnCtx, cancel, nil
}

func (o *Orchestrator) release(id uuid.UUID, cancel context.CancelFunc) {
	o.mu.Lock()
	delete(o.active, id)
	o.mu.Unlock()
	cancel()
}

// advance moves the turn state machine. The transitions below are
// hardcoded, so a failure here is an orchestrator bug; it is logged
// rather than surfaced to the caller.
func (o *Orchestrator) advance(ts *turnState, next State) {
	if err := ts.advance(next); err != nil {
		o.logger.Error("turn state machine violation", "error", err)
	}
}
