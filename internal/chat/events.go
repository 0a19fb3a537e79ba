package chat

import (
	"github.com/google/uuid"

	"github.com/matthewloh/pragmadic/internal/conversation"
)

// EventKind identifies a turn lifecycle event.
type EventKind string

// Turn lifecycle events, in the order a consumer can expect them:
// zero or more deltas and tool notifications, then exactly one of
// turnComplete or turnError.
const (
	// EventDelta carries an incremental fragment of assistant text.
	EventDelta EventKind = "delta"

	// EventToolPending announces a validated tool call about to execute.
	EventToolPending EventKind = "toolPending"

	// EventToolResult carries the terminal record of a tool call.
	EventToolResult EventKind = "toolResult"

	// EventTurnComplete carries the committed assistant message.
	EventTurnComplete EventKind = "turnComplete"

	// EventTurnError reports why the turn ended without a reply.
	EventTurnError EventKind = "turnError"
)

// Event is an ephemeral view notification emitted while a turn runs.
// Events are derived from turn progress for live rendering; they are
// never persisted and can always be reconstructed from the conversation
// log plus the turn outcome.
type Event struct {
	Kind EventKind

	// ConversationID identifies the conversation the event belongs to,
	// so one handler can fan out events from multiple conversations.
	ConversationID uuid.UUID

	// Delta is set for EventDelta.
	Delta string

	// ToolCall is set for EventToolPending and EventToolResult.
	ToolCall *conversation.ToolCall

	// Message is the final assistant message, set for EventTurnComplete.
	Message *conversation.Message

	// Err describes the failure, set for EventTurnError.
	Err string

	// Partial carries assistant text streamed before the failure, set for
	// EventTurnError. It was never committed; callers must resubmit.
	Partial string
}

// Handler consumes view events during a turn. Handlers run on the turn
// goroutine: a slow handler slows the turn, it never loses events.
type Handler func(Event)

// toolEventBridge adapts a Handler to the executor's notification
// interface so tool lifecycle shows up in the same event stream.
type toolEventBridge struct {
	conversationID uuid.UUID
	handler        Handler
}

func (b toolEventBridge) OnToolPending(call conversation.ToolCall) {
	b.handler(Event{Kind: EventToolPending, ConversationID: b.conversationID, ToolCall: &call})
}

func (b toolEventBridge) OnToolResult(call conversation.ToolCall) {
	b.handler(Event{Kind: EventToolResult, ConversationID: b.conversationID, ToolCall: &call})
}
