// Package conversation provides the durable, append-only conversation log.
//
// The log is the single source of truth for what was said and decided in a
// conversation. Messages are created once and never mutated; corrections are
// modeled as new messages. An in-progress assistant response lives outside the
// store as a streaming draft until the orchestrator commits it.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the producer of a message.
type Role string

// Valid message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Phase is the lifecycle phase of a tool call.
// PhaseInvoked is transient and observed only through view events;
// only resolved and failed records are persisted.
type Phase string

// Tool call phases.
const (
	PhaseInvoked  Phase = "invoked"
	PhaseResolved Phase = "resolved"
	PhaseFailed   Phase = "failed"
)

// ToolCall records a model-requested invocation of a named tool.
// Exactly one resolved or failed record exists per ID within a conversation.
type ToolCall struct {
	ID     uuid.UUID      `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Phase  Phase          `json:"phase"`
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Message is one immutable entry in a conversation log.
// Content carries plain text; ToolCalls carries tool invocation records.
// A message holds one or the other, matching how the model produced it.
type Message struct {
	ID        uuid.UUID
	Role      Role
	Content   string
	ToolCalls []ToolCall
	UserID    string // opaque attribution from the identity collaborator
	Seq       int
	CreatedAt time.Time
}

// Conversation is a snapshot of one conversation's committed log.
// Messages are ordered by Seq; len(Messages) never decreases across snapshots.
type Conversation struct {
	ID       uuid.UUID
	Messages []Message
}
