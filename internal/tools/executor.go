package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/matthewloh/pragmadic/internal/conversation"
)

// Emitter receives tool lifecycle notifications during dispatch.
// OnToolPending fires after validation and before the side effect starts,
// so callers can surface in-progress state; OnToolResult fires once with
// the terminal record.
type Emitter interface {
	OnToolPending(call conversation.ToolCall)
	OnToolResult(call conversation.ToolCall)
}

// NopEmitter discards all notifications. Useful for non-streaming callers.
type NopEmitter struct{}

func (NopEmitter) OnToolPending(conversation.ToolCall) {}
func (NopEmitter) OnToolResult(conversation.ToolCall)  {}

// Executor dispatches tool requests against a Registry.
//
// Dispatch contract, in order: validate arguments (no side effects on
// failure), emit pending, execute the side effect exactly once, emit and
// return the terminal record. The Executor never retries; a retry is a new
// tool call with a new ID, initiated by the model on a later turn.
//
// Executor is safe for concurrent use by multiple goroutines.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(registry *Registry, logger *slog.Logger) (*Executor, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, logger: logger}, nil
}

// Dispatch processes one tool request and returns its terminal record.
// The returned record always has phase resolved or failed; dispatch-level
// failures (unknown tool, invalid arguments, execution error) are encoded
// in the record rather than returned as errors, so the turn can proceed and
// the model can react.
func (e *Executor) Dispatch(ctx context.Context, req Request, emitter Emitter) conversation.ToolCall {
	if emitter == nil {
		emitter = NopEmitter{}
	}

	record := conversation.ToolCall{
		ID:    req.CallID,
		Name:  req.Name,
		Args:  req.Args,
		Phase: conversation.PhaseInvoked,
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	tool, ok := e.registry.Lookup(req.Name)
	if !ok {
		record.Phase = conversation.PhaseFailed
		record.Error = fmt.Sprintf("unknown tool %q", req.Name)
		e.logger.Warn("tool dispatch failed", "tool", req.Name, "error", record.Error)
		emitter.OnToolResult(record)
		return record
	}

	typedArgs, verr := tool.Validate(req.Args)
	if verr != nil {
		// No side effect has started; record the structured failure.
		record.Phase = conversation.PhaseFailed
		record.Error = verr.Error()
		e.logger.Warn("tool arguments invalid", "tool", req.Name, "error", verr)
		emitter.OnToolResult(record)
		return record
	}

	emitter.OnToolPending(record)

	result, err := tool.Execute(ctx, typedArgs)
	if err != nil {
		record.Phase = conversation.PhaseFailed
		record.Error = err.Error()
		e.logger.Warn("tool execution failed",
			"tool", req.Name, "call_id", record.ID, "error", err)
	} else {
		record.Phase = conversation.PhaseResolved
		record.Result = result
		e.logger.Debug("tool resolved", "tool", req.Name, "call_id", record.ID)
	}

	emitter.OnToolResult(record)
	return record
}
