// Package tools provides the tool registry and executor: named
// side-effecting capabilities the model may request during a turn, with
// explicit argument validation and an exactly-once execution guarantee.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
)

// Request is a model-requested tool invocation to dispatch.
type Request struct {
	CallID uuid.UUID
	Name   string
	Args   map[string]any
}

// FieldError describes one invalid argument field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed tool arguments. It is local to one tool
// call: the call is recorded as failed and the turn proceeds so the model
// can react.
type ValidationError struct {
	Tool   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(parts, "; "))
}

// Tool is a named side-effecting capability.
//
// Validate is an explicit per-tool check of raw arguments with no side
// effects: it returns typed arguments on success or a *ValidationError
// listing the field problems. Execute performs the side effect; the
// Executor guarantees it runs at most once per call.
type Tool interface {
	// Name returns the unique tool identifier.
	Name() string

	// Description tells the model when to request this tool.
	Description() string

	// Schema documents the argument shape for the completion provider.
	Schema() *jsonschema.Schema

	// Validate checks raw arguments and returns the typed arguments
	// passed to Execute.
	Validate(args map[string]any) (any, *ValidationError)

	// Execute performs the side effect exactly once and returns a result
	// serializable into a tool call record.
	Execute(ctx context.Context, args any) (any, error)
}

// stringArg extracts an optional string field, reporting a type mismatch.
func stringArg(args map[string]any, field string, errs *[]FieldError) (string, bool) {
	raw, ok := args[field]
	if !ok || raw == nil {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		*errs = append(*errs, FieldError{Field: field, Message: "must be a string"})
		return "", false
	}
	return s, true
}

// intArg extracts an optional integer field. JSON numbers arrive as
// float64; fractional values are rejected rather than truncated.
func intArg(args map[string]any, field string, errs *[]FieldError) (int, bool) {
	raw, ok := args[field]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			*errs = append(*errs, FieldError{Field: field, Message: "must be an integer"})
			return 0, false
		}
		return int(v), true
	default:
		*errs = append(*errs, FieldError{Field: field, Message: "must be an integer"})
		return 0, false
	}
}
