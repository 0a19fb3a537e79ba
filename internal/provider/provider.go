// Package provider defines the external model collaborators of the core:
// the completion provider that streams assistant output and the embedding
// provider that maps text to fixed-dimension vectors.
//
// The core never chooses or implements a model itself; it drives these
// interfaces. The Gemini adapter in this package is one implementation.
package provider

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/matthewloh/pragmadic/internal/conversation"
)

// ToolDefinition describes a callable tool to the completion provider.
// The schema documents the argument shape; argument validation itself is
// performed by the tool's Validate function, not by schema machinery.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Request is one completion call: the full committed history plus any
// in-turn tool exchange, and the tools the model may request.
type Request struct {
	SystemPrompt string
	Messages     []conversation.Message
	Tools        []ToolDefinition
}

// ToolRequest is the model asking for a tool invocation.
type ToolRequest struct {
	Name string
	Args map[string]any
}

// Event is one item of a completion stream: either an incremental text
// delta or a tool request, never both.
type Event struct {
	TextDelta   string
	ToolRequest *ToolRequest
}

// Stream yields completion events. Recv returns io.EOF when the provider
// signals turn completion. Close releases the stream early; it is safe to
// call after Recv returned an error.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Completion is the completion provider collaborator.
type Completion interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Embedder is the embedding provider collaborator. Ingestion and retrieval
// must use the same Embedder so their embedding spaces match.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
