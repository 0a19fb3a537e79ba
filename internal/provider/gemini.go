package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/matthewloh/pragmadic/internal/conversation"
)

// Default Gemini model identifiers.
const (
	// DefaultGeminiModel is the default completion model.
	DefaultGeminiModel = "gemini-2.5-flash"

	// DefaultGeminiEmbedModel is the default embedding model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema assumes 768.
	DefaultGeminiEmbedModel = "gemini-embedding-001"

	// EmbedDimension is the fixed embedding dimension for the corpus.
	EmbedDimension int32 = 768
)

// GeminiConfig holds Gemini client configuration.
type GeminiConfig struct {
	APIKey     string
	Model      string // empty = DefaultGeminiModel
	EmbedModel string // empty = DefaultGeminiEmbedModel
}

// Gemini implements Completion and Embedder on google.golang.org/genai.
//
// Gemini is safe for concurrent use by multiple goroutines.
type Gemini struct {
	client     *genai.Client
	model      string
	embedModel string
	logger     *slog.Logger
}

// NewGemini creates a Gemini provider client.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = DefaultGeminiEmbedModel
	}

	return &Gemini{
		client:     client,
		model:      model,
		embedModel: embedModel,
		logger:     logger,
	}, nil
}

// streamItem carries one pumped event or a terminal error.
type streamItem struct {
	event Event
	err   error
}

// geminiStream adapts the genai push iterator to the pull-based Stream.
type geminiStream struct {
	ctx    context.Context
	items  <-chan streamItem
	cancel context.CancelFunc
}

// Recv returns the next stream event, or io.EOF at turn completion. A
// canceled context can close the pump before the model finishes; that
// surfaces as the context error, never as clean completion.
func (s *geminiStream) Recv() (Event, error) {
	item, ok := <-s.items
	if !ok {
		if err := s.ctx.Err(); err != nil {
			return Event{}, err
		}
		return Event{}, io.EOF
	}
	if item.err != nil {
		return Event{}, item.err
	}
	return item.event, nil
}

// Close aborts the underlying iteration and drains the pump goroutine.
func (s *geminiStream) Close() error {
	s.cancel()
	for range s.items {
	}
	return nil
}

// Stream starts a streaming completion call.
func (g *Gemini) Stream(ctx context.Context, req Request) (Stream, error) {
	contents, err := toContents(req.Messages)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Schema),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	items := make(chan streamItem)

	go func() {
		defer close(items)
		for resp, err := range g.client.Models.GenerateContentStream(streamCtx, g.model, contents, cfg) {
			if err != nil {
				select {
				case items <- streamItem{err: fmt.Errorf("gemini stream: %w", err)}:
				case <-streamCtx.Done():
				}
				return
			}
			for _, ev := range responseEvents(resp) {
				select {
				case items <- streamItem{event: ev}:
				case <-streamCtx.Done():
					return
				}
			}
		}
	}()

	return &geminiStream{ctx: streamCtx, items: items, cancel: cancel}, nil
}

// responseEvents extracts stream events from one response chunk.
func responseEvents(resp *genai.GenerateContentResponse) []Event {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var events []Event
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			events = append(events, Event{TextDelta: part.Text})
		}
		if part.FunctionCall != nil {
			events = append(events, Event{ToolRequest: &ToolRequest{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			}})
		}
	}
	return events
}

// Embed returns a fixed-dimension vector for the given text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := EmbedDimension
	result, err := g.client.Models.EmbedContent(ctx, g.embedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType:             "SEMANTIC_SIMILARITY",
			OutputDimensionality: &dim,
		})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty embedding response")
	}
	return result.Embeddings[0].Values, nil
}

// toContents maps conversation messages to genai contents.
// Assistant tool-call messages become model function calls; tool result
// messages become function responses, preserving the exchange the model saw.
func toContents(msgs []conversation.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleUser, conversation.RoleSystem:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case conversation.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
				continue
			}
			parts := make([]*genai.Part, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: tc.Args},
				})
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case conversation.RoleTool:
			parts := make([]*genai.Part, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				response := map[string]any{"result": tc.Result}
				if tc.Error != "" {
					response = map[string]any{"error": tc.Error}
				}
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{Name: tc.Name, Response: response},
				})
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return contents, nil
}

// toGenaiSchema converts a JSON schema into the genai schema shape.
// Only the subset used by tool argument schemas is mapped.
func toGenaiSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = toGenaiSchema(s.Items)
	}
	return out
}
