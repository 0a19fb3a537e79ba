package tools

// knowledge.go defines the knowledge tools: ingestKnowledge stores new
// content in the retrieval corpus, retrieveKnowledge answers semantic
// queries against it.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/matthewloh/pragmadic/internal/knowledge"
)

// Tool name constants for knowledge operations.
const (
	IngestKnowledgeName   = "ingestKnowledge"
	RetrieveKnowledgeName = "retrieveKnowledge"
)

// Argument bounds for ingestKnowledge. Large documents are an external
// ingestion concern; the tool accepts note-sized content.
const (
	MaxIngestContentSize = 10_000
	MaxIngestTitleLength = 500
)

// IngestArgs are the validated arguments of ingestKnowledge.
type IngestArgs struct {
	Title   string
	Content string
}

// IngestResult is the serializable result of a successful ingest.
type IngestResult struct {
	ResourceID string `json:"resourceId"`
	ChunkCount int    `json:"chunkCount"`
	Title      string `json:"title,omitempty"`
}

// IngestTool ingests content into the retrieval corpus through the
// embedding pipeline. Every call creates a fresh resource.
type IngestTool struct {
	pipeline *knowledge.Pipeline
	logger   *slog.Logger
}

// NewIngestTool creates an IngestTool.
func NewIngestTool(pipeline *knowledge.Pipeline, logger *slog.Logger) (*IngestTool, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestTool{pipeline: pipeline, logger: logger}, nil
}

func (t *IngestTool) Name() string { return IngestKnowledgeName }

func (t *IngestTool) Description() string {
	return "Store a knowledge entry for later retrieval via retrieveKnowledge. " +
		"Use this to save important information the user wants remembered. " +
		"Each entry becomes a new indexed resource."
}

func (t *IngestTool) Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"content": {Type: "string", Description: "The knowledge content to store"},
			"title":   {Type: "string", Description: "Short optional title for the entry"},
		},
		Required: []string{"content"},
	}
}

// Validate checks ingestKnowledge arguments: content is required,
// non-empty, and bounded; title is optional and bounded.
func (t *IngestTool) Validate(args map[string]any) (any, *ValidationError) {
	var errs []FieldError

	content, ok := stringArg(args, "content", &errs)
	if !ok && len(errs) == 0 {
		errs = append(errs, FieldError{Field: "content", Message: "is required"})
	}
	if ok && content == "" {
		errs = append(errs, FieldError{Field: "content", Message: "must not be empty"})
	}
	if len(content) > MaxIngestContentSize {
		errs = append(errs, FieldError{
			Field:   "content",
			Message: fmt.Sprintf("exceeds maximum size of %d bytes", MaxIngestContentSize),
		})
	}

	title, _ := stringArg(args, "title", &errs)
	if len(title) > MaxIngestTitleLength {
		errs = append(errs, FieldError{
			Field:   "title",
			Message: fmt.Sprintf("exceeds maximum length of %d", MaxIngestTitleLength),
		})
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Tool: IngestKnowledgeName, Fields: errs}
	}
	return IngestArgs{Title: title, Content: content}, nil
}

// Execute ingests the content under a fresh resource ID.
func (t *IngestTool) Execute(ctx context.Context, args any) (any, error) {
	in, ok := args.(IngestArgs)
	if !ok {
		return nil, fmt.Errorf("expected IngestArgs, got %T", args)
	}

	resourceID := uuid.New()
	chunks, err := t.pipeline.Ingest(ctx, resourceID, in.Content)
	if err != nil {
		return nil, err
	}

	return IngestResult{
		ResourceID: resourceID.String(),
		ChunkCount: len(chunks),
		Title:      in.Title,
	}, nil
}

// RetrieveArgs are the validated arguments of retrieveKnowledge.
type RetrieveArgs struct {
	Question string
	TopK     int
}

// RetrieveTool answers semantic queries against the retrieval corpus.
// Its result is the list of matching chunk texts, best match first.
type RetrieveTool struct {
	retriever *knowledge.Retriever
	threshold float32
	logger    *slog.Logger
}

// NewRetrieveTool creates a RetrieveTool with the given similarity
// threshold (<= 0 uses the retrieval default).
func NewRetrieveTool(retriever *knowledge.Retriever, threshold float32, logger *slog.Logger) (*RetrieveTool, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if threshold <= 0 {
		threshold = knowledge.DefaultSimilarityThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveTool{retriever: retriever, threshold: threshold, logger: logger}, nil
}

func (t *RetrieveTool) Name() string { return RetrieveKnowledgeName }

func (t *RetrieveTool) Description() string {
	return "Search stored knowledge using semantic similarity. " +
		"Returns the most relevant stored passages for the question; " +
		"an empty result means nothing relevant is stored. " +
		fmt.Sprintf("Default topK: %d. Maximum topK: %d.", knowledge.DefaultTopK, knowledge.MaxTopK)
}

func (t *RetrieveTool) Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"question": {Type: "string", Description: "The question to search stored knowledge for"},
			"topK":     {Type: "integer", Description: "Maximum results to return (1-10)"},
		},
		Required: []string{"question"},
	}
}

// Validate checks retrieveKnowledge arguments: question is required and
// non-empty; topK is optional and must be an integer in [1, MaxTopK].
func (t *RetrieveTool) Validate(args map[string]any) (any, *ValidationError) {
	var errs []FieldError

	question, ok := stringArg(args, "question", &errs)
	if !ok && len(errs) == 0 {
		errs = append(errs, FieldError{Field: "question", Message: "is required"})
	}
	if ok && question == "" {
		errs = append(errs, FieldError{Field: "question", Message: "must not be empty"})
	}

	topK, hasTopK := intArg(args, "topK", &errs)
	if hasTopK && (topK < 1 || topK > knowledge.MaxTopK) {
		errs = append(errs, FieldError{
			Field:   "topK",
			Message: fmt.Sprintf("must be between 1 and %d", knowledge.MaxTopK),
		})
	}
	if !hasTopK {
		topK = knowledge.DefaultTopK
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Tool: RetrieveKnowledgeName, Fields: errs}
	}
	return RetrieveArgs{Question: question, TopK: topK}, nil
}

// Execute runs the retrieval query and returns the matching chunk texts.
func (t *RetrieveTool) Execute(ctx context.Context, args any) (any, error) {
	in, ok := args.(RetrieveArgs)
	if !ok {
		return nil, fmt.Errorf("expected RetrieveArgs, got %T", args)
	}

	results, err := t.retriever.Retrieve(ctx, in.Question, in.TopK, t.threshold)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Chunk.Text)
	}
	return texts, nil
}
