package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/matthewloh/pragmadic/internal/provider"
)

// Pipeline is the embedding pipeline: it chunks ingested content, obtains a
// vector per chunk from the embedding provider, and persists the chunks as
// one atomic batch.
//
// Pipeline is safe for concurrent use; concurrent ingests write disjoint
// resource partitions.
type Pipeline struct {
	embedder provider.Embedder
	store    ChunkStore
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(embedder provider.Embedder, store ChunkStore, logger *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("chunk store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{embedder: embedder, store: store, logger: logger}, nil
}

// Ingest chunks rawContent, embeds every chunk, and persists the batch under
// resourceID. If any embedding request fails the whole batch is discarded and
// an *IngestionError is returned; no partially-ingested resource exists.
//
// Ingest is not idempotent: repeated ingests of identical content create
// fresh chunk sets under their own resource IDs. Deduplication is the
// caller's concern.
func (p *Pipeline) Ingest(ctx context.Context, resourceID uuid.UUID, rawContent string) ([]Chunk, error) {
	texts := ChunkContent(rawContent)
	if len(texts) == 0 {
		return nil, fmt.Errorf("resource %s has no content to ingest", resourceID)
	}

	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		vector, err := p.embedder.Embed(ctx, text)
		if err != nil {
			return nil, &IngestionError{ResourceID: resourceID, ChunkIndex: i, Err: err}
		}
		chunks = append(chunks, Chunk{
			ID:         uuid.New(),
			ResourceID: resourceID,
			Seq:        i,
			Text:       text,
			Vector:     vector,
		})
	}

	if err := p.store.AddBatch(ctx, resourceID, chunks); err != nil {
		return nil, fmt.Errorf("persisting chunk batch for %s: %w", resourceID, err)
	}

	p.logger.Debug("ingested resource",
		"resource_id", resourceID,
		"chunk_count", len(chunks),
		"content_length", len(rawContent))
	return chunks, nil
}
