// Package knowledge provides the retrieval corpus of the core: the embedding
// pipeline that turns ingested text into vector-indexed chunks, and the
// retrieval engine that answers similarity queries against committed chunks.
package knowledge

import (
	"fmt"

	"github.com/google/uuid"
)

// Chunk is a bounded span of ingested text stored with its vector embedding.
// All chunks of one resource are persisted atomically: either the whole batch
// commits or none of it does.
type Chunk struct {
	ID         uuid.UUID
	ResourceID uuid.UUID
	Seq        int // position within the resource
	Text       string
	Vector     []float32
}

// ScoredChunk is a retrieval result with its similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float32 // cosine similarity to the query vector
}

// IngestionError reports a failed ingest. The whole chunk batch for the
// resource was discarded; nothing was persisted.
type IngestionError struct {
	ResourceID uuid.UUID
	ChunkIndex int // chunk whose embedding failed
	Err        error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingesting resource %s: embedding chunk %d: %v",
		e.ResourceID, e.ChunkIndex, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }
