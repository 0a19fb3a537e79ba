package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ChunkStore persists chunk batches and answers vector similarity queries.
//
// AddBatch is atomic: a reader never observes part of a batch. Search only
// sees committed batches, so concurrent ingest and retrieval are safe.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type ChunkStore interface {
	// AddBatch persists all chunks of one resource atomically.
	AddBatch(ctx context.Context, resourceID uuid.UUID, chunks []Chunk) error

	// Search returns committed chunks with cosine similarity >= threshold,
	// ordered by descending score with ties broken by insertion order,
	// at most topK entries.
	Search(ctx context.Context, vector []float32, topK int, threshold float32) ([]ScoredChunk, error)
}

// MemoryChunkStore is an in-memory ChunkStore.
// It backs tests and single-process deployments; durable deployments use
// PostgresChunkStore.
//
// MemoryChunkStore is safe for concurrent use by multiple goroutines.
type MemoryChunkStore struct {
	mu     sync.RWMutex
	chunks []Chunk // insertion order, the tie-break order for Search
}

// NewMemoryChunkStore creates an empty MemoryChunkStore.
func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{}
}

// AddBatch persists all chunks of one resource atomically.
func (s *MemoryChunkStore) AddBatch(_ context.Context, resourceID uuid.UUID, chunks []Chunk) error {
	for i, c := range chunks {
		if c.ResourceID != resourceID {
			return fmt.Errorf("chunk %d belongs to resource %s, batch is for %s",
				i, c.ResourceID, resourceID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Search scores every committed chunk against the query vector.
func (s *MemoryChunkStore) Search(_ context.Context, vector []float32, topK int, threshold float32) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	s.mu.RLock()
	scored := make([]ScoredChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		score := cosineSimilarity(vector, c.Vector)
		if score >= threshold {
			scored = append(scored, ScoredChunk{Chunk: c, Score: score})
		}
	}
	s.mu.RUnlock()

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Len returns the number of committed chunks.
func (s *MemoryChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-magnitude vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
