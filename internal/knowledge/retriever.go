package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matthewloh/pragmadic/internal/provider"
)

// Retrieval defaults. Callers may override per query.
const (
	DefaultTopK = 5
	MaxTopK     = 10

	// DefaultSimilarityThreshold is the minimum cosine similarity a chunk
	// must reach to be considered relevant.
	DefaultSimilarityThreshold float32 = 0.5
)

// Retriever is the retrieval engine: it embeds a query with the same
// provider used for ingestion and returns the most similar committed chunks
// above the similarity threshold.
//
// Retriever is safe for concurrent use by multiple goroutines.
type Retriever struct {
	embedder provider.Embedder
	store    ChunkStore
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. The embedder must be the one used for
// ingestion so query and corpus share an embedding space.
func NewRetriever(embedder provider.Embedder, store ChunkStore, logger *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("chunk store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger}, nil
}

// Retrieve returns at most topK chunks with similarity >= threshold, ordered
// by descending score with ties broken by insertion order. An empty result
// is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, threshold float32) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.store.Search(ctx, vector, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching corpus: %w", err)
	}

	r.logger.Debug("retrieved chunks",
		"query_length", len(query),
		"top_k", topK,
		"threshold", threshold,
		"result_count", len(results))
	return results, nil
}
