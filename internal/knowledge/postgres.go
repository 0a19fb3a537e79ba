package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresChunkStore is a ChunkStore backed by PostgreSQL with pgvector.
//
// AddBatch wraps the batch in a transaction, so retrieval never sees a
// partially-ingested resource. Search pushes threshold, ordering, and limit
// into SQL using pgvector's cosine distance operator.
//
// PostgresChunkStore is safe for concurrent use by multiple goroutines.
type PostgresChunkStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresChunkStore creates a PostgresChunkStore.
func NewPostgresChunkStore(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresChunkStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresChunkStore{pool: pool, logger: logger}, nil
}

// AddBatch persists all chunks of one resource in a single transaction.
func (s *PostgresChunkStore) AddBatch(ctx context.Context, resourceID uuid.UUID, chunks []Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning batch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, c := range chunks {
		if c.ResourceID != resourceID {
			return fmt.Errorf("chunk %d belongs to resource %s, batch is for %s",
				i, c.ResourceID, resourceID)
		}
		vec := pgvector.NewVector(c.Vector)
		_, err := tx.Exec(ctx,
			`INSERT INTO knowledge_chunks (id, resource_id, seq, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.ResourceID, c.Seq, c.Text, vec)
		if err != nil {
			return fmt.Errorf("inserting chunk %d of resource %s: %w", i, resourceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk batch: %w", err)
	}

	s.logger.Debug("committed chunk batch",
		"resource_id", resourceID, "chunk_count", len(chunks))
	return nil
}

// Search returns committed chunks above the similarity threshold.
// The pos column records global insertion order and breaks score ties.
func (s *PostgresChunkStore) Search(ctx context.Context, vector []float32, topK int, threshold float32) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	vec := pgvector.NewVector(vector)
	rows, err := s.pool.Query(ctx,
		`SELECT id, resource_id, seq, content,
		        (1 - (embedding <=> $1))::float4 AS similarity
		 FROM knowledge_chunks
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY similarity DESC, pos ASC
		 LIMIT $3`,
		vec, threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	results := []ScoredChunk{}
	for rows.Next() {
		var r ScoredChunk
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.ResourceID, &r.Chunk.Seq,
			&r.Chunk.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return results, nil
}
