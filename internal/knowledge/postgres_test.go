package knowledge_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/matthewloh/pragmadic/internal/knowledge"
	"github.com/matthewloh/pragmadic/internal/log"
	"github.com/matthewloh/pragmadic/internal/testutil"
)

// basisVector returns a 768-dimension unit vector along the given axis,
// matching the schema's embedding dimension.
func basisVector(axis int) []float32 {
	v := make([]float32, 768)
	v[axis] = 1
	return v
}

func newPostgresChunkStore(t *testing.T) *knowledge.PostgresChunkStore {
	t.Helper()
	testDB := testutil.SetupTestDB(t)
	store, err := knowledge.NewPostgresChunkStore(testDB.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewPostgresChunkStore() error = %v", err)
	}
	return store
}

func chunk(resourceID uuid.UUID, seq int, text string, vec []float32) knowledge.Chunk {
	return knowledge.Chunk{
		ID:         uuid.New(),
		ResourceID: resourceID,
		Seq:        seq,
		Text:       text,
		Vector:     vec,
	}
}

func TestPostgresChunkStore_AddBatchAndSearch(t *testing.T) {
	store := newPostgresChunkStore(t)
	ctx := context.Background()

	resource := uuid.New()
	err := store.AddBatch(ctx, resource, []knowledge.Chunk{
		chunk(resource, 0, "Go has a race detector.", basisVector(0)),
		chunk(resource, 1, "Postgres stores the vectors.", basisVector(1)),
		chunk(resource, 2, "Vectors have 768 dimensions.", basisVector(2)),
	})
	if err != nil {
		t.Fatalf("AddBatch() error = %v", err)
	}

	results, err := store.Search(ctx, basisVector(1), 5, 0.5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Chunk.Text != "Postgres stores the vectors." {
		t.Errorf("top result = %q", results[0].Chunk.Text)
	}
	if results[0].Score < 0.99 {
		t.Errorf("Score = %f, want ~1.0", results[0].Score)
	}
	if results[0].Chunk.ResourceID != resource {
		t.Errorf("ResourceID = %v, want %v", results[0].Chunk.ResourceID, resource)
	}
}

func TestPostgresChunkStore_SearchTiesKeepInsertionOrder(t *testing.T) {
	store := newPostgresChunkStore(t)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	if err := store.AddBatch(ctx, first, []knowledge.Chunk{
		chunk(first, 0, "inserted first", basisVector(0)),
	}); err != nil {
		t.Fatalf("AddBatch(first) error = %v", err)
	}
	if err := store.AddBatch(ctx, second, []knowledge.Chunk{
		chunk(second, 0, "inserted second", basisVector(0)),
	}); err != nil {
		t.Fatalf("AddBatch(second) error = %v", err)
	}

	results, err := store.Search(ctx, basisVector(0), 5, 0.9)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Chunk.Text != "inserted first" || results[1].Chunk.Text != "inserted second" {
		t.Errorf("tie order = [%q, %q], want insertion order",
			results[0].Chunk.Text, results[1].Chunk.Text)
	}
}

func TestPostgresChunkStore_AddBatchRejectsForeignChunks(t *testing.T) {
	store := newPostgresChunkStore(t)
	ctx := context.Background()

	resource := uuid.New()
	err := store.AddBatch(ctx, resource, []knowledge.Chunk{
		chunk(uuid.New(), 0, "foreign", basisVector(0)),
	})
	if err == nil {
		t.Fatal("AddBatch() expected error for foreign chunk")
	}

	results, err := store.Search(ctx, basisVector(0), 5, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0 after rejected batch", len(results))
	}
}

func TestPostgresChunkStore_SearchRespectsTopK(t *testing.T) {
	store := newPostgresChunkStore(t)
	ctx := context.Background()

	resource := uuid.New()
	chunks := make([]knowledge.Chunk, 0, 6)
	for i := 0; i < 6; i++ {
		chunks = append(chunks, chunk(resource, i, "same direction", basisVector(0)))
	}
	if err := store.AddBatch(ctx, resource, chunks); err != nil {
		t.Fatalf("AddBatch() error = %v", err)
	}

	results, err := store.Search(ctx, basisVector(0), 3, 0.5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("len(results) = %d, want 3", len(results))
	}
}
