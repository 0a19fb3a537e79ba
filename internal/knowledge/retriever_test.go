package knowledge

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/matthewloh/pragmadic/internal/log"
)

// corpusVectors gives each sentence an orthogonal axis so tests control
// similarity scores exactly.
func corpusVectors() map[string][]float32 {
	return map[string][]float32{
		"A.": {1, 0, 0},
		"B.": {0, 1, 0},
		"C.": {0, 0, 1},
		// "B?" sits close to "B." (cosine ≈ 0.9) and far from the rest.
		"B?": {0.199, 0.959, 0.199},
	}
}

func setupCorpus(t *testing.T) (*Retriever, *MemoryChunkStore) {
	t.Helper()

	embedder := &fakeEmbedder{vectors: corpusVectors()}
	store := NewMemoryChunkStore()

	pipeline, err := NewPipeline(embedder, store, log.NewNop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if _, err := pipeline.Ingest(context.Background(), uuid.New(), "A. B. C."); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	retriever, err := NewRetriever(embedder, store, log.NewNop())
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	return retriever, store
}

func TestRetriever_Retrieve_ThresholdAndTopK(t *testing.T) {
	t.Parallel()
	retriever, _ := setupCorpus(t)

	results, err := retriever.Retrieve(context.Background(), "B?", 1, 0.8)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Retrieve() returned %d chunks, want 1", len(results))
	}
	if results[0].Chunk.Text != "B." {
		t.Errorf("Retrieve() top chunk = %q, want %q", results[0].Chunk.Text, "B.")
	}
	if results[0].Score < 0.8 {
		t.Errorf("returned chunk score %f below threshold 0.8", results[0].Score)
	}
}

func TestRetriever_Retrieve_NothingClearsThreshold(t *testing.T) {
	t.Parallel()
	retriever, _ := setupCorpus(t)

	// Threshold above any achievable score: empty result, not an error.
	results, err := retriever.Retrieve(context.Background(), "B?", 5, 0.99)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Retrieve() returned %d chunks, want 0", len(results))
	}
}

func TestRetriever_Retrieve_NeverExceedsTopK(t *testing.T) {
	t.Parallel()
	retriever, _ := setupCorpus(t)

	results, err := retriever.Retrieve(context.Background(), "B?", 2, -1)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) > 2 {
		t.Errorf("Retrieve() returned %d chunks, want at most 2", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d: %f > %f",
				i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestRetriever_Retrieve_TiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"first.":  {1, 0, 0},
		"second.": {1, 0, 0},
		"third.":  {1, 0, 0},
		"q":       {1, 0, 0},
	}}
	store := NewMemoryChunkStore()
	pipeline, err := NewPipeline(embedder, store, log.NewNop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if _, err := pipeline.Ingest(ctx, uuid.New(), "first. second. third."); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	retriever, err := NewRetriever(embedder, store, log.NewNop())
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	results, err := retriever.Retrieve(ctx, "q", 3, 0.9)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	want := []string{"first.", "second.", "third."}
	if len(results) != len(want) {
		t.Fatalf("Retrieve() returned %d chunks, want %d", len(results), len(want))
	}
	for i, r := range results {
		if r.Chunk.Text != want[i] {
			t.Errorf("results[%d].Text = %q, want %q (ties must keep insertion order)",
				i, r.Chunk.Text, want[i])
		}
	}
}

func TestRetriever_Retrieve_ClampsTopK(t *testing.T) {
	t.Parallel()
	retriever, _ := setupCorpus(t)
	ctx := context.Background()

	// Non-positive topK falls back to the default instead of erroring.
	if _, err := retriever.Retrieve(ctx, "B?", 0, 0.8); err != nil {
		t.Errorf("Retrieve(topK=0) error = %v, want nil", err)
	}
	if _, err := retriever.Retrieve(ctx, "B?", MaxTopK+100, 0.8); err != nil {
		t.Errorf("Retrieve(topK>max) error = %v, want nil", err)
	}
}
