package knowledge

import (
	"context"
	"errors"
	"sync"
)

// fakeEmbedder returns canned vectors per text. Unknown texts get a default
// vector; a text listed in failOn makes Embed fail, which is how tests drive
// partial ingestion failures.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	failOn  map[string]bool
	calls   int
}

var errEmbedUnavailable = errors.New("embedding provider unavailable")

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.failOn[text] {
		return nil, errEmbedUnavailable
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
