package embedding

import (
	"context"
	"errors"
	"sync"
)

// fakeEmbedder returns a deterministic vector per text and fails for texts in failOn.
type fakeEmbedder struct {
	mu     sync.Mutex
	dim    int
	failOn map[string]bool
	calls  []TaskType
	inputs [][]string
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, task TaskType) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, task)
	f.inputs = append(f.inputs, texts)
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.failOn[t] {
			return nil, errors.New("provider unavailable")
		}
		v := make([]float32, f.dim)
		v[0] = float32(len(t))
		v[len(v)-1] = 1
		out[i] = v
	}
	return out, nil
}
