package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aura-rag/internal/config"

	"github.com/rs/zerolog/log"
)

// TaskType tells the provider what the vector will be used for.
type TaskType string

const (
	TaskDocument   TaskType = "RETRIEVAL_DOCUMENT"
	TaskQuery      TaskType = "RETRIEVAL_QUERY"
	TaskSimilarity TaskType = "SEMANTIC_SIMILARITY"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder maps texts to fixed-dimension vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error)
	Dimension() int
}

const progressEvery = 50

// EmbedForSimilarity embeds texts one at a time for chunk comparison. An item
// that fails is logged and replaced by a zero vector so the batch always
// completes; a zero vector never clears the merge threshold.
func EmbedForSimilarity(ctx context.Context, e Embedder, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if i > 0 && i%progressEvery == 0 {
			log.Info().Int("done", i).Int("total", len(texts)).Msg("embedding chunks")
		}
		vecs, err := e.Embed(ctx, []string{text}, TaskSimilarity)
		if err == nil {
			err = checkVectors(vecs, 1, e.Dimension())
		}
		if err != nil {
			log.Warn().Err(err).Int("chunk", i).Msg("failed to embed chunk, using zero vector")
			out[i] = make([]float32, e.Dimension())
			continue
		}
		out[i] = vecs[0]
	}
	return out
}

// checkVectors verifies count and, when dim is known, the dimension of every vector.
func checkVectors(vecs [][]float32, n, dim int) error {
	if len(vecs) != n {
		return fmt.Errorf("%w: got %d vectors for %d inputs", ErrDimensionMismatch, len(vecs), n)
	}
	if dim <= 0 {
		return nil
	}
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}

// NewEmbedder builds the provider named in the config.
func NewEmbedder(cfg *config.LLMConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini", "":
		return NewGeminiProvider(cfg), nil
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		return NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
