package embedding

import (
	"context"
	"strings"
	"sync/atomic"

	"aura-rag/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainProvider adapts a langchaingo embedder. Query tasks go through
// EmbedQuery, everything else through EmbedDocuments.
type LangchainProvider struct {
	embedder embeddings.Embedder
	dim      atomic.Int64
}

// NewLangchainProvider wraps embedder. With dim 0 the dimension is learned
// from the first successful response.
func NewLangchainProvider(embedder embeddings.Embedder, dim int) *LangchainProvider {
	p := &LangchainProvider{embedder: embedder}
	p.dim.Store(int64(dim))
	return p
}

// NewOpenAIEmbedder talks to any OpenAI-compatible embeddings endpoint.
func NewOpenAIEmbedder(cfg *config.LLMConfig) (*LangchainProvider, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("embedding_model", cfg.Model).Msg("creating openai embedder")

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return NewLangchainProvider(embedder, cfg.Dimension), nil
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.LLMConfig) (*LangchainProvider, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("embedding_model", cfg.Model).Msg("creating ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return NewLangchainProvider(embedder, cfg.Dimension), nil
}

func (p *LangchainProvider) Dimension() int { return int(p.dim.Load()) }

func (p *LangchainProvider) Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var (
		vecs [][]float32
		err  error
	)
	if task == TaskQuery {
		vecs = make([][]float32, 0, len(texts))
		for _, t := range texts {
			v, err := p.embedder.EmbedQuery(ctx, t)
			if err != nil {
				return nil, err
			}
			vecs = append(vecs, v)
		}
	} else {
		vecs, err = p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, err
		}
	}

	if len(vecs) > 0 {
		p.dim.CompareAndSwap(0, int64(len(vecs[0])))
	}
	if err := checkVectors(vecs, len(texts), p.Dimension()); err != nil {
		return nil, err
	}
	return vecs, nil
}
