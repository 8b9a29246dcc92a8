package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"aura-rag/internal/embedding"
	"aura-rag/internal/llmservice"
	"aura-rag/internal/models"

	"github.com/rs/zerolog/log"
)

const systemPrompt = "You are AURA, a calm and supportive mental health assistant. Use the provided context to answer the query."

var ErrNoChatModel = errors.New("no chat model configured")

// Store is the query side of a vector store.
type Store interface {
	Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error)
}

// Retriever embeds queries and searches a chunk store. Answer additionally
// needs Chat.
type Retriever struct {
	Embedder embedding.Embedder
	Store    Store
	Chat     *llmservice.Client
	TopK     int
}

func NewRetriever(e embedding.Embedder, store Store, chat *llmservice.Client, topK int) *Retriever {
	return &Retriever{Embedder: e, Store: store, Chat: chat, TopK: topK}
}

// Search returns the k chunks closest to query. k <= 0 uses TopK.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if k <= 0 {
		k = r.TopK
	}
	vecs, err := r.Embedder.Embed(ctx, []string{query}, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one query", embedding.ErrDimensionMismatch, len(vecs))
	}
	results, err := r.Store.Query(ctx, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	log.Debug().Str("query", query).Int("results", len(results)).Msg("searched chunks")
	return results, nil
}

// Answer retrieves passages for query and asks the chat model to answer with
// them as context.
func (r *Retriever) Answer(ctx context.Context, query string) (models.PromptResponse, error) {
	if r.Chat == nil {
		return models.PromptResponse{}, ErrNoChatModel
	}
	results, err := r.Search(ctx, query, 0)
	if err != nil {
		return models.PromptResponse{}, err
	}

	var passages strings.Builder
	for _, res := range results {
		passages.WriteString(res.Document + "\n\n")
	}
	prompt := fmt.Sprintf(models.ContextPromptTemplate, passages.String(), query)

	content, err := r.Chat.Ask(ctx, systemPrompt, prompt)
	if err != nil {
		return models.PromptResponse{}, err
	}
	return models.PromptResponse{
		Query:   query,
		Source:  Sources(results),
		Content: content,
	}, nil
}

// Sources lists the distinct books behind results, sorted.
func Sources(results []models.SearchResult) string {
	seen := map[string]bool{}
	var names []string
	for _, res := range results {
		name := metaString(res.Metadata, "book_name")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// PrintResults writes a search listing in the format used after an insert run.
func PrintResults(w io.Writer, query string, results []models.SearchResult) {
	fmt.Fprintf(w, "\nSearch results for: %q\n", query)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for i, res := range results {
		fmt.Fprintf(w, "%d. Book: %s | Chunk: %s | Words: %s\n", i+1,
			metaOr(res.Metadata, "book_short_id"), metaOr(res.Metadata, "chunk_id"), metaOr(res.Metadata, "word_count"))
		fmt.Fprintf(w, "   Full name: %s...\n", truncate(metaOr(res.Metadata, "book_name"), 60))
		fmt.Fprintf(w, "   Similarity: %.4f\n", res.Similarity())
		fmt.Fprintf(w, "   Text: %q\n\n", truncate(res.Document, 120)+"...")
	}
}

// SmokeTest runs each query against the store and prints the top k hits. A
// failing query is reported and the rest still run.
func SmokeTest(ctx context.Context, r *Retriever, queries []string, k int, w io.Writer) int {
	failed := 0
	for _, q := range queries {
		results, err := r.Search(ctx, q, k)
		if err != nil {
			log.Error().Err(err).Str("query", q).Msg("smoke query failed")
			failed++
			continue
		}
		PrintResults(w, q, results)
	}
	return failed
}

func metaString(md map[string]any, key string) string {
	v, ok := md[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func metaOr(md map[string]any, key string) string {
	if s := metaString(md, key); s != "" {
		return s
	}
	return "Unknown"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
