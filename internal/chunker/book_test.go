package chunker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aura-rag/internal/config"
	"aura-rag/internal/helper"
	"aura-rag/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultChunking() config.ChunkingConfig {
	return config.Default().Chunking
}

func TestProcessBookMergesSimilarWindows(t *testing.T) {
	e := &constEmbedder{}
	p := NewProcessor(e, defaultChunking())
	text := strings.Repeat(sentence(10)+". ", 9)

	book, err := p.ProcessBook(context.Background(), "Sample_cleaned", text)
	require.NoError(t, err)

	assert.Equal(t, 3, e.calls, "one similarity request per initial chunk")
	assert.Equal(t, "Sample_cleaned", book.BookName)
	assert.Equal(t, models.ChunkingMethodSemantic, book.ChunkingMethod)
	require.Equal(t, 1, book.TotalChunks)
	require.Len(t, book.Chunks, 1)

	c := book.Chunks[0]
	assert.Equal(t, 0, c.ChunkID)
	assert.Equal(t, 90, c.WordCount)
	assert.Equal(t, 449, c.CharCount)
	assert.Equal(t, []int{0, 1, 2}, c.OriginalIndices)
	require.Len(t, c.SimilarityScores, 2)
	for _, s := range c.SimilarityScores {
		assert.InDelta(t, 1.0, s, 1e-9)
	}
}

func TestProcessBookNoSentences(t *testing.T) {
	e := &constEmbedder{}
	p := NewProcessor(e, defaultChunking())

	book, err := p.ProcessBook(context.Background(), "Tiny", "too short. also short.")
	require.NoError(t, err)
	assert.Zero(t, book.TotalChunks)
	assert.Zero(t, e.calls)
}

func TestProcessBookCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProcessor(&constEmbedder{}, defaultChunking())

	_, err := p.ProcessBook(ctx, "Sample", strings.Repeat(sentence(10)+". ", 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderText(t *testing.T) {
	book := models.BookChunks{
		BookName: "Sample",
		Chunks: []models.ChunkRecord{
			{ChunkID: 0, Text: "first chunk", WordCount: 2, CharCount: 11},
			{ChunkID: 1, Text: "second", WordCount: 1, CharCount: 6},
		},
	}

	want := "Semantic Chunks for: Sample\n" +
		strings.Repeat("=", 50) + "\n\n" +
		"CHUNK 1 (Words: 2, Chars: 11)\n" + strings.Repeat("-", 30) + "\nfirst chunk\n\n" +
		"CHUNK 2 (Words: 1, Chars: 6)\n" + strings.Repeat("-", 30) + "\nsecond\n\n"
	assert.Equal(t, want, RenderText(book))
}

func TestWriteBookChunks(t *testing.T) {
	dir := t.TempDir()
	book := models.BookChunks{
		BookName:       "Sample_cleaned",
		TotalChunks:    1,
		ChunkingMethod: models.ChunkingMethodSemantic,
		Chunks: []models.ChunkRecord{{
			ChunkID: 0, Text: "a chunk", WordCount: 2, CharCount: 7,
			OriginalIndices: []int{0}, SimilarityScores: []float64{},
		}},
	}

	jsonPath, txtPath, err := WriteBookChunks(dir, book)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Sample_cleaned_semantic_chunks.json"), jsonPath)
	assert.Equal(t, filepath.Join(dir, "Sample_cleaned_chunks.txt"), txtPath)

	var raw map[string]any
	require.NoError(t, helper.ReadJSONFile(jsonPath, &raw))
	assert.Equal(t, "Sample_cleaned", raw["book_name"])
	assert.EqualValues(t, 1, raw["total_chunks"])
	chunk := raw["chunks"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{}, chunk["similarity_scores"])
	assert.Equal(t, []any{float64(0)}, chunk["original_indices"])

	txt, err := os.ReadFile(txtPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(txt), "Semantic Chunks for: Sample_cleaned\n"))
}

func TestBookNameFromPath(t *testing.T) {
	assert.Equal(t, "Life-Span Human Development_cleaned", BookNameFromPath("/x/Life-Span Human Development_cleaned.txt"))
}
