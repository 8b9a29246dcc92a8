package chunker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"aura-rag/internal/config"
	"aura-rag/internal/embedding"
	"aura-rag/internal/helper"
	"aura-rag/internal/models"

	"github.com/rs/zerolog/log"
)

// Processor turns cleaned book text into merged semantic chunks.
type Processor struct {
	Embedder          embedding.Embedder
	Window            WindowChunker
	Merger            Merger
	MinSentenceLength int
}

func NewProcessor(e embedding.Embedder, cfg config.ChunkingConfig) *Processor {
	return &Processor{
		Embedder: e,
		Window: WindowChunker{
			WindowSize:   cfg.WindowSize,
			MinChunkSize: cfg.MinChunkSize,
			MaxChunkSize: cfg.MaxChunkSize,
		},
		Merger: Merger{
			Threshold:    cfg.SimilarityThreshold,
			MaxChunkSize: cfg.MaxChunkSize,
		},
		MinSentenceLength: models.MinSentenceLength,
	}
}

// Chunk segments, windows, embeds and merges text.
func (p *Processor) Chunk(ctx context.Context, text string) ([]models.MergedChunk, error) {
	sentences := SplitSentences(text, p.MinSentenceLength)
	initial := p.Window.Chunk(sentences)
	log.Debug().Int("sentences", len(sentences)).Int("initial_chunks", len(initial)).Msg("windowed sentences")
	if len(initial) == 0 {
		return nil, nil
	}

	vecs := embedding.EmbedForSimilarity(ctx, p.Embedder, initial)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Merger.Merge(initial, vecs)
}

// ProcessBook chunks a book and numbers its chunks from zero.
func (p *Processor) ProcessBook(ctx context.Context, bookName, text string) (models.BookChunks, error) {
	merged, err := p.Chunk(ctx, text)
	if err != nil {
		return models.BookChunks{}, fmt.Errorf("failed to chunk %s: %w", bookName, err)
	}
	records := ToRecords(merged)
	return models.BookChunks{
		BookName:       bookName,
		TotalChunks:    len(records),
		ChunkingMethod: models.ChunkingMethodSemantic,
		Chunks:         records,
	}, nil
}

func ToRecords(merged []models.MergedChunk) []models.ChunkRecord {
	records := make([]models.ChunkRecord, len(merged))
	for i, m := range merged {
		records[i] = models.ChunkRecord{
			ChunkID:          i,
			Text:             m.Text,
			WordCount:        len(strings.Fields(m.Text)),
			CharCount:        utf8.RuneCountInString(m.Text),
			OriginalIndices:  m.OriginalIndices,
			SimilarityScores: m.SimilarityScores,
		}
	}
	return records
}

// BookNameFromPath is the stem of a cleaned text file. The "_cleaned" marker
// is kept so book names match what earlier runs stored.
func BookNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChunksPath is the semantic chunk file for a book.
func ChunksPath(dir, bookName string) string {
	return filepath.Join(dir, bookName+models.SemanticChunksSuffix)
}

// WriteBookChunks writes the JSON chunk file and its plain-text rendering.
func WriteBookChunks(dir string, book models.BookChunks) (string, string, error) {
	jsonPath := ChunksPath(dir, book.BookName)
	if err := helper.WriteJSONFile(jsonPath, book); err != nil {
		return "", "", err
	}
	txtPath := filepath.Join(dir, book.BookName+models.ChunksTextSuffix)
	if err := helper.WriteTextFile(txtPath, RenderText(book)); err != nil {
		return "", "", err
	}
	return jsonPath, txtPath, nil
}

// RenderText is the human-readable listing of a book's chunks.
func RenderText(book models.BookChunks) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Semantic Chunks for: %s\n", book.BookName)
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n\n")
	for i, c := range book.Chunks {
		fmt.Fprintf(&b, "CHUNK %d (Words: %d, Chars: %d)\n", i+1, c.WordCount, c.CharCount)
		b.WriteString(strings.Repeat("-", 30))
		b.WriteString("\n")
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
