package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"aura-rag/internal/helper"
	"aura-rag/internal/models"

	"github.com/rs/zerolog/log"
)

type rawProvenance struct {
	OriginalIndices  []int     `json:"original_indices"`
	SimilarityScores []float64 `json:"similarity_scores"`
}

type rawChunk struct {
	ChunkID   *int           `json:"chunk_id"`
	Text      string         `json:"text"`
	WordCount *int           `json:"word_count"`
	CharCount *int           `json:"char_count"`
	Metadata  *rawProvenance `json:"metadata"`
	rawProvenance
}

type rawBook struct {
	BookName       string     `json:"book_name"`
	TotalChunks    int        `json:"total_chunks"`
	ChunkingMethod string     `json:"chunking_method"`
	Chunks         []rawChunk `json:"chunks"`
}

// LoadResult is everything read from a chunk folder.
type LoadResult struct {
	Documents   []models.PersistedDocument
	Files       int
	FailedFiles int
	PerBook     map[string]int
}

// LoadFolder reads every semantic chunk file in dir, sorted by name. A file
// that cannot be read or decoded is logged and skipped.
func LoadFolder(dir string) (LoadResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+models.SemanticChunksSuffix))
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(files)
	log.Info().Int("files", len(files)).Str("folder", dir).Msg("found semantic chunk files")

	res := LoadResult{Files: len(files), PerBook: map[string]int{}}
	for _, path := range files {
		docs, err := LoadFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("skipping chunk file")
			res.FailedFiles++
			continue
		}
		for _, d := range docs {
			res.PerBook[d.Metadata["book_short_id"].(string)]++
		}
		res.Documents = append(res.Documents, docs...)
	}
	return res, nil
}

// LoadFile converts one chunk file into store documents. Chunks whose trimmed
// text is MinStoredTextLength characters or shorter are left out.
func LoadFile(path string) ([]models.PersistedDocument, error) {
	var book rawBook
	if err := helper.ReadJSONFile(path, &book); err != nil {
		return nil, err
	}

	sourceFile := filepath.Base(path)
	bookName := book.BookName
	if bookName == "" {
		bookName = strings.TrimSuffix(strings.TrimSuffix(sourceFile, filepath.Ext(sourceFile)), "_semantic_chunks")
	}
	method := book.ChunkingMethod
	if method == "" {
		method = models.ChunkingMethodSemantic
	}
	shortID := ShortBookID(bookName)

	var docs []models.PersistedDocument
	for i, c := range book.Chunks {
		chunkID := i
		if c.ChunkID != nil {
			chunkID = *c.ChunkID
		}
		wordCount := len(strings.Fields(c.Text))
		if c.WordCount != nil {
			wordCount = *c.WordCount
		}
		charCount := utf8.RuneCountInString(c.Text)
		if c.CharCount != nil {
			charCount = *c.CharCount
		}
		prov := c.rawProvenance
		if c.Metadata != nil {
			prov = *c.Metadata
		}

		text := strings.TrimSpace(c.Text)
		if utf8.RuneCountInString(text) <= models.MinStoredTextLength {
			continue
		}

		metadata := map[string]any{
			"book_name":       bookName,
			"book_short_id":   shortID,
			"chunk_id":        chunkID,
			"word_count":      wordCount,
			"char_count":      charCount,
			"chunking_method": method,
			"source_file":     sourceFile,
		}
		if len(prov.OriginalIndices) > 0 {
			metadata["original_indices_count"] = len(prov.OriginalIndices)
		}
		if len(prov.SimilarityScores) > 0 {
			metadata["similarity_scores_count"] = len(prov.SimilarityScores)
		}

		docs = append(docs, models.PersistedDocument{
			ID:       DocumentID(shortID, chunkID),
			Text:     text,
			Metadata: metadata,
		})
	}

	log.Info().Str("book", bookName).Str("short_id", shortID).Int("chunks", len(book.Chunks)).Int("valid", len(docs)).Msg("loaded chunk file")
	return docs, nil
}
