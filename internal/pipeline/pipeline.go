package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"aura-rag/internal/chunker"
	"aura-rag/internal/cleaner"
	"aura-rag/internal/config"
	"aura-rag/internal/helper"
	"aura-rag/internal/ingest"
	"aura-rag/internal/parser"

	"github.com/rs/zerolog/log"
)

// ErrNoContent is returned for a book that produced no cleaned text or no chunks.
var ErrNoContent = errors.New("no content")

// BookResult is the outcome of one stage for one book.
type BookResult struct {
	Book   string
	Output string
	Pages  int
	Chunks int
	Err    error
}

// RunSummary collects per-book results of a stage.
type RunSummary struct {
	Stage    string
	Books    []BookResult
	Duration time.Duration
}

func (s RunSummary) Succeeded() int {
	n := 0
	for _, b := range s.Books {
		if b.Err == nil {
			n++
		}
	}
	return n
}

func (s RunSummary) Failed() []BookResult {
	var failed []BookResult
	for _, b := range s.Books {
		if b.Err != nil {
			failed = append(failed, b)
		}
	}
	return failed
}

// Log writes the summary through the global logger.
func (s RunSummary) Log() {
	log.Info().
		Str("stage", s.Stage).
		Int("books", len(s.Books)).
		Int("succeeded", s.Succeeded()).
		Int("failed", len(s.Failed())).
		Dur("took", s.Duration).
		Msg("stage finished")
	for _, b := range s.Failed() {
		log.Warn().Err(b.Err).Str("stage", s.Stage).Str("book", b.Book).Msg("book skipped")
	}
}

// Pipeline runs the book stages. Books are processed one after another and a
// failing book never stops the others.
type Pipeline struct {
	Extractor  parser.Extractor
	Normalizer *cleaner.Normalizer
	Processor  *chunker.Processor
	Paths      config.PathsConfig
}

// CleanBook extracts and normalizes one source document and writes the cleaned text.
func (p *Pipeline) CleanBook(path string) BookResult {
	res := BookResult{Book: parser.Stem(path)}

	doc, err := p.Extractor.ExtractDocument(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to extract %s: %w", path, err)
		return res
	}
	text, stats := p.Normalizer.CleanDocument(doc)
	res.Pages = stats.KeptPages
	log.Info().
		Str("book", doc.Name).
		Int("pages", stats.TotalPages).
		Int("kept", stats.KeptPages).
		Int("image_heavy", stats.ImageHeavy).
		Int("sparse", stats.TooSparse).
		Int("empty", stats.EmptyCleaned).
		Msg("cleaned book")
	if strings.TrimSpace(text) == "" {
		res.Err = fmt.Errorf("%s: %w", doc.Name, ErrNoContent)
		return res
	}

	out, err := cleaner.WriteCleaned(p.Paths.CleanedDir, doc.Name, text)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = out
	return res
}

// Clean runs CleanBook over every supported file in the books folder.
func (p *Pipeline) Clean(ctx context.Context) (RunSummary, error) {
	files, err := listFiles(p.Paths.BooksDir, parser.IsSupported)
	if err != nil {
		return RunSummary{}, err
	}
	if err := helper.CreateFolder(p.Paths.CleanedDir); err != nil {
		return RunSummary{}, err
	}

	start := time.Now()
	summary := RunSummary{Stage: "clean"}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		log.Info().Int("book", i+1).Int("of", len(files)).Str("file", filepath.Base(path)).Msg("cleaning")
		summary.Books = append(summary.Books, p.CleanBook(path))
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

// ChunkBook chunks one cleaned text file and writes its JSON and text listings.
func (p *Pipeline) ChunkBook(ctx context.Context, path string) BookResult {
	name := chunker.BookNameFromPath(path)
	res := BookResult{Book: name}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to read %s: %w", path, err)
		return res
	}
	book, err := p.Processor.ProcessBook(ctx, name, string(data))
	if err != nil {
		res.Err = err
		return res
	}
	if book.TotalChunks == 0 {
		res.Err = fmt.Errorf("%s: %w", name, ErrNoContent)
		return res
	}

	jsonPath, _, err := chunker.WriteBookChunks(p.Paths.ChunksDir, book)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = jsonPath
	res.Chunks = book.TotalChunks
	log.Info().Str("book", name).Int("chunks", book.TotalChunks).Str("file", jsonPath).Msg("chunked book")
	return res
}

// Chunk runs ChunkBook over every cleaned text file.
func (p *Pipeline) Chunk(ctx context.Context) (RunSummary, error) {
	files, err := listFiles(p.Paths.CleanedDir, func(path string) bool {
		return strings.EqualFold(filepath.Ext(path), ".txt")
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := helper.CreateFolder(p.Paths.ChunksDir); err != nil {
		return RunSummary{}, err
	}

	start := time.Now()
	summary := RunSummary{Stage: "chunk"}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		log.Info().Int("book", i+1).Int("of", len(files)).Str("file", filepath.Base(path)).Msg("chunking")
		summary.Books = append(summary.Books, p.ChunkBook(ctx, path))
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

// Insert loads every chunk file and writes it through w, recreating the
// target first when recreate is set.
func (p *Pipeline) Insert(ctx context.Context, w *ingest.Writer, recreate bool) (ingest.LoadResult, ingest.Summary, error) {
	loaded, err := ingest.LoadFolder(p.Paths.ChunksDir)
	if err != nil {
		return loaded, ingest.Summary{}, err
	}
	for book, n := range loaded.PerBook {
		log.Info().Str("book_short_id", book).Int("chunks", n).Msg("loaded chunks")
	}
	if len(loaded.Documents) == 0 {
		return loaded, ingest.Summary{}, fmt.Errorf("chunk folder %s: %w", p.Paths.ChunksDir, ErrNoContent)
	}

	if recreate {
		if err := w.Reset(ctx); err != nil {
			return loaded, ingest.Summary{}, fmt.Errorf("failed to recreate store: %w", err)
		}
	}
	summary, err := w.Write(ctx, loaded.Documents)
	return loaded, summary, err
}

func listFiles(dir string, keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !keep(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
