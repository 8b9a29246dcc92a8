package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"aura-rag/internal/embedding"
	"aura-rag/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	calls  [][]string
	docs   map[string]models.PersistedDocument
	failOn int // 1-based insert call that fails, 0 for never
	resets int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[string]models.PersistedDocument{}}
}

func (s *memoryStore) Insert(_ context.Context, docs []models.PersistedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	s.calls = append(s.calls, ids)
	if len(s.calls) == s.failOn {
		return errors.New("connection reset")
	}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return nil
}

func (s *memoryStore) Query(context.Context, []float32, int) ([]models.SearchResult, error) {
	return nil, nil
}

func (s *memoryStore) Reset(context.Context) error {
	s.resets++
	s.docs = map[string]models.PersistedDocument{}
	return nil
}

type batchEmbedder struct {
	mu     sync.Mutex
	failOn map[string]bool
	tasks  []embedding.TaskType
	delay  time.Duration
}

func (e *batchEmbedder) Dimension() int { return 2 }

func (e *batchEmbedder) Embed(ctx context.Context, texts []string, task embedding.TaskType) ([][]float32, error) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.failOn[t] {
			return nil, errors.New("quota exceeded")
		}
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func makeDocs(n int) []models.PersistedDocument {
	docs := make([]models.PersistedDocument, n)
	for i := range docs {
		docs[i] = models.PersistedDocument{
			ID:       DocumentID("sample", i),
			Text:     fmt.Sprintf("chunk number %d with enough text", i),
			Metadata: map[string]any{"chunk_id": i},
		}
	}
	return docs
}

func TestShortBookID(t *testing.T) {
	assert.Equal(t, "papalia", ShortBookID("Diane_Papalia,_Sally_Olds,_Ruth_Feldman_-_Human_Development_(2009,_McGraw-Hill_Education_cleaned"))
	assert.Equal(t, "lifespan", ShortBookID("Life-Span Human Development_cleaned"))
	assert.Equal(t, "santrock", ShortBookID("Life-Span_Development,_13th_Edition_by_John_Santrock_(z-lib.org)[1]_cleaned"))

	// md5("Sample") = c5dd1b2697720fe692c529688d3f4f8d
	assert.Equal(t, "c5dd1b26", ShortBookID("Sample"))
	assert.Equal(t, ShortBookID("Other Book"), ShortBookID("Other Book"))
	assert.Len(t, ShortBookID("Other Book"), 8)
	assert.Equal(t, "sample_c12", DocumentID("sample", 12))
}

func TestBatches(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25} {
		batches := Batches(makeDocs(n), 10)
		assert.Len(t, batches, (n+9)/10, "n=%d", n)
		total := 0
		for _, b := range batches {
			assert.LessOrEqual(t, len(b), 10)
			total += len(b)
		}
		assert.Equal(t, n, total)
	}
}

func TestWriterInsertsInBatches(t *testing.T) {
	store := newMemoryStore()
	emb := &batchEmbedder{}
	w := &Writer{Embedder: emb, Store: store, BatchSize: 10}

	summary, err := w.Write(context.Background(), makeDocs(23))
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 23, Inserted: 23}, summary)
	require.Len(t, store.calls, 3)
	assert.Len(t, store.calls[2], 3)
	for _, task := range emb.tasks {
		assert.Equal(t, embedding.TaskDocument, task)
	}
	for id, d := range store.docs {
		assert.Len(t, d.Embedding, 2, id)
	}
}

func TestWriterIsolatesFailedBatches(t *testing.T) {
	docs := makeDocs(30)
	store := newMemoryStore()
	store.failOn = 2
	emb := &batchEmbedder{failOn: map[string]bool{docs[0].Text: true}}
	w := &Writer{Embedder: emb, Store: store, BatchSize: 10}

	summary, err := w.Write(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 30, Inserted: 10, FailedBatches: 2}, summary)
	assert.Len(t, store.docs, 10)
	assert.Contains(t, store.docs, docs[15].ID)
}

func TestWriterConcurrencyDoesNotChangeOutput(t *testing.T) {
	run := func(concurrency int) ([][]string, map[string]models.PersistedDocument) {
		store := newMemoryStore()
		w := &Writer{Embedder: &batchEmbedder{}, Store: store, BatchSize: 10, Concurrency: concurrency}
		_, err := w.Write(context.Background(), makeDocs(45))
		require.NoError(t, err)
		return store.calls, store.docs
	}

	seqCalls, seqDocs := run(1)
	parCalls, parDocs := run(4)
	assert.Equal(t, seqCalls, parCalls)
	assert.Equal(t, seqDocs, parDocs)
}

func TestWriterBatchTimeout(t *testing.T) {
	store := newMemoryStore()
	w := &Writer{
		Embedder:     &batchEmbedder{delay: time.Second},
		Store:        store,
		BatchSize:    10,
		BatchTimeout: 20 * time.Millisecond,
	}

	summary, err := w.Write(context.Background(), makeDocs(5))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailedBatches)
	assert.Empty(t, store.calls)
}

func TestWriterRerunIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	w := &Writer{Embedder: &batchEmbedder{}, Store: store, BatchSize: 10}
	docs := makeDocs(12)

	_, err := w.Write(context.Background(), docs)
	require.NoError(t, err)
	first := len(store.docs)
	_, err = w.Write(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, first, len(store.docs))
}

func TestWriterReset(t *testing.T) {
	store := newMemoryStore()
	w := &Writer{Embedder: &batchEmbedder{}, Store: store}
	require.NoError(t, w.Reset(context.Background()))
	assert.Equal(t, 1, store.resets)
}

func writeChunkFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadFolder(t *testing.T) {
	dir := t.TempDir()
	writeChunkFile(t, dir, "Life-Span Human Development_cleaned_semantic_chunks.json", `{
  "book_name": "Life-Span Human Development_cleaned",
  "total_chunks": 3,
  "chunks": [
    {"chunk_id": 0, "text": "  infants develop trust when caregivers respond.  ", "word_count": 7, "char_count": 48,
     "original_indices": [0, 1], "similarity_scores": [0.81]},
    {"chunk_id": 1, "text": "too short"},
    {"text": "a chunk without explicit counts or id", "metadata": {"original_indices": [4], "similarity_scores": []}}
  ]
}`)
	writeChunkFile(t, dir, "broken_semantic_chunks.json", `{"chunks": [`)
	writeChunkFile(t, dir, "ignored.json", `{}`)

	res, err := LoadFolder(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 1, res.FailedFiles)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, map[string]int{"lifespan": 2}, res.PerBook)

	first := res.Documents[0]
	assert.Equal(t, "lifespan_c0", first.ID)
	assert.Equal(t, "infants develop trust when caregivers respond.", first.Text)
	assert.Equal(t, map[string]any{
		"book_name":               "Life-Span Human Development_cleaned",
		"book_short_id":           "lifespan",
		"chunk_id":                0,
		"word_count":              7,
		"char_count":              48,
		"chunking_method":         "semantic",
		"source_file":             "Life-Span Human Development_cleaned_semantic_chunks.json",
		"original_indices_count":  2,
		"similarity_scores_count": 1,
	}, first.Metadata)

	second := res.Documents[1]
	assert.Equal(t, "lifespan_c2", second.ID, "chunk id defaults to position")
	assert.Equal(t, 7, second.Metadata["word_count"])
	assert.Equal(t, len("a chunk without explicit counts or id"), second.Metadata["char_count"])
	assert.Equal(t, 1, second.Metadata["original_indices_count"])
	assert.NotContains(t, second.Metadata, "similarity_scores_count")
}

func TestLoadFileBookNameFromFileName(t *testing.T) {
	dir := t.TempDir()
	writeChunkFile(t, dir, "Notes_cleaned_semantic_chunks.json", `{"chunking_method": "window", "chunks": [{"text": "a sufficiently long chunk of text"}]}`)

	docs, err := LoadFile(filepath.Join(dir, "Notes_cleaned_semantic_chunks.json"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Notes_cleaned", docs[0].Metadata["book_name"])
	assert.Equal(t, "window", docs[0].Metadata["chunking_method"])
}

func TestDocumentIDsAreUniqueWithinABook(t *testing.T) {
	dir := t.TempDir()
	var chunks []string
	for i := 0; i < 25; i++ {
		chunks = append(chunks, fmt.Sprintf(`{"chunk_id": %d, "text": "chunk text number %d here"}`, i, i))
	}
	writeChunkFile(t, dir, "Sample_semantic_chunks.json", `{"book_name": "Sample", "chunks": [`+strings.Join(chunks, ",")+`]}`)

	first, err := LoadFolder(dir)
	require.NoError(t, err)
	second, err := LoadFolder(dir)
	require.NoError(t, err)

	ids := map[string]bool{}
	var order []string
	for _, d := range first.Documents {
		assert.False(t, ids[d.ID], "duplicate id %s", d.ID)
		ids[d.ID] = true
		order = append(order, d.ID)
	}
	assert.Len(t, ids, 25)
	var again []string
	for _, d := range second.Documents {
		again = append(again, d.ID)
	}
	assert.Equal(t, order, again)
	sort.Strings(again)
	assert.Equal(t, "c5dd1b26_c0", again[0])
}
