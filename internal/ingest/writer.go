package ingest

import (
	"context"
	"fmt"
	"time"

	"aura-rag/internal/embedding"
	"aura-rag/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// VectorStore persists embedded chunks and ranks them by cosine distance.
type VectorStore interface {
	Insert(ctx context.Context, docs []models.PersistedDocument) error
	Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error)
}

// Resetter drops and recreates the store's table or collection.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Summary reports the outcome of a write.
type Summary struct {
	Total         int
	Inserted      int
	FailedBatches int
}

// Writer embeds documents in batches and upserts them. A failed batch is
// logged and counted; the remaining batches still run.
type Writer struct {
	Embedder     embedding.Embedder
	Store        VectorStore
	BatchSize    int
	BatchTimeout time.Duration
	// Concurrency bounds how many batches are embedded ahead of insertion.
	Concurrency int
}

type embedResult struct {
	vecs [][]float32
	err  error
}

// Reset recreates the target when the store supports it.
func (w *Writer) Reset(ctx context.Context) error {
	r, ok := w.Store.(Resetter)
	if !ok {
		return fmt.Errorf("store %T cannot be reset", w.Store)
	}
	return r.Reset(ctx)
}

// Write embeds and stores docs. Batches are inserted in input order whatever
// the embedding concurrency.
func (w *Writer) Write(ctx context.Context, docs []models.PersistedDocument) (Summary, error) {
	summary := Summary{Total: len(docs)}
	batches := Batches(docs, w.BatchSize)
	if len(batches) == 0 {
		return summary, nil
	}

	results := make([]chan embedResult, len(batches))
	for i := range results {
		results[i] = make(chan embedResult, 1)
	}

	go func() {
		g := new(errgroup.Group)
		g.SetLimit(max(w.Concurrency, 1))
		for i, batch := range batches {
			g.Go(func() error {
				vecs, err := w.embedBatch(ctx, batch)
				results[i] <- embedResult{vecs: vecs, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	for i, batch := range batches {
		start := i * w.batchSize()
		log.Info().Int("batch", i+1).Int("from", start+1).Int("to", start+len(batch)).Msg("processing batch")
		for _, d := range batch {
			if len(d.ID) > models.MaxDocumentIDLength {
				log.Warn().Str("id", d.ID).Msg("document id is too long")
			}
		}

		res := <-results[i]
		err := res.err
		if err == nil {
			err = w.insertBatch(ctx, batch, res.vecs)
		}
		if err != nil {
			log.Error().Err(err).Int("batch", i+1).Msg("batch failed")
			summary.FailedBatches++
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			continue
		}
		summary.Inserted += len(batch)
		log.Info().Int("batch", i+1).Int("inserted", len(batch)).Msg("batch stored")
	}
	return summary, nil
}

func (w *Writer) batchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.BatchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.BatchTimeout)
}

func (w *Writer) embedBatch(ctx context.Context, batch []models.PersistedDocument) ([][]float32, error) {
	ctx, cancel := w.batchContext(ctx)
	defer cancel()

	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.Text
	}
	vecs, err := w.Embedder.Embed(ctx, texts, embedding.TaskDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", embedding.ErrDimensionMismatch, len(vecs), len(batch))
	}
	return vecs, nil
}

func (w *Writer) insertBatch(ctx context.Context, batch []models.PersistedDocument, vecs [][]float32) error {
	ctx, cancel := w.batchContext(ctx)
	defer cancel()

	out := make([]models.PersistedDocument, len(batch))
	for i, d := range batch {
		d.Embedding = vecs[i]
		out[i] = d
	}
	if err := w.Store.Insert(ctx, out); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

func (w *Writer) batchSize() int {
	if w.BatchSize < 1 {
		return models.InsertBatchSize
	}
	return w.BatchSize
}

// Batches splits docs into consecutive groups of at most size items.
func Batches(docs []models.PersistedDocument, size int) [][]models.PersistedDocument {
	if size < 1 {
		size = models.InsertBatchSize
	}
	var out [][]models.PersistedDocument
	for start := 0; start < len(docs); start += size {
		out = append(out, docs[start:min(start+size, len(docs))])
	}
	return out
}
