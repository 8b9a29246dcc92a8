package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"aura-rag/internal/chromemdb"
	"aura-rag/internal/chunker"
	"aura-rag/internal/cleaner"
	"aura-rag/internal/config"
	"aura-rag/internal/db"
	"aura-rag/internal/embedding"
	"aura-rag/internal/ingest"
	"aura-rag/internal/parser"
	"aura-rag/internal/pipeline"
)

// chunkStore is what the insert and query commands need from a backend.
type chunkStore interface {
	ingest.VectorStore
	ingest.Resetter
}

// openStore opens the configured backend for table. The returned func
// releases it; for an in-memory chromem store it also writes the export file.
func openStore(ctx context.Context, cfg *config.Config, table string) (chunkStore, func(), error) {
	switch cfg.RAG.Backend {
	case "chromem":
		mgr, err := chromemdb.NewVectorDBManager(cfg.RAG.ChromemPath, table, cfg.RAG.InMemory, cfg.RAG.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}
		if cfg.RAG.InMemory && mgr.HasExport() {
			if err := mgr.Import(ctx); err != nil {
				return nil, nil, err
			}
			log.Info().Str("collection", table).Int("documents", mgr.Count()).Msg("imported collection")
		}
		closeFn := func() {
			if !cfg.RAG.InMemory || cfg.RAG.ChromemPath == "" {
				return
			}
			if err := mgr.Export(context.Background()); err != nil {
				log.Error().Err(err).Str("collection", table).Msg("failed to export collection")
			}
		}
		return mgr, closeFn, nil
	case "pgvector", "":
		bdb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if !db.IsPostgres(bdb) {
			bdb.Close()
			return nil, nil, fmt.Errorf("pgvector backend needs a postgres driver, got %q", cfg.Database.Driver)
		}
		store := db.NewChunkStore(bdb, table, cfg.EmbedLLM.Dimension)
		if err := store.Init(ctx); err != nil {
			bdb.Close()
			return nil, nil, err
		}
		return store, func() { bdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.RAG.Backend)
}

// openSummaries returns nil when no database is configured.
func openSummaries(ctx context.Context, cfg *config.Config) (*db.SummaryStore, func(), error) {
	if cfg.Database.URL == "" {
		return nil, func() {}, nil
	}
	bdb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	store := db.NewSummaryStore(bdb)
	if err := store.Init(ctx); err != nil {
		bdb.Close()
		return nil, nil, err
	}
	return store, func() { bdb.Close() }, nil
}

func newPipeline(cfg *config.Config, e embedding.Embedder) *pipeline.Pipeline {
	p := &pipeline.Pipeline{
		Extractor:  parser.Default,
		Normalizer: cleaner.NewNormalizer(),
		Paths:      cfg.Paths,
	}
	if e != nil {
		p.Processor = chunker.NewProcessor(e, cfg.Chunking)
	}
	return p
}

func newWriter(cfg *config.Config, e embedding.Embedder, store ingest.VectorStore) *ingest.Writer {
	return &ingest.Writer{
		Embedder:     e,
		Store:        store,
		BatchSize:    cfg.Ingest.BatchSize,
		BatchTimeout: cfg.Ingest.BatchTimeout,
		Concurrency:  cfg.Ingest.EmbedConcurrency,
	}
}

func queryEmbedder(cfg *config.Config, e embedding.Embedder) *embedding.CachedEmbedder {
	return embedding.NewCachedEmbedder(e, cfg.EmbedLLM.Model, embedding.QueryCacheTTL)
}
