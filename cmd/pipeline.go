package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"aura-rag/internal/config"
	"aura-rag/internal/embedding"
	"aura-rag/internal/pipeline"
	"aura-rag/internal/rag"
)

const smokeTestK = 3

var (
	recreateTable bool
	skipTests     bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Extract and normalize every book in the books folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runClean(cmd.Context(), newPipeline(cfg, nil))
	},
}

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split cleaned books into semantic chunks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.RequireEmbeddingKey)
		if err != nil {
			return err
		}
		e, err := embedding.NewEmbedder(&cfg.EmbedLLM)
		if err != nil {
			return err
		}
		return runChunk(cmd.Context(), newPipeline(cfg, e))
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Embed semantic chunks and store them in the vector store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.RequireEmbeddingKey, config.RequireDatabaseURL)
		if err != nil {
			return err
		}
		e, err := embedding.NewEmbedder(&cfg.EmbedLLM)
		if err != nil {
			return err
		}
		applyInsertFlags(cmd, cfg)
		return runInsert(cmd.Context(), cmd.OutOrStdout(), cfg, newPipeline(cfg, e), e)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run clean, chunk and insert in sequence",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.RequireEmbeddingKey, config.RequireDatabaseURL)
		if err != nil {
			return err
		}
		e, err := embedding.NewEmbedder(&cfg.EmbedLLM)
		if err != nil {
			return err
		}
		applyInsertFlags(cmd, cfg)

		p := newPipeline(cfg, e)
		if err := runClean(cmd.Context(), p); err != nil {
			return err
		}
		if err := runChunk(cmd.Context(), p); err != nil {
			return err
		}
		return runInsert(cmd.Context(), cmd.OutOrStdout(), cfg, p, e)
	},
}

func init() {
	for _, c := range []*cobra.Command{insertCmd, runCmd} {
		c.Flags().BoolVar(&recreateTable, "recreate", true, "drop and recreate the target table before inserting")
		c.Flags().BoolVar(&skipTests, "skip-tests", false, "skip the search queries run after inserting")
	}
	rootCmd.AddCommand(cleanCmd, chunkCmd, insertCmd, runCmd)
}

// applyInsertFlags lets an explicit --recreate override the config file.
func applyInsertFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("recreate") {
		cfg.Ingest.RecreateTable = recreateTable
	}
}

func runClean(ctx context.Context, p *pipeline.Pipeline) error {
	summary, err := p.Clean(ctx)
	if err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}
	summary.Log()
	return nil
}

func runChunk(ctx context.Context, p *pipeline.Pipeline) error {
	summary, err := p.Chunk(ctx)
	if err != nil {
		return fmt.Errorf("chunk failed: %w", err)
	}
	summary.Log()
	return nil
}

func runInsert(ctx context.Context, out io.Writer, cfg *config.Config, p *pipeline.Pipeline, e embedding.Embedder) error {
	store, closeStore, err := openStore(ctx, cfg, cfg.RAG.TableName)
	if err != nil {
		return err
	}
	defer closeStore()

	loaded, summary, err := p.Insert(ctx, newWriter(cfg, e, store), cfg.Ingest.RecreateTable)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}

	fmt.Fprintf(out, "\nInsertion Summary:\n")
	fmt.Fprintf(out, "  - Chunk files: %d (%d unreadable)\n", loaded.Files, loaded.FailedFiles)
	fmt.Fprintf(out, "  - Total chunks: %d\n", summary.Total)
	fmt.Fprintf(out, "  - Successfully inserted: %d\n", summary.Inserted)
	fmt.Fprintf(out, "  - Failed batches: %d\n", summary.FailedBatches)

	if summary.Inserted == 0 || skipTests || len(cfg.Ingest.TestQueries) == 0 {
		return nil
	}
	retriever := rag.NewRetriever(queryEmbedder(cfg, e), store, nil, smokeTestK)
	if failed := rag.SmokeTest(ctx, retriever, cfg.Ingest.TestQueries, smokeTestK, out); failed > 0 {
		log.Warn().Int("failed", failed).Msg("some test queries failed")
	}
	fmt.Fprintf(out, "Table: %s\nTotal documents inserted: %d\n", cfg.RAG.TableName, summary.Inserted)
	return nil
}
