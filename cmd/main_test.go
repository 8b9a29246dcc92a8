package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aura-rag/internal/config"
	"aura-rag/internal/embedding"
	"aura-rag/internal/helper"
	"aura-rag/internal/ingest"
	"aura-rag/internal/models"
)

type stubEmbedder struct{}

func (stubEmbedder) Dimension() int { return 2 }

func (stubEmbedder) Embed(_ context.Context, texts []string, _ embedding.TaskType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logLevel = "info"
	configPath = defaultConfigPath
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"clean", "chunk", "insert", "run", "search", "ask"} {
		assert.True(t, names[want], want)
	}

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "n", flag.Shorthand)
}

func TestSearchRequiresQuery(t *testing.T) {
	_, err := executeRoot(t, "search")
	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := executeRoot(t, "--log-level", "loud", "clean")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestChunkFailsWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	_, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "chunk")
	assert.ErrorIs(t, err, config.ErrMissingCredential)
}

func chromemConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.RAG.Backend = "chromem"
	cfg.RAG.InMemory = true
	cfg.RAG.ChromemPath = filepath.Join(root, "chromemdb")
	cfg.Paths.ChunksDir = filepath.Join(root, "semantic_chunks")
	cfg.Ingest.TestQueries = []string{"identity"}
	require.NoError(t, helper.CreateFolder(cfg.RAG.ChromemPath))
	return &cfg
}

func TestRunInsertWithChromem(t *testing.T) {
	ctx := context.Background()
	cfg := chromemConfig(t)

	book := models.BookChunks{BookName: "papalia_human_development_cleaned", ChunkingMethod: models.ChunkingMethodSemantic}
	for i := 0; i < 12; i++ {
		book.Chunks = append(book.Chunks, models.ChunkRecord{ChunkID: i, Text: "identity develops across adolescence, part " + string(rune('a'+i))})
	}
	book.TotalChunks = len(book.Chunks)
	require.NoError(t, helper.WriteJSONFile(filepath.Join(cfg.Paths.ChunksDir, book.BookName+models.SemanticChunksSuffix), book))

	var out bytes.Buffer
	require.NoError(t, runInsert(ctx, &out, cfg, newPipeline(cfg, stubEmbedder{}), stubEmbedder{}))
	assert.Contains(t, out.String(), "Successfully inserted: 12")
	assert.Contains(t, out.String(), "Failed batches: 0")
	assert.Contains(t, out.String(), `Search results for: "identity"`)
	assert.Contains(t, out.String(), "Book: "+ingest.ShortBookID(book.BookName)+" |")

	// the in-memory collection was exported on close and is imported again
	_, err := os.Stat(filepath.Join(cfg.RAG.ChromemPath, cfg.RAG.TableName+".chromem"))
	require.NoError(t, err)
	store, closeStore, err := openStore(ctx, cfg, cfg.RAG.TableName)
	require.NoError(t, err)
	defer closeStore()
	res, err := store.Query(ctx, []float32{40, 1}, 3)
	require.NoError(t, err)
	assert.Len(t, res, 3)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.RAG.Backend = "faiss"
	_, _, err := openStore(context.Background(), &cfg, "t")
	assert.Error(t, err)
}

func TestOpenStorePgvectorRejectsSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{URL: ":memory:", Driver: "sqlite"}
	_, _, err := openStore(context.Background(), &cfg, "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres driver")
}

func TestOpenSummariesWithoutDatabase(t *testing.T) {
	cfg := config.Default()
	store, closeFn, err := openSummaries(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Nil(t, store)
	closeFn()
}
