package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when a required credential cannot be resolved
// from any of its sources. It aborts a command before any processing starts.
var ErrMissingCredential = errors.New("missing required credential")

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Paths    PathsConfig    `yaml:"paths"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Calendar CalendarConfig `yaml:"calendar"`
}

type DatabaseConfig struct {
	URL    string `yaml:"url"`
	Driver string `yaml:"driver"` // pgdriver, pq or sqlite
	Debug  bool   `yaml:"debug"`
}

type LLMConfig struct {
	Provider          string        `yaml:"provider"` // gemini, openai or ollama
	BaseURL           string        `yaml:"base_url"`
	Key               string        `yaml:"key"`
	Model             string        `yaml:"model"`
	Dimension         int           `yaml:"dimension"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

type RAGConfig struct {
	Backend           string `yaml:"backend"` // pgvector or chromem
	TableName         string `yaml:"table_name"`
	ConversationTable string `yaml:"conversation_table"`
	ChromemPath       string `yaml:"chromem_path"`
	InMemory          bool   `yaml:"in_memory"`
	EncryptionKey     string `yaml:"encryption_key"`
	TopK              int    `yaml:"top_k"`
}

type PathsConfig struct {
	BooksDir   string `yaml:"books_dir"`
	CleanedDir string `yaml:"cleaned_dir"`
	ChunksDir  string `yaml:"chunks_dir"`
}

type ChunkingConfig struct {
	WindowSize          int     `yaml:"window_size"`
	MinChunkSize        int     `yaml:"min_chunk_size"`
	MaxChunkSize        int     `yaml:"max_chunk_size"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type IngestConfig struct {
	BatchSize        int           `yaml:"batch_size"`
	BatchTimeout     time.Duration `yaml:"batch_timeout"`
	EmbedConcurrency int           `yaml:"embed_concurrency"`
	RecreateTable    bool          `yaml:"recreate_table"`
	TestQueries      []string      `yaml:"test_queries"`
}

type CalendarConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Driver: "pgdriver"},
		EmbedLLM: LLMConfig{
			Provider:          "gemini",
			BaseURL:           "https://generativelanguage.googleapis.com/v1beta",
			Model:             "gemini-embedding-001",
			Dimension:         3072,
			RequestsPerSecond: 5,
			Burst:             5,
			Timeout:           60 * time.Second,
		},
		ChatLLM: LLMConfig{
			Provider: "openai",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:    "gemini-2.5-flash",
			Timeout:  120 * time.Second,
		},
		RAG: RAGConfig{
			Backend:           "pgvector",
			TableName:         "semantic_chunks_dataset",
			ConversationTable: "conversation_dataset",
			ChromemPath:       "./chromemdb",
			TopK:              2,
		},
		Paths: PathsConfig{
			BooksDir:   "books",
			CleanedDir: "cleaned_books",
			ChunksDir:  "semantic_chunks",
		},
		Chunking: ChunkingConfig{
			WindowSize:          3,
			MinChunkSize:        100,
			MaxChunkSize:        1000,
			SimilarityThreshold: 0.75,
		},
		Ingest: IngestConfig{
			BatchSize:        10,
			BatchTimeout:     2 * time.Minute,
			EmbedConcurrency: 1,
			RecreateTable:    true,
			TestQueries: []string{
				"personality development and individual traits",
				"adolescent identity formation and self-concept",
				"moral reasoning and ethical development",
			},
		},
		Calendar: CalendarConfig{
			BaseURL: "https://tidb-mcp-lk94.onrender.com",
			Timeout: 30 * time.Second,
		},
	}
}

// LoadConfig reads the YAML file at path on top of Default, applies environment
// overrides and resolves the credentials listed in required. A missing file is
// not an error; a malformed one is.
func LoadConfig(path string, lookup LookupFunc, required ...Requirement) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}
	applyEnv(&cfg, lookup)

	for _, req := range required {
		if err := req.check(&cfg, lookup); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup LookupFunc) {
	if v, ok := BooksDirSource.Resolve(lookup); ok {
		cfg.Paths.BooksDir = v
	}
	if v, ok := CleanedDirSource.Resolve(lookup); ok {
		cfg.Paths.CleanedDir = v
	}
	if v, ok := ChunksDirSource.Resolve(lookup); ok {
		cfg.Paths.ChunksDir = v
	}
}

// NeedsKey reports whether the provider authenticates with an API key.
func (c LLMConfig) NeedsKey() bool {
	return !strings.EqualFold(c.Provider, "ollama")
}
