package config

import (
	"fmt"
	"strings"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// CredentialSource is an ordered list of environment variables tried in turn.
type CredentialSource struct {
	Name    string
	EnvVars []string
}

var (
	EmbeddingKeySource = CredentialSource{Name: "embedding API key", EnvVars: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}}
	ChatKeySource      = CredentialSource{Name: "chat model API key", EnvVars: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY"}}
	DatabaseURLSource  = CredentialSource{Name: "database connection string", EnvVars: []string{"TIDB_DATABASE_URL", "DATABASE_URL"}}
	BooksDirSource     = CredentialSource{Name: "books folder", EnvVars: []string{"BOOKS_DIR"}}
	CleanedDirSource   = CredentialSource{Name: "cleaned books folder", EnvVars: []string{"CLEANED_BOOKS_DIR"}}
	ChunksDirSource    = CredentialSource{Name: "semantic chunks folder", EnvVars: []string{"SEMANTIC_CHUNKS_DIR"}}
)

// Resolve returns the first non-empty value among the source's variables.
func (s CredentialSource) Resolve(lookup LookupFunc) (string, bool) {
	for _, name := range s.EnvVars {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Requirement names a credential a command cannot run without.
type Requirement int

const (
	RequireEmbeddingKey Requirement = iota
	RequireChatKey
	RequireDatabaseURL
)

// check resolves the credential into cfg. Environment sources win; the value
// from the config file is the last fallback.
func (r Requirement) check(cfg *Config, lookup LookupFunc) error {
	switch r {
	case RequireEmbeddingKey:
		if !cfg.EmbedLLM.NeedsKey() {
			return nil
		}
		return resolveInto(&cfg.EmbedLLM.Key, EmbeddingKeySource, lookup)
	case RequireChatKey:
		if !cfg.ChatLLM.NeedsKey() {
			return nil
		}
		return resolveInto(&cfg.ChatLLM.Key, ChatKeySource, lookup)
	case RequireDatabaseURL:
		if cfg.RAG.Backend == "chromem" && cfg.Database.URL == "" {
			return nil
		}
		return resolveInto(&cfg.Database.URL, DatabaseURLSource, lookup)
	}
	return fmt.Errorf("unknown requirement %d", r)
}

func resolveInto(dst *string, src CredentialSource, lookup LookupFunc) error {
	if v, ok := src.Resolve(lookup); ok {
		*dst = v
		return nil
	}
	if strings.TrimSpace(*dst) != "" {
		return nil
	}
	return fmt.Errorf("%w: %s (set one of %s)", ErrMissingCredential, src.Name, strings.Join(src.EnvVars, ", "))
}
