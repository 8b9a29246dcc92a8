package chromemdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"aura-rag/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// VectorDBManager keeps chunk documents in one chromem-go collection.
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	dbPath         string
	compress       bool
	encryptionKey  string
	filePath       string
}

const (
	compress = false
)

// NewVectorDBManager opens (or creates) the database at dbPath and the named
// collection in it. With inMemory set nothing is written to disk until Export.
func NewVectorDBManager(dbPath, collectionName string, inMemory bool, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:             db,
		collectionName: collectionName,
		dbPath:         dbPath,
		compress:       compress,
		encryptionKey:  encryptionKey,
		filePath:       filepath.Join(dbPath, collectionName+".chromem"),
	}
	if _, err := m.getOrCreateCollection(); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) getOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Insert upserts docs; an existing id is overwritten.
func (m *VectorDBManager) Insert(ctx context.Context, docs []models.PersistedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		if len(d.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", d.ID)
		}
		chromemDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Text,
			Metadata:  stringifyMetadata(d.Metadata),
			Embedding: d.Embedding,
		}
	}

	if err := m.collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query returns up to k documents nearest to embedding. k is clamped to the
// collection size.
func (m *VectorDBManager) Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	k = min(k, m.collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.SearchResult, len(results))
	for i, r := range results {
		out[i] = models.SearchResult{
			ID:       r.ID,
			Document: r.Content,
			Metadata: parseMetadata(r.Metadata),
			Distance: 1 - float64(r.Similarity),
		}
	}
	return out, nil
}

// Count returns the number of stored documents.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// Reset drops the collection and creates it again empty.
func (m *VectorDBManager) Reset(ctx context.Context) error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	_, err := m.getOrCreateCollection()
	return err
}

// Export writes the collection to <dbPath>/<collection>.chromem, encrypted
// when an encryption key is configured.
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}
	log.Debug().Str("collection", m.collectionName).Str("file", m.filePath).Bool("encrypted", m.encryptionKey != "").Msg("exporting collection")

	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// HasExport reports whether an export file exists for the collection.
func (m *VectorDBManager) HasExport() bool {
	if m.dbPath == "" {
		return false
	}
	_, err := os.Stat(m.filePath)
	return err == nil
}

// Import replaces the collection with the content of the export file.
func (m *VectorDBManager) Import(ctx context.Context) error {
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(m.collectionName, nil)
	if c == nil {
		return fmt.Errorf("collection %s not found in %s", m.collectionName, m.filePath)
	}
	m.collection = c
	return nil
}

func stringifyMetadata(md map[string]any) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		switch t := v.(type) {
		case string:
			out[k] = t
		case int:
			out[k] = strconv.Itoa(t)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}

var integerFields = map[string]bool{
	"chunk_id":                true,
	"word_count":              true,
	"char_count":              true,
	"original_indices_count":  true,
	"similarity_scores_count": true,
}

// parseMetadata restores the integer fields written by stringifyMetadata.
func parseMetadata(md map[string]string) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		if integerFields[k] {
			if n, err := strconv.Atoi(v); err == nil {
				out[k] = n
				continue
			}
		}
		out[k] = v
	}
	return out
}
