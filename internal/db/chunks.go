package db

import (
	"context"
	"fmt"

	"aura-rag/internal/embedding"
	"aura-rag/internal/models"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

// ChunkDocument is one row of the chunk table. The table name is configurable,
// so queries always go through ModelTableExpr.
type ChunkDocument struct {
	bun.BaseModel `bun:"table:chunk_documents,alias:cd"`
	ID            string          `bun:"id,pk"`
	Content       string          `bun:"content,notnull"`
	Metadata      map[string]any  `bun:"metadata,type:jsonb"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Distance      float64         `bun:"distance,scanonly"`
}

// ChunkStore keeps embedded chunks in a pgvector table and ranks them by
// cosine distance.
type ChunkStore struct {
	db        *bun.DB
	table     string
	dimension int
}

// NewChunkStore binds a store to table. A positive dimension makes Insert and
// Query reject vectors of any other length.
func NewChunkStore(db *bun.DB, table string, dimension int) *ChunkStore {
	return &ChunkStore{db: db, table: table, dimension: dimension}
}

func (s *ChunkStore) Table() string {
	return s.table
}

// Init creates the vector extension and the table when they are missing.
func (s *ChunkStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := s.createQuery().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Reset drops the table and creates it again.
func (s *ChunkStore) Reset(ctx context.Context) error {
	if _, err := s.dropQuery().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", s.table, err)
	}
	log.Info().Str("table", s.table).Msg("dropped chunk table")
	return s.Init(ctx)
}

// Insert upserts docs by id.
func (s *ChunkStore) Insert(ctx context.Context, docs []models.PersistedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]ChunkDocument, 0, len(docs))
	for _, d := range docs {
		if err := s.checkDimension(d.Embedding); err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
		rows = append(rows, ChunkDocument{
			ID:        d.ID,
			Content:   d.Text,
			Metadata:  d.Metadata,
			Embedding: pgvector.NewVector(d.Embedding),
		})
	}
	if _, err := s.insertQuery(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert %d chunks into %s: %w", len(rows), s.table, err)
	}
	return nil
}

// Query returns the k nearest chunks, closest first.
func (s *ChunkStore) Query(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := s.checkDimension(vector); err != nil {
		return nil, err
	}

	var rows []ChunkDocument
	if err := s.selectQuery(&rows, vector, k).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}

	results := make([]models.SearchResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, models.SearchResult{
			ID:       r.ID,
			Document: r.Content,
			Metadata: r.Metadata,
			Distance: r.Distance,
		})
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().
		Model((*ChunkDocument)(nil)).
		ModelTableExpr("? AS cd", bun.Ident(s.table)).
		Count(ctx)
}

func (s *ChunkStore) createQuery() *bun.CreateTableQuery {
	return s.db.NewCreateTable().
		Model((*ChunkDocument)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfNotExists()
}

func (s *ChunkStore) dropQuery() *bun.DropTableQuery {
	return s.db.NewDropTable().
		Model((*ChunkDocument)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfExists()
}

func (s *ChunkStore) insertQuery(rows *[]ChunkDocument) *bun.InsertQuery {
	return s.db.NewInsert().
		Model(rows).
		ModelTableExpr("? AS cd", bun.Ident(s.table)).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("metadata = EXCLUDED.metadata").
		Set("embedding = EXCLUDED.embedding")
}

func (s *ChunkStore) selectQuery(rows *[]ChunkDocument, vector []float32, k int) *bun.SelectQuery {
	vec := pgvector.NewVector(vector)
	return s.db.NewSelect().
		Model(rows).
		ModelTableExpr("? AS cd", bun.Ident(s.table)).
		Column("id", "content", "metadata").
		ColumnExpr("embedding <=> ? AS distance", vec).
		OrderExpr("embedding <=> ?", vec).
		Limit(k)
}

func (s *ChunkStore) checkDimension(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("empty embedding")
	}
	if s.dimension > 0 && len(v) != s.dimension {
		return fmt.Errorf("%w: got %d, table %s expects %d", embedding.ErrDimensionMismatch, len(v), s.table, s.dimension)
	}
	return nil
}
