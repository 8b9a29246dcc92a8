package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

var ErrSummaryNotFound = errors.New("no summary found")

// SessionSummary is the compressed record of one counselling session.
type SessionSummary struct {
	bun.BaseModel `bun:"table:session_summaries,alias:ss"`
	SessionID     string    `bun:"session_id,pk"`
	UserID        string    `bun:"user_id,notnull"`
	Summary       string    `bun:"summary,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

type SummaryStore struct {
	db *bun.DB
}

func NewSummaryStore(db *bun.DB) *SummaryStore {
	return &SummaryStore{db: db}
}

func (s *SummaryStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*SessionSummary)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session_summaries: %w", err)
	}
	return nil
}

// Save stores the summary, replacing any earlier one for the same session.
func (s *SummaryStore) Save(ctx context.Context, summary *SessionSummary) error {
	if summary.SessionID == "" || summary.UserID == "" {
		return fmt.Errorf("session id and user id are required")
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NewInsert().
		Model(summary).
		On("CONFLICT (session_id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("summary = EXCLUDED.summary").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save summary for session %s: %w", summary.SessionID, err)
	}
	return nil
}

// Latest returns the most recent summary written for userID.
func (s *SummaryStore) Latest(ctx context.Context, userID string) (*SessionSummary, error) {
	summary := new(SessionSummary)
	err := s.db.NewSelect().
		Model(summary).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w for user %s", ErrSummaryNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load summary for user %s: %w", userID, err)
	}
	return summary, nil
}
