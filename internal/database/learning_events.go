package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/google/uuid"
)

// LearningEventRepository keeps an append-only log of applied learning events
type LearningEventRepository struct {
	db *DB
}

// NewLearningEventRepository creates a new learning event repository
func NewLearningEventRepository(db *DB) *LearningEventRepository {
	return &LearningEventRepository{db: db}
}

// Append stores ev under id. Re-delivered events with a known id are ignored.
func (r *LearningEventRepository) Append(ctx context.Context, id uuid.UUID, ev models.LearningEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal learning event: %w", err)
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	query := `
		INSERT INTO learning_events (id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, id, string(ev.Type), payload, occurred); err != nil {
		return fmt.Errorf("failed to append learning event: %w", err)
	}
	return nil
}

// CountSince returns how many events of type t occurred at or after since
func (r *LearningEventRepository) CountSince(ctx context.Context, t models.LearningEventType, since time.Time) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM learning_events WHERE event_type = $1 AND occurred_at >= $2`
	if err := r.db.QueryRowContext(ctx, query, string(t), since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count learning events: %w", err)
	}
	return n, nil
}
