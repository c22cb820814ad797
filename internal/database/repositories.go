package database

import (
	"context"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/google/uuid"
)

// ProfileRepositoryInterface is the profile persistence used by the orchestrator and handlers
type ProfileRepositoryInterface interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error
	DeleteProfile(ctx context.Context, userID string) error
}

// LearningEventRepositoryInterface is the audit log written by the worker
type LearningEventRepositoryInterface interface {
	Append(ctx context.Context, id uuid.UUID, ev models.LearningEvent) error
	CountSince(ctx context.Context, t models.LearningEventType, since time.Time) (int, error)
}

// Ensure concrete types implement the interfaces
var (
	_ ProfileRepositoryInterface       = (*ProfileRepository)(nil)
	_ LearningEventRepositoryInterface = (*LearningEventRepository)(nil)
)
