package queue

import (
	"fmt"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeLearningEvent applies one learning event to the optimizer
	JobTypeLearningEvent JobType = "learning_event"
)

// DefaultMaxRetries is how often a failing job is redelivered before it is dead-lettered
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID            `json:"id"`
	Type       JobType              `json:"type"`
	Event      models.LearningEvent `json:"event"`
	NotAfter   *time.Time           `json:"not_after,omitempty"` // nil = no expiration
	CreatedAt  time.Time            `json:"created_at"`
	RetryCount int                  `json:"retry_count"`
	MaxRetries int                  `json:"max_retries"`
}

// NewLearningEventJob wraps ev in a job
func NewLearningEventJob(ev models.LearningEvent) *Job {
	now := time.Now()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeLearningEvent,
		Event:      ev,
		CreatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate checks the job carries a usable payload for its type
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return models.NewValidationError("ID", "is required")
	}
	switch j.Type {
	case JobTypeLearningEvent:
		if j.Event.Type == "" {
			return models.NewValidationError("Event.Type", "is required")
		}
		return nil
	default:
		return models.NewValidationError("Type", fmt.Sprintf("unknown job type %q", j.Type))
	}
}

// IsExpired reports whether the job's deadline has passed at now
func (j *Job) IsExpired(now time.Time) bool {
	return j.NotAfter != nil && now.After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
