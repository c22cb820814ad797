package queue

import (
	"context"
	"fmt"

	"github.com/benvon/smart-coach/internal/models"
)

// EventPublisher turns learning events into queue jobs. It satisfies the
// orchestrator's event sink so the API can hand learning off to the worker.
type EventPublisher struct {
	queue JobQueue
}

// NewEventPublisher creates a publisher on q
func NewEventPublisher(q JobQueue) *EventPublisher {
	return &EventPublisher{queue: q}
}

// Publish enqueues ev as a learning_event job
func (p *EventPublisher) Publish(ctx context.Context, ev models.LearningEvent) error {
	if err := p.queue.Enqueue(ctx, NewLearningEventJob(ev)); err != nil {
		return fmt.Errorf("failed to enqueue learning event: %w", err)
	}
	return nil
}
