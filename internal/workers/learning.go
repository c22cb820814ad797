package workers

import (
	"context"
	"fmt"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventApplier folds a learning event into the optimizer state
type EventApplier interface {
	Apply(ev models.LearningEvent) error
}

// EventLog persists applied events
type EventLog interface {
	Append(ctx context.Context, id uuid.UUID, ev models.LearningEvent) error
}

// LearningProcessor consumes learning_event jobs
type LearningProcessor struct {
	applier  EventApplier
	eventLog EventLog
	jobQueue queue.JobQueue
	logger   *zap.Logger
}

// NewLearningProcessor creates a processor. eventLog may be nil when no
// database is configured.
func NewLearningProcessor(applier EventApplier, eventLog EventLog, jobQueue queue.JobQueue, logger *zap.Logger) *LearningProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LearningProcessor{
		applier:  applier,
		eventLog: eventLog,
		jobQueue: jobQueue,
		logger:   logger.Named("learning_worker"),
	}
}

// Run consumes jobs until ctx is cancelled or the delivery channel closes
func (p *LearningProcessor) Run(ctx context.Context, prefetch int) error {
	msgChan, errChan, err := p.jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			p.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				p.logger.Info("message_channel_closed")
				return nil
			}
			if err := p.ProcessJob(ctx, msg); err != nil {
				p.logger.Error("job_failed",
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)),
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessJob handles one delivery and settles it. Invalid events go straight
// to the DLQ; other failures are re-enqueued until the retry budget is spent.
func (p *LearningProcessor) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.Type != queue.JobTypeLearningEvent {
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err := p.process(ctx, job); err != nil {
		return p.handleJobError(ctx, msg, job, err)
	}
	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	p.logger.Debug("learning_event_applied",
		zap.String("job_id", job.ID.String()),
		zap.String("event_type", string(job.Event.Type)),
	)
	return nil
}

// process logs before applying so a redelivery after a log failure does not
// count the event twice
func (p *LearningProcessor) process(ctx context.Context, job *queue.Job) error {
	if p.eventLog != nil {
		if err := p.eventLog.Append(ctx, job.ID, job.Event); err != nil {
			return err
		}
	}
	return p.applier.Apply(job.Event)
}

func (p *LearningProcessor) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if models.IsValidationError(err) || !job.CanRetry() {
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("learning event dead-lettered after %d retries: %w", job.RetryCount, err)
	}

	retry := *job
	retry.IncrementRetry()
	if enqErr := p.jobQueue.Enqueue(ctx, &retry); enqErr != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			p.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue job: %w", enqErr)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Warn("ack_failed", zap.Error(ackErr))
	}
	p.logger.Info("learning_event_retry_scheduled",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", retry.RetryCount),
		zap.Error(err),
	)
	return err
}
