package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/smart-coach/internal/models"
)

func receive(t *testing.T, msgs <-chan MessageInterface) MessageInterface {
	t.Helper()
	select {
	case m := <-msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestMemoryQueue_Delivery(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := NewLearningEventJob(usageEvent())
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}
	msgs, _, err := q.Consume(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	first := receive(t, msgs)
	if first.GetJob().ID != job.ID {
		t.Errorf("job id = %s, want %s", first.GetJob().ID, job.ID)
	}
	if err := first.Nack(true); err != nil {
		t.Fatal(err)
	}

	second := receive(t, msgs)
	if second.GetJob().ID != job.ID {
		t.Error("requeued job not redelivered")
	}
	if err := second.Nack(false); err != nil {
		t.Fatal(err)
	}
	_ = second.Nack(true)

	if dl := q.DeadLetters(); len(dl) != 1 || dl[0].ID != job.ID {
		t.Errorf("DeadLetters() = %v", dl)
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() = %d, second Nack must be ignored", q.Pending())
	}
}

func TestMemoryQueue_ExpiredJobsAreDeadLettered(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(2)
	past := time.Now().Add(-time.Minute)
	expired := NewLearningEventJob(usageEvent())
	expired.NotAfter = &past
	live := NewLearningEventJob(usageEvent())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, j := range []*Job{expired, live} {
		if err := q.Enqueue(ctx, j); err != nil {
			t.Fatal(err)
		}
	}
	msgs, _, _ := q.Consume(ctx, 1)
	if got := receive(t, msgs).GetJob().ID; got != live.ID {
		t.Errorf("delivered %s, want the live job", got)
	}
	if dl := q.DeadLetters(); len(dl) != 1 || dl[0].ID != expired.ID {
		t.Errorf("DeadLetters() = %v", dl)
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)
	if err := q.HealthCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = q.Close()
	if err := q.Enqueue(context.Background(), NewLearningEventJob(usageEvent())); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() after Close = %v", err)
	}
	if err := q.HealthCheck(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("HealthCheck() after Close = %v", err)
	}
}

func TestMemoryQueue_EnqueueRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)
	if err := q.Enqueue(context.Background(), NewLearningEventJob(usageEvent())); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, NewLearningEventJob(usageEvent())); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Enqueue() on full queue = %v", err)
	}
	if err := q.Enqueue(context.Background(), NewLearningEventJob(models.LearningEvent{})); !models.IsValidationError(err) {
		t.Errorf("Enqueue() invalid job = %v", err)
	}
}

func TestEventPublisher(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)
	p := NewEventPublisher(q)
	if err := p.Publish(context.Background(), usageEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if q.Pending() != 1 {
		t.Errorf("Pending() = %d", q.Pending())
	}
	_ = q.Close()
	if err := p.Publish(context.Background(), usageEvent()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Publish() after Close = %v", err)
	}
}
