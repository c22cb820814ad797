package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryQueue is an in-process JobQueue used when RabbitMQ is not configured.
// Nacked messages with requeue go to the back of the queue; without requeue
// they are kept in DeadLetters.
type MemoryQueue struct {
	mu          sync.Mutex
	jobs        chan *Job
	deadLetters []*Job
	closed      bool
}

var _ JobQueue = (*MemoryQueue)(nil)

// ErrQueueClosed is returned by Enqueue after Close
var ErrQueueClosed = errors.New("queue is closed")

// NewMemoryQueue creates a queue holding at most capacity pending jobs
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{jobs: make(chan *Job, capacity)}
}

// Enqueue blocks until there is room, ctx is done, or the queue is closed
func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	cp := *job
	select {
	case q.jobs <- &cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers pending jobs until ctx is cancelled
func (q *MemoryQueue) Consume(ctx context.Context, prefetchCount int) (<-chan MessageInterface, <-chan error, error) {
	if prefetchCount <= 0 {
		prefetchCount = 1
	}
	msgChan := make(chan MessageInterface, prefetchCount)
	errChan := make(chan error)
	go func() {
		defer close(msgChan)
		defer close(errChan)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-q.jobs:
				if job.IsExpired(time.Now()) {
					q.deadLetter(job)
					continue
				}
				select {
				case msgChan <- &memoryMessage{job: job, queue: q}:
				case <-ctx.Done():
					q.requeue(job)
					return
				}
			}
		}
	}()
	return msgChan, errChan, nil
}

// DeadLetters returns the jobs nacked without requeue
func (q *MemoryQueue) DeadLetters() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Job(nil), q.deadLetters...)
}

// Pending returns the number of jobs waiting for delivery
func (q *MemoryQueue) Pending() int {
	return len(q.jobs)
}

// Close rejects further enqueues
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// HealthCheck fails after Close
func (q *MemoryQueue) HealthCheck(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

func (q *MemoryQueue) deadLetter(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetters = append(q.deadLetters, job)
}

func (q *MemoryQueue) requeue(job *Job) {
	select {
	case q.jobs <- job:
	default:
		q.deadLetter(job)
	}
}

// memoryMessage honours only the first Ack or Nack
type memoryMessage struct {
	job     *Job
	queue   *MemoryQueue
	settled atomic.Bool
}

func (m *memoryMessage) Ack() error {
	m.settled.Store(true)
	return nil
}

func (m *memoryMessage) Nack(requeue bool) error {
	if !m.settled.CompareAndSwap(false, true) {
		return nil
	}
	if requeue {
		m.queue.requeue(m.job)
	} else {
		m.queue.deadLetter(m.job)
	}
	return nil
}

func (m *memoryMessage) GetJob() *Job {
	return m.job
}
