// Package queue holds plan jobs waiting for a solver worker.
//
// The queue is bounded; a full queue rejects new jobs immediately so the
// caller can push back on the client instead of piling up solves.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/coachplan/internal/domain/optimizer"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/pkg/metrics"
)

const defaultQueueCapacity = 1024

var (
	ErrFull   = errors.New("plan queue full")
	ErrClosed = errors.New("plan queue closed")
)

// Job is one accepted plan request. Rules is the table the problem's
// requirements were computed under; the solve uses the same snapshot.
type Job struct {
	PlanID      string
	Fingerprint string
	Problem     optimizer.Problem
	Rules       *rules.Table
	EnqueuedAt  time.Time
}

// Queue provides non-blocking enqueue and competing-consumer dequeue.
type Queue interface {
	// Enqueue adds a job without blocking.
	// Returns ErrFull or ErrClosed when the job was not enqueued.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue blocks until a job is available and hands it to exactly one
	// caller. Jobs stay in the queue until a caller is ready for them.
	// Returns ErrClosed once the queue is closed and drained, or ctx.Err().
	Dequeue(ctx context.Context) (Job, error)

	// Drain removes and returns the jobs still queued without blocking.
	Drain() []Job

	// Len returns the current number of queued jobs.
	Len() int

	// Close stops accepting jobs. Jobs already queued are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// Option configures an InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the number of pending jobs; non-positive keeps the default.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error { //nolint:gocritic // Job is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return err
	}
	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case j, ok := <-q.jobs:
		if !ok {
			return Job{}, ErrClosed
		}
		metrics.RecordQueueDequeue()
		q.observe()
		return j, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (q *InMemoryQueue) Drain() []Job {
	var out []Job
	for {
		select {
		case j, ok := <-q.jobs:
			if !ok {
				q.observe()
				return out
			}
			metrics.RecordQueueDequeue()
			out = append(out, j)
		default:
			q.observe()
			return out
		}
	}
}

func (q *InMemoryQueue) Len() int {
	q.observe()
	return len(q.jobs)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
