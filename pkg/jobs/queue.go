package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status describes where a job is in its lifecycle.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrQueueClosed is returned when enqueueing on a queue that is not running.
var ErrQueueClosed = errors.New("queue is not running")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Job represents a queued background task.
type Job struct {
	ID         string
	Kind       string
	Payload    interface{}
	Attempt    int
	EnqueuedAt time.Time
}

// Record is the externally visible state of a job.
type Record struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// RecordTTL bounds how long finished job records stay queryable.
	RecordTTL time.Duration
	Logger    *zap.Logger
}

// Queue is an in-memory worker pool that remembers job outcomes.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	records map[string]*Record
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
		records: make(map[string]*Record),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue schedules a job and returns its identifier.
func (q *Queue) Enqueue(job Job) (string, error) {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return "", fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	q.pruneLocked(job.EnqueuedAt)
	q.records[job.ID] = &Record{
		ID:         job.ID,
		Kind:       job.Kind,
		Status:     StatusQueued,
		EnqueuedAt: job.EnqueuedAt,
		UpdatedAt:  job.EnqueuedAt,
	}
	ctx := q.ctx
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		q.finish(job, StatusFailed, ctx.Err())
		return "", fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	case q.jobs <- job:
		return job.ID, nil
	}
}

// Status reports the last known state of a job.
func (q *Queue) Status(id string) (Record, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	rec, ok := q.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(job)
		}
	}
}

func (q *Queue) run(job Job) {
	for {
		job.Attempt++
		q.update(job.ID, func(r *Record) {
			r.Status = StatusRunning
			r.Attempts = job.Attempt
		})

		err := q.handler(q.ctx, job)
		if err == nil {
			q.finish(job, StatusSucceeded, nil)
			return
		}
		var permanent *permanentError
		if errors.As(err, &permanent) || job.Attempt > q.cfg.MaxRetries {
			q.logger.Error("job failed permanently", zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Int("attempts", job.Attempt), zap.Error(err))
			q.finish(job, StatusFailed, err)
			return
		}
		q.logger.Warn("job failed, retrying", zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Int("attempt", job.Attempt), zap.Error(err))

		timer := time.NewTimer(q.cfg.RetryDelay * time.Duration(job.Attempt))
		select {
		case <-q.ctx.Done():
			timer.Stop()
			q.finish(job, StatusFailed, q.ctx.Err())
			return
		case <-timer.C:
		}
	}
}

func (q *Queue) finish(job Job, status Status, err error) {
	q.update(job.ID, func(r *Record) {
		r.Status = status
		if err != nil {
			r.Error = err.Error()
		}
	})
}

func (q *Queue) update(id string, fn func(*Record)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return
	}
	fn(rec)
	rec.UpdatedAt = time.Now().UTC()
}

func (q *Queue) pruneLocked(now time.Time) {
	for id, rec := range q.records {
		if rec.Status != StatusSucceeded && rec.Status != StatusFailed {
			continue
		}
		if now.Sub(rec.UpdatedAt) > q.cfg.RecordTTL {
			delete(q.records, id)
		}
	}
}
