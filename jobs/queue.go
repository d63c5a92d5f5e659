package jobs

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/answerit/core"
)

// Task is the unit of work a job executes. A returned error marked with
// Permanent fails the job immediately; any other error is retried per the
// queue's retry policy.
type Task func(ctx context.Context) error

// RetryPolicy controls how task failures are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy gives transient failures three chances with short,
// capped backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// execution pairs a live job record with its task.
type execution struct {
	job  *Job
	task Task
	done chan struct{}
}

// Queue runs tasks on worker pools and tracks their lifecycle. Ingest jobs
// for the same document run one at a time in submission order; everything
// else runs with full pool concurrency.
type Queue struct {
	ingestPool *ants.Pool
	answerPool *ants.Pool
	ingestSize int
	answerSize int
	retry      RetryPolicy
	logger     *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*execution
	perDoc  map[core.ID][]*execution // head is running, rest are pending
	closed  bool
	baseCtx context.Context
	cancel  context.CancelFunc
}

// Option configures a Queue.
type Option func(*Queue) error

// WithPoolSize sets the same worker pool size for both pools.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(q *Queue) error {
		if size < 1 {
			size = 1
		}
		q.ingestSize = size
		q.answerSize = size
		return nil
	}
}

// WithPoolSizes sizes the ingest and answer pools independently, so ingest
// capacity can be tuned without touching answer capacity and vice versa.
func WithPoolSizes(ingest, answer int) Option {
	return func(q *Queue) error {
		if ingest < 1 {
			ingest = 1
		}
		if answer < 1 {
			answer = 1
		}
		q.ingestSize = ingest
		q.answerSize = answer
		return nil
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(q *Queue) error {
		if policy.MaxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		q.retry = policy
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		if logger == nil {
			logger = slog.Default()
		}
		q.logger = logger
		return nil
	}
}

// NewQueue creates a job queue with separate pools for ingest and answer work.
func NewQueue(opts ...Option) (*Queue, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ingestSize: poolSize,
		answerSize: poolSize,
		retry:      DefaultRetryPolicy(),
		logger:     slog.Default().With("component", "jobs"),
		jobs:       make(map[string]*execution),
		perDoc:     make(map[core.ID][]*execution),
		baseCtx:    baseCtx,
		cancel:     cancel,
	}

	for _, opt := range opts {
		if optErr := opt(q); optErr != nil {
			q.Release()
			return nil, optErr
		}
	}

	ingestPool, err := ants.NewPool(q.ingestSize)
	if err != nil {
		q.Release()
		return nil, err
	}
	q.ingestPool = ingestPool

	answerPool, err := ants.NewPool(q.answerSize)
	if err != nil {
		q.Release()
		return nil, err
	}
	q.answerPool = answerPool

	return q, nil
}

// SubmitIngest queues document processing work. Jobs targeting the same
// document run strictly one at a time in submission order; jobs for
// different documents run concurrently.
func (q *Queue) SubmitIngest(documentID core.ID, task Task) (Job, error) {
	exec := &execution{
		job: &Job{
			ID:         newJobID(),
			Kind:       KindIngest,
			DocumentID: documentID,
			State:      StateQueued,
			CreatedAt:  time.Now().UTC(),
			UpdatedAt:  time.Now().UTC(),
		},
		task: task,
		done: make(chan struct{}),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Job{}, ErrQueueClosed
	}
	q.jobs[exec.job.ID] = exec
	q.perDoc[documentID] = append(q.perDoc[documentID], exec)
	dispatch := len(q.perDoc[documentID]) == 1
	snapshot := *exec.job
	q.mu.Unlock()

	if dispatch {
		if err := q.ingestPool.Submit(func() { q.runDocumentHead(documentID) }); err != nil {
			q.mu.Lock()
			q.perDoc[documentID] = q.perDoc[documentID][1:]
			if len(q.perDoc[documentID]) == 0 {
				delete(q.perDoc, documentID)
			}
			q.mu.Unlock()
			q.fail(exec, err)
			return Job{}, err
		}
	}
	return snapshot, nil
}

// SubmitAnswer queues question answering work. Answer jobs have no ordering
// constraints between each other.
func (q *Queue) SubmitAnswer(task Task) (Job, error) {
	exec := &execution{
		job: &Job{
			ID:        newJobID(),
			Kind:      KindAnswer,
			State:     StateQueued,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		},
		task: task,
		done: make(chan struct{}),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Job{}, ErrQueueClosed
	}
	q.jobs[exec.job.ID] = exec
	snapshot := *exec.job
	q.mu.Unlock()

	if err := q.answerPool.Submit(func() { q.run(exec) }); err != nil {
		q.fail(exec, err)
		return Job{}, err
	}
	return snapshot, nil
}

// runDocumentHead executes the head of a document's pending list, then keeps
// draining the list until it is empty. Runs on an ingest pool worker.
func (q *Queue) runDocumentHead(documentID core.ID) {
	for {
		q.mu.Lock()
		pending := q.perDoc[documentID]
		if len(pending) == 0 {
			delete(q.perDoc, documentID)
			q.mu.Unlock()
			return
		}
		exec := pending[0]
		q.mu.Unlock()

		q.run(exec)

		q.mu.Lock()
		q.perDoc[documentID] = q.perDoc[documentID][1:]
		if len(q.perDoc[documentID]) == 0 {
			delete(q.perDoc, documentID)
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
	}
}

// run executes a single job with retries and records the outcome. During the
// backoff sleep between attempts the job reads as Queued; no worker is
// executing it then.
func (q *Queue) run(exec *execution) {
	err := RetryWithBackoff(q.baseCtx, func() error {
		q.mu.Lock()
		exec.job.State = StateRunning
		exec.job.Attempts++
		exec.job.UpdatedAt = time.Now().UTC()
		q.mu.Unlock()

		taskErr := exec.task(q.baseCtx)
		if taskErr != nil && !IsPermanent(taskErr) {
			q.mu.Lock()
			if exec.job.Attempts < q.retry.MaxAttempts {
				exec.job.State = StateQueued
				exec.job.UpdatedAt = time.Now().UTC()
			}
			q.mu.Unlock()
		}
		return taskErr
	}, q.retry.MaxAttempts, q.retry.BaseDelay, q.retry.MaxDelay)

	q.mu.Lock()
	if err != nil {
		exec.job.State = StateFailed
		exec.job.Err = err.Error()
		q.logger.Error("job failed", "job", exec.job.ID, "kind", exec.job.Kind.String(),
			"attempts", exec.job.Attempts, "err", err)
	} else {
		exec.job.State = StateSucceeded
	}
	exec.job.UpdatedAt = time.Now().UTC()
	q.mu.Unlock()
	close(exec.done)
}

// fail marks a job failed outside the normal run path (pool submission
// errors).
func (q *Queue) fail(exec *execution, err error) {
	q.mu.Lock()
	exec.job.State = StateFailed
	exec.job.Err = err.Error()
	exec.job.UpdatedAt = time.Now().UTC()
	q.mu.Unlock()
	close(exec.done)
}

// Job returns a snapshot of the job with the given ID.
func (q *Queue) Job(id string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	exec, ok := q.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *exec.job, nil
}

// Wait blocks until the job with the given ID finishes or ctx is cancelled,
// returning the final snapshot.
func (q *Queue) Wait(ctx context.Context, id string) (Job, error) {
	q.mu.Lock()
	exec, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}

	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-exec.done:
	}
	return q.Job(id)
}

// Release cancels in-flight work and shuts down the pools.
// The queue should not be used after calling Release.
func (q *Queue) Release() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	if q.ingestPool != nil {
		q.ingestPool.Release()
	}
	if q.answerPool != nil {
		q.answerPool.Release()
	}
}
