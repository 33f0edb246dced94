package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buildforge/api/internal/model"
)

var ErrUnknownJobType = errors.New("unknown job type")

// WorkFunc executes one job. It reports intermediate progress through the
// queue's UpdateProgress and returns either a result or an error; the
// dispatcher records the terminal state.
type WorkFunc func(ctx context.Context, jobID string, payload model.JobPayload) (model.JobResult, error)

// Options tune the queue's retention sweep and per-job timeout.
type Options struct {
	Retention       time.Duration // jobs older than this (by UpdatedAt) are reaped
	CleanupInterval time.Duration
	JobTimeout      time.Duration // 0 means no timeout
}

// Queue is an in-memory job queue. Jobs are dispatched one at a time in
// creation order by a single goroutine started with Run, so at most one job
// is ever processing.
type Queue struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	pending []string

	workers map[model.JobType]WorkFunc

	wake chan struct{}
	opts Options

	now func() time.Time
}

// New creates a queue. Work functions are attached with Register before Run
// is called.
func New(opts Options) *Queue {
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 10 * time.Minute
	}
	return &Queue{
		jobs:    make(map[string]*model.Job),
		workers: make(map[model.JobType]WorkFunc),
		wake:    make(chan struct{}, 1),
		opts:    opts,
		now:     time.Now,
	}
}

// Register attaches the work function for a job type. Must be called before
// Run.
func (q *Queue) Register(jobType model.JobType, fn WorkFunc) {
	q.workers[jobType] = fn
}

// Run starts the dispatcher and the cleanup sweep. Both stop when ctx is
// canceled.
func (q *Queue) Run(ctx context.Context) {
	go q.dispatchLoop(ctx)
	go q.cleanupLoop(ctx)
}

// Create stores a new pending job and wakes the dispatcher. It never blocks
// on the job being picked up.
func (q *Queue) Create(jobType model.JobType, payload model.JobPayload) (string, error) {
	if _, ok := q.workers[jobType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	if payload == nil || payload.JobType() != jobType {
		return "", fmt.Errorf("payload does not match job type %s", jobType)
	}

	now := q.now()
	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    model.JobStatusPending,
		Progress:  0,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.pending = append(q.pending, job.ID)
	q.mu.Unlock()

	q.notify()
	return job.ID, nil
}

// Get returns a snapshot of the job. The second return value is false if the
// id is unknown or the job has been reaped.
func (q *Queue) Get(jobID string) (model.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return model.Job{}, false
	}
	return *job, true
}

// UpdateProgress advances a job's progress and current step. Progress only
// moves forward and is clamped to [0,100]. Unknown ids are ignored.
func (q *Queue) UpdateProgress(jobID string, progress int, step string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if step != "" {
		job.CurrentStep = step
	}
	job.UpdatedAt = q.now()
}

// Complete marks a job completed with its result and forces progress to 100.
func (q *Queue) Complete(jobID string, result model.JobResult) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = model.JobStatusCompleted
	job.Progress = 100
	job.CurrentStep = ""
	job.Result = result
	job.Error = nil
	job.UpdatedAt = q.now()
}

// Fail marks a job failed with the given message.
func (q *Queue) Fail(jobID string, errMsg string) {
	if errMsg == "" {
		errMsg = "Unknown error"
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = model.JobStatusFailed
	job.CurrentStep = ""
	job.Error = &errMsg
	job.Result = nil
	job.UpdatedAt = q.now()
}

// Cleanup removes every job whose UpdatedAt is older than the retention
// window, except jobs that are still processing. It returns the number of
// jobs removed.
func (q *Queue) Cleanup() int {
	cutoff := q.now().Add(-q.opts.Retention)

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, job := range q.jobs {
		if job.Status == model.JobStatusProcessing {
			continue
		}
		if job.UpdatedAt.Before(cutoff) {
			delete(q.jobs, id)
			removed++
		}
	}
	return removed
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// dispatchLoop is the only goroutine that runs jobs. It drains all pending
// jobs in creation order each time it is woken.
func (q *Queue) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}

		for {
			jobID, jobType, payload, ok := q.takeNext()
			if !ok {
				break
			}
			q.runJob(ctx, jobID, jobType, payload)
		}
	}
}

// takeNext pops the oldest pending job and marks it processing.
func (q *Queue) takeNext() (string, model.JobType, model.JobPayload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]

		job, ok := q.jobs[id]
		if !ok || job.Status != model.JobStatusPending {
			// reaped or already handled, skip
			continue
		}
		job.Status = model.JobStatusProcessing
		job.UpdatedAt = q.now()
		return id, job.Type, job.Payload, true
	}
	return "", "", nil, false
}

// runJob invokes the work function and records the terminal state. Panics
// and errors are converted to a failed job so the dispatcher never stops.
func (q *Queue) runJob(ctx context.Context, jobID string, jobType model.JobType, payload model.JobPayload) {
	fn := q.workers[jobType]

	runCtx := ctx
	if q.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.opts.JobTimeout)
		defer cancel()
	}

	result, err := q.invoke(runCtx, fn, jobID, payload)
	if err == nil && result == nil {
		// a completed job must carry a result
		err = errors.New("worker returned no result")
	}
	if err != nil {
		log.Printf("job %s (%s) failed: %v", jobID, jobType, err)
		q.Fail(jobID, err.Error())
		return
	}
	q.Complete(jobID, result)
}

func (q *Queue) invoke(ctx context.Context, fn WorkFunc, jobID string, payload model.JobPayload) (result model.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx, jobID, payload)
}

func (q *Queue) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(q.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := q.Cleanup(); n > 0 {
				log.Printf("queue cleanup removed %d expired jobs", n)
			}
		}
	}
}
