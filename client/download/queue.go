package download

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// WorkFunc is one transfer run by a Queue.
type WorkFunc func(ctx context.Context) error

// Queue runs transfers on their own goroutines, at most limit at a time.
// Work that is still waiting for a slot when Shutdown is called never
// runs and finishes with ErrQueueShutdown.
type Queue struct {
	wg     sync.WaitGroup
	slots  chan struct{}
	closed atomic.Bool

	mu   sync.Mutex
	errs []error
}

// NewQueue creates a Queue running at most limit transfers at once.
// A limit <= 0 means no cap.
func NewQueue(limit int) *Queue {
	q := &Queue{}
	if limit > 0 {
		q.slots = make(chan struct{}, limit)
	}
	return q
}

// Job tracks one unit of work started on a Queue.
type Job struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Err waits for the job and returns its outcome.
func (j *Job) Err() error {
	<-j.done
	return j.err
}

// Cancel cancels the job's context. A job still waiting for a slot
// gives up with context.Canceled.
func (j *Job) Cancel() { j.cancel() }

// Start schedules fn. It returns immediately; fn runs once a slot is
// free, with a context cancelled by Job.Cancel or by ctx.
func (q *Queue) Start(ctx context.Context, fn WorkFunc) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{done: make(chan struct{}), cancel: cancel}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(j.done)
		defer cancel()

		j.err = q.run(ctx, fn)
		if j.err != nil {
			q.mu.Lock()
			q.errs = append(q.errs, j.err)
			q.mu.Unlock()
		}
	}()

	return j
}

func (q *Queue) run(ctx context.Context, fn WorkFunc) error {
	if q.slots != nil {
		select {
		case q.slots <- struct{}{}:
			defer func() { <-q.slots }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if q.closed.Load() {
		return ErrQueueShutdown
	}

	return fn(ctx)
}

// Shutdown refuses work that has not yet taken a slot. Running work is
// left alone.
func (q *Queue) Shutdown() { q.closed.Store(true) }

// IsShutdown reports whether Shutdown has been called.
func (q *Queue) IsShutdown() bool { return q.closed.Load() }

// Wait blocks until every started job has finished and returns their
// errors joined.
func (q *Queue) Wait() error {
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()

	return errors.Join(q.errs...)
}
