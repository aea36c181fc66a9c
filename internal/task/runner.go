// Package task runs detached side effects: writes and sends whose failure
// must never delay or undo a feeding decision that was already made.
package task

import (
	"context"
	"log"
	"sync"
	"time"
)

// Func is a unit of detached work.
type Func func(ctx context.Context) error

// Detacher schedules work that runs after the caller has returned.
type Detacher interface {
	Go(name string, fn Func)
}

type job struct {
	name string
	fn   Func
}

// Runner is a bounded pool of workers draining a buffered job channel.
type Runner struct {
	size    int
	timeout time.Duration
	jobs    chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a runner with size workers, a queue of queueSize pending
// jobs and a per-job timeout.
func NewRunner(size, queueSize int, timeout time.Duration) *Runner {
	if size <= 0 {
		size = 1
	}
	return &Runner{
		size:    size,
		timeout: timeout,
		jobs:    make(chan job, queueSize),
	}
}

// Start launches the worker goroutines. Jobs still run with their own
// timeout after ctx is cancelled so that Shutdown can drain them.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.size; i++ {
		r.wg.Add(1)
		go r.worker(context.WithoutCancel(ctx), i)
	}
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for j := range r.jobs {
		run(ctx, r.timeout, j)
	}
	log.Printf("Task worker %d shutting down", id)
}

// Go enqueues fn without blocking. When the queue is full or the runner is
// shut down the job is dropped and logged.
func (r *Runner) Go(name string, fn Func) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		log.Printf("Dropping task %q: runner is shut down", name)
		return
	}
	select {
	case r.jobs <- job{name: name, fn: fn}:
	default:
		log.Printf("Dropping task %q: queue is full", name)
	}
}

// Shutdown stops accepting jobs and waits for queued ones until ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inline runs every job synchronously in the caller. It is used where the
// process exits right after the decision, such as one-shot CLI checks.
type Inline struct {
	Timeout time.Duration
}

// Go runs fn immediately and logs its failure.
func (i Inline) Go(name string, fn Func) {
	run(context.Background(), i.Timeout, job{name: name, fn: fn})
}

func run(ctx context.Context, timeout time.Duration, j job) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			log.Printf("Task %q panicked: %v", j.name, p)
		}
	}()
	if err := j.fn(ctx); err != nil {
		log.Printf("Task %q failed: %v", j.name, err)
	}
}
