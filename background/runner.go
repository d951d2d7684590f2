// Package background runs work that must not hold up an HTTP response: writing uploaded
// images and removing images of deleted accounts. Tasks are fire-and-forget; a failing task
// is logged and never reported to the client that triggered it.
package background

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one unit of detached work. The context is cancelled when the runner stops
// waiting for in-flight tasks.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

const (
	defaultWorkers    = 2
	defaultQueueDepth = 64
	taskTimeout       = 30 * time.Second
)

// Runner is a small worker pool fed by a buffered channel.
type Runner struct {
	log   logrus.FieldLogger
	tasks chan Task

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner starts workers goroutines reading from a queue of queueDepth tasks.
// Non-positive values fall back to defaults.
func NewRunner(log logrus.FieldLogger, workers, queueDepth int) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		log:    log,
		tasks:  make(chan Task, queueDepth),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.log.WithField("workers", workers).Debug("background runner started")
	return r
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()
	for task := range r.tasks {
		r.execute(id, task)
	}
}

func (r *Runner) execute(workerID int, task Task) {
	ctx, cancel := context.WithTimeout(r.ctx, taskTimeout)
	defer cancel()

	entry := r.log.WithFields(logrus.Fields{"task": task.Name, "worker": workerID})
	defer func() {
		if rvr := recover(); rvr != nil {
			entry.WithField("panic", rvr).Error("background task panicked")
		}
	}()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		entry.WithError(err).Warn("background task failed")
		return
	}
	entry.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("background task done")
}

// Submit queues task without blocking the caller. When the queue is full the task runs on
// its own goroutine; after Stop it is dropped with a warning.
func (r *Runner) Submit(task Task) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.log.WithField("task", task.Name).Warn("background runner stopped, task dropped")
		return
	}

	select {
	case r.tasks <- task:
	default:
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.execute(-1, task)
		}()
	}
}

// Stop refuses new tasks, lets queued tasks finish, and waits up to the deadline of ctx.
// In-flight tasks see their context cancelled if the deadline passes.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.tasks)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
