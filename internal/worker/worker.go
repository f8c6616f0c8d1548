package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TaskFunc is a unit of detached background work.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	fn       TaskFunc
	queuedAt time.Time
}

// TaskObserver receives the outcome of every task.
type TaskObserver interface {
	ObserveTask(name string, err error, duration time.Duration)
}

// Runner executes fire-and-forget tasks on a fixed pool of goroutines.
// Submitters never wait for a result and never see a task's error.
type Runner struct {
	queue       chan task
	concurrency int
	timeout     time.Duration
	observer    TaskObserver

	baseCtx  context.Context
	stop     chan struct{}
	stopOnce sync.Once
	// mu orders enqueues against Stop; nothing is queued once stop is closed.
	mu       sync.RWMutex
	stopped  bool
	inFlight atomic.Int64
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// Config holds runner configuration.
type Config struct {
	QueueSize   int
	Concurrency int
	TaskTimeout time.Duration
	Observer    TaskObserver
}

// New creates a new runner.
func New(cfg Config, logger *slog.Logger) *Runner {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 100
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 2
	}
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		queue:       make(chan task, cfg.QueueSize),
		concurrency: cfg.Concurrency,
		timeout:     cfg.TaskTimeout,
		observer:    cfg.Observer,
		baseCtx:     context.Background(),
		stop:        make(chan struct{}),
		logger:      logger.With("component", "worker"),
	}
}

// Start launches the worker goroutines. Tasks run under a context detached
// from ctx's cancellation so in-progress work can finish during shutdown.
func (r *Runner) Start(ctx context.Context) {
	r.baseCtx = context.WithoutCancel(ctx)
	r.logger.Info("starting", "concurrency", r.concurrency)

	for i := 0; i < r.concurrency; i++ {
		r.wg.Add(1)
		go r.run(i)
	}
}

// Stop refuses new tasks, drains the queue and waits for workers to exit.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info("stopping", "pending", len(r.queue))
		r.mu.Lock()
		r.stopped = true
		close(r.stop)
		r.mu.Unlock()
	})
	r.wg.Wait()
	r.logger.Info("stopped")
}

// Submit enqueues a task without blocking. It returns false when the runner
// is stopped or the queue is full; the task is then dropped and logged.
func (r *Runner) Submit(name string, fn TaskFunc) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		r.logger.Warn("task rejected, runner stopped", "task", name)
		return false
	}

	r.inFlight.Add(1)
	select {
	case r.queue <- task{name: name, fn: fn, queuedAt: time.Now()}:
		return true
	default:
		r.inFlight.Add(-1)
		r.logger.Warn("task dropped, queue full", "task", name, "queue_size", cap(r.queue))
		return false
	}
}

// InFlight returns the number of queued and running tasks.
func (r *Runner) InFlight() int {
	return int(r.inFlight.Load())
}

// Busy reports whether any task is queued or running.
func (r *Runner) Busy() bool {
	return r.InFlight() > 0
}

func (r *Runner) run(workerID int) {
	defer r.wg.Done()

	for {
		select {
		case t := <-r.queue:
			r.execute(workerID, t)
		case <-r.stop:
			for {
				select {
				case t := <-r.queue:
					r.execute(workerID, t)
				default:
					return
				}
			}
		}
	}
}

func (r *Runner) execute(workerID int, t task) {
	defer r.inFlight.Add(-1)

	ctx, cancel := context.WithTimeout(r.baseCtx, r.timeout)
	defer cancel()

	start := time.Now()
	err := r.safeRun(ctx, t)
	duration := time.Since(start)

	if r.observer != nil {
		r.observer.ObserveTask(t.name, err, duration)
	}
	if err != nil {
		r.logger.Error("task failed",
			"worker_id", workerID,
			"task", t.name,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return
	}
	r.logger.Debug("task completed",
		"worker_id", workerID,
		"task", t.name,
		"wait_ms", start.Sub(t.queuedAt).Milliseconds(),
		"duration_ms", duration.Milliseconds(),
	)
}

// safeRun converts a panic into an error so one bad task cannot kill a worker.
func (r *Runner) safeRun(ctx context.Context, t task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", t.name, p)
		}
	}()
	return t.fn(ctx)
}
