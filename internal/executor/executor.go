// Package executor provides the bounded worker pool that runs hub, module and
// hit queue work.
package executor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/metrics"
)

// MaxThreads is the largest worker count a single executor may own.
const MaxThreads = 16

var (
	// ErrInvalidThreadCount is returned by New for a worker count outside 1..MaxThreads.
	ErrInvalidThreadCount = errors.ValidationError("executor thread count out of range").Build()
	// ErrTaskPanicked is the cause handed to error callbacks when a task panics.
	ErrTaskPanicked = errors.RuntimeError("task panicked").Build()
)

// Task is a unit of work. A returned error is delivered to the task's ErrorCallback.
type Task func() error

// ErrorCallback receives the name of a failed task and its error.
type ErrorCallback func(taskName string, err error)

// Executor is the subset of TaskExecutor used by hub components.
type Executor interface {
	AddTask(name string, task Task, onError ErrorCallback) bool
	Dispose(maxWait time.Duration) bool
	IsDisposed() bool
}

type queuedTask struct {
	name    string
	run     Task
	onError ErrorCallback
}

// TaskExecutor runs tasks on a fixed set of workers in FIFO start order.
// With a single worker, completion order equals submission order.
type TaskExecutor struct {
	name     string
	threads  int
	logger   *slog.Logger
	recorder metrics.Recorder

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []queuedTask
	running  int
	disposed bool

	wg      sync.WaitGroup
	stopped chan struct{}
}

// Option configures a TaskExecutor.
type Option func(*TaskExecutor)

// WithName labels the executor in logs and metrics.
func WithName(name string) Option {
	return func(e *TaskExecutor) { e.name = name }
}

// WithLogger sets the logger used for unhandled task failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *TaskExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *TaskExecutor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// New starts an executor with numThreads workers.
func New(numThreads int, opts ...Option) (*TaskExecutor, error) {
	if numThreads < 1 || numThreads > MaxThreads {
		return nil, errors.WrapError(ErrInvalidThreadCount, errors.CategoryValidation, fmt.Sprintf("threads must be between 1 and %d", MaxThreads)).
			WithContext("threads", numThreads).
			Build()
	}

	e := &TaskExecutor{
		name:     "executor",
		threads:  numThreads,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cond = sync.NewCond(&e.mu)

	for range numThreads {
		e.wg.Add(1)
		go e.worker()
	}
	go func() {
		e.wg.Wait()
		close(e.stopped)
	}()
	return e, nil
}

// Name returns the executor label.
func (e *TaskExecutor) Name() string { return e.name }

// AddTask appends a task to the queue. It returns false once the executor is disposed.
func (e *TaskExecutor) AddTask(name string, task Task, onError ErrorCallback) bool {
	if task == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return false
	}
	e.queue = append(e.queue, queuedTask{name: name, run: task, onError: onError})
	e.cond.Signal()
	return true
}

// Pending returns the number of queued tasks that have not started.
func (e *TaskExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Running returns the number of tasks currently executing.
func (e *TaskExecutor) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// IsDisposed reports whether Dispose has been called.
func (e *TaskExecutor) IsDisposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// Done is closed once every worker has exited after Dispose.
func (e *TaskExecutor) Done() <-chan struct{} { return e.stopped }

// Dispose drops queued tasks and stops the workers, waiting up to maxWait for
// running tasks to finish. It returns false when workers are still busy at the
// deadline; they exit on their own once their current task returns.
func (e *TaskExecutor) Dispose(maxWait time.Duration) bool {
	e.mu.Lock()
	if !e.disposed {
		e.disposed = true
		for _, t := range e.queue {
			e.recorder.IncTaskResult(e.name, metrics.ResultDropped)
			e.logger.Debug("Dropping queued task", logfields.Executor(e.name), logfields.Task(t.name))
		}
		e.queue = nil
		e.cond.Broadcast()
	}
	e.mu.Unlock()

	if maxWait <= 0 {
		select {
		case <-e.stopped:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case <-e.stopped:
		return true
	case <-timer.C:
		return false
	}
}

func (e *TaskExecutor) worker() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.disposed {
			e.cond.Wait()
		}
		if e.disposed {
			e.mu.Unlock()
			return
		}
		t := e.queue[0]
		e.queue[0] = queuedTask{}
		e.queue = e.queue[1:]
		e.running++
		e.mu.Unlock()

		e.execute(t)

		e.mu.Lock()
		e.running--
		e.mu.Unlock()
	}
}

func (e *TaskExecutor) execute(t queuedTask) {
	start := time.Now()
	panicked, err := runGuarded(t.run)
	e.recorder.ObserveTaskDuration(e.name, time.Since(start))

	if panicked {
		e.recorder.IncTaskResult(e.name, metrics.ResultPanic)
	} else {
		e.recorder.IncTaskResult(e.name, metrics.ResultSuccess)
	}
	if err == nil {
		return
	}
	if t.onError != nil {
		t.onError(t.name, err)
		return
	}
	e.logger.Error("Task failed", logfields.Executor(e.name), logfields.Task(t.name), logfields.Error(err))
}

// runGuarded runs task and converts a panic into a classified error.
func runGuarded(task Task) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = errors.WrapError(ErrTaskPanicked, errors.CategoryRuntime, "task panicked").
				WithContext("panic", fmt.Sprint(r)).
				Build()
		}
	}()
	return false, task()
}
