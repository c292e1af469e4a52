package hub

import (
	"log/slog"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
)

type queuedTask struct {
	name     string
	fn       func()
	required bool
}

// AddTaskToQueue runs fn on the module executor. Tasks of a module start
// and complete in submission order. It reports whether the task was
// accepted: never before attachment, only required tasks during
// unregistration, and nothing once OnUnregistered has returned.
func (m *Module) AddTaskToQueue(name string, fn func(), opts TaskOptions) bool {
	if fn == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached || m.closedToTasks {
		return false
	}
	if m.state.tearingDown() && !opts.RequiredForUnregistration {
		return false
	}
	m.tasks = append(m.tasks, queuedTask{name: name, fn: fn, required: opts.RequiredForUnregistration})
	m.pumpLocked()
	return true
}

// PendingTasks returns the number of queued tasks that have not started.
func (m *Module) PendingTasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// pumpLocked hands the next task to the executor when none is running.
func (m *Module) pumpLocked() {
	for !m.taskRunning && len(m.tasks) > 0 {
		t := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.taskRunning = true
		m.runningRequired = t.required
		if m.exec.AddTask(t.name, func() error { m.runTask(t); return nil }, m.onTaskError) {
			return
		}
		m.taskRunning = false
		m.logger.Warn("Module executor rejected task", logfields.Task(t.name))
	}
}

// runTask runs t unless it is a normal task whose module began
// unregistering while it waited in the executor queue.
func (m *Module) runTask(t queuedTask) {
	defer m.finishTask(t)
	m.mu.Lock()
	skip := !t.required && (m.state.tearingDown() || m.state == StateUnregistered)
	m.mu.Unlock()
	if skip {
		m.logger.Debug("Dropped unstarted module task", logfields.Task(t.name))
		return
	}
	t.fn()
}

func (m *Module) onTaskError(task string, err error) {
	err = errors.WrapError(err, errors.CategoryModule, "module task failed").
		WithContext("module", m.name).
		WithContext("task", task).
		Build()
	m.logger.Error("Module task failed", logfields.Task(task), logfields.Error(err))
}

func (m *Module) finishTask(t queuedTask) {
	m.mu.Lock()
	m.taskRunning = false
	m.runningRequired = false
	resume := m.state == StateCompletingNormalTasks && !t.required
	m.pumpLocked()
	idle := !m.taskRunning && len(m.tasks) == 0
	disposeNow := m.state == StateUnregistered && idle
	h := m.hub
	m.mu.Unlock()

	if resume && h != nil {
		h.post("unregister "+m.name, func() { h.advanceUnregistration(m) })
	}
	if disposeNow {
		// Called from the worker itself, so only signal shutdown.
		m.exec.Dispose(0)
	}
}

func (m *Module) dropNormalTasksLocked() {
	kept := m.tasks[:0]
	dropped := 0
	for _, t := range m.tasks {
		if t.required {
			kept = append(kept, t)
			continue
		}
		dropped++
	}
	clear(m.tasks[len(kept):])
	m.tasks = kept
	if dropped > 0 {
		m.logger.Debug("Dropped unstarted module tasks", slog.Int("count", dropped))
	}
}
