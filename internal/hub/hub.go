package hub

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/executor"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/metrics"
	"git.home.luguber.info/inful/mobilecore/internal/resolver"
	"git.home.luguber.info/inful/mobilecore/internal/rules"
	"git.home.luguber.info/inful/mobilecore/internal/version"
)

// StateName is the shared state the hub publishes about its modules.
const StateName = "com.adobe.module.eventhub"

// Event data keys used by hub events and the hub shared state.
const (
	KeyStateOwner   = "stateowner"
	KeyVersion      = "version"
	KeyExtensions   = "extensions"
	KeyFriendlyName = "friendlyName"
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger. Module loggers derive from it.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithRecorder sets the recorder for dispatch and module metrics.
func WithRecorder(r metrics.Recorder) Option {
	return func(h *Hub) {
		if r != nil {
			h.recorder = r
		}
	}
}

// WithModuleThreads sets the worker count of each module executor.
func WithModuleThreads(n int) Option {
	return func(h *Hub) { h.moduleThreads = n }
}

// WithSDKVersion sets the version reported by ~sdkver and the hub state.
func WithSDKVersion(v string) Option {
	return func(h *Hub) { h.sdkVersion = v }
}

// Hub numbers events and delivers them to registered modules.
type Hub struct {
	name          string
	logger        *slog.Logger
	recorder      metrics.Recorder
	moduleThreads int
	sdkVersion    string
	loop          *executor.TaskExecutor
	engine        *rules.Engine

	mu         sync.Mutex
	modules    map[string]*Module
	order      []string
	states     map[string]*resolver.RangedResolver[event.Data]
	nextNumber int64
	booted     bool
	buffered   []*event.Event
	oneTime    []*oneTimeListener
	disposed   bool
}

// New starts a hub. Modules registered before FinishModulesRegistration see
// events dispatched in the meantime once the hub boots.
func New(name string, opts ...Option) (*Hub, error) {
	h := &Hub{
		name:          name,
		logger:        slog.Default(),
		recorder:      metrics.NoopRecorder{},
		moduleThreads: 1,
		sdkVersion:    version.Version,
		modules:       make(map[string]*Module),
		states:        make(map[string]*resolver.RangedResolver[event.Data]),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.moduleThreads < 1 || h.moduleThreads > executor.MaxThreads {
		return nil, errors.WrapError(executor.ErrInvalidThreadCount, errors.CategoryValidation, "invalid module thread count").
			WithContext("threads", h.moduleThreads).
			Build()
	}
	h.logger = h.logger.With(logfields.Hub(name))
	loop, err := executor.New(1,
		executor.WithName("hub:"+name),
		executor.WithLogger(h.logger),
		executor.WithRecorder(h.recorder))
	if err != nil {
		return nil, err
	}
	h.loop = loop
	h.engine = rules.NewEngine(rules.NewTokenParser(h, h.sdkVersion), h.logger)
	return h, nil
}

// Name returns the hub name.
func (h *Hub) Name() string { return h.name }

// Rules returns the rules engine evaluated for every event.
func (h *Hub) Rules() *rules.Engine { return h.engine }

// safeCall runs fn and logs a panic instead of propagating it.
func safeCall(logger *slog.Logger, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Callback panicked", slog.String("callback", what), slog.Any("panic", r))
		}
	}()
	fn()
}

// post runs fn on the hub thread.
func (h *Hub) post(name string, fn func()) bool {
	return h.loop.AddTask(name, func() error { fn(); return nil }, h.onLoopError)
}

func (h *Hub) onLoopError(task string, err error) {
	h.logger.Error("Hub task failed", logfields.Task(task), logfields.Error(err))
}

// RegisterModule attaches ext and completes its registration on the hub
// thread, where OnRegistered runs.
func (h *Hub) RegisterModule(ext Extension) error {
	if ext == nil || ext.Core() == nil || ext.Core().Name() == "" {
		return ErrInvalidModule
	}
	m := ext.Core()
	stateName := ext.SharedStateName()
	ver := ""
	if v, ok := ext.(Versioned); ok {
		ver = v.Version()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return ErrHubDisposed
	}
	if _, dup := h.modules[m.name]; dup {
		return errors.WrapError(ErrModuleAlreadyRegistered, errors.CategoryAlreadyExists, fmt.Sprintf("module %q already registered", m.name)).
			WithContext("module", m.name).
			Build()
	}
	exec, err := executor.New(h.moduleThreads,
		executor.WithName("module:"+m.name),
		executor.WithLogger(h.logger.With(logfields.Module(m.name))),
		executor.WithRecorder(h.recorder))
	if err != nil {
		return err
	}
	if err := m.attach(h, ext, stateName, ver, exec); err != nil {
		exec.Dispose(0)
		return err
	}
	h.modules[m.name] = m
	h.order = append(h.order, m.name)
	h.post("register "+m.name, func() { h.completeRegistration(m) })
	h.logger.Debug("Module registration started", logfields.Module(m.name))
	return nil
}

func (h *Hub) completeRegistration(m *Module) {
	m.mu.Lock()
	if m.state == StateRegistering {
		m.state = StateRegistered
	}
	m.registeredCalled = true
	ext := m.ext
	m.mu.Unlock()

	safeCall(m.logger, "OnRegistered", ext.OnRegistered)
	m.runCallbacks()

	h.mu.Lock()
	n := len(h.modules)
	if h.booted && !h.disposed {
		h.publishHubStateLocked()
	}
	h.mu.Unlock()
	h.recorder.SetRegisteredModules(n)
	h.logger.Info("Module registered", logfields.Module(m.name))
}

// advanceUnregistration walks m through the teardown states. It runs on
// the hub thread and returns early while a started normal task is still
// running; finishTask resumes it.
func (h *Hub) advanceUnregistration(m *Module) {
	for {
		m.mu.Lock()
		switch m.state {
		case StateUnregistering:
			m.mu.Unlock()
			m.runCallbacks()
			for _, fn := range m.detachChildren() {
				safeCall(m.logger, "child OnUnregistered", fn)
			}
			h.engine.Remove(m.name)
			h.removeOneTime(m.name)
			m.mu.Lock()
			m.state = StateDisposingExecutor
			m.mu.Unlock()

		case StateDisposingExecutor:
			m.dropNormalTasksLocked()
			m.state = StateCompletingNormalTasks
			m.mu.Unlock()

		case StateCompletingNormalTasks:
			if m.taskRunning && !m.runningRequired {
				m.mu.Unlock()
				return
			}
			ext := m.ext
			called := m.registeredCalled
			m.mu.Unlock()
			if called {
				safeCall(m.logger, "OnUnregistered", ext.OnUnregistered)
			}
			h.finishUnregistration(m)
			return

		default:
			m.mu.Unlock()
			return
		}
	}
}

func (h *Hub) finishUnregistration(m *Module) {
	m.mu.Lock()
	m.state = StateUnregistered
	m.closedToTasks = true
	m.hub = nil
	idle := !m.taskRunning && len(m.tasks) == 0
	exec := m.exec
	m.mu.Unlock()
	if idle {
		exec.Dispose(0)
	}
	close(m.unregistered)

	h.mu.Lock()
	if h.modules[m.name] == m {
		delete(h.modules, m.name)
		h.order = slices.DeleteFunc(h.order, func(n string) bool { return n == m.name })
	}
	n := len(h.modules)
	if h.booted && !h.disposed {
		h.publishHubStateLocked()
	}
	h.mu.Unlock()
	h.recorder.SetRegisteredModules(n)
	h.logger.Info("Module unregistered", logfields.Module(m.name))
}

// FinishModulesRegistration boots the hub: events dispatched so far are
// released in number order, the hub shared state is published and a
// booted event is dispatched. Later calls are no-ops.
func (h *Hub) FinishModulesRegistration() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.booted || h.disposed {
		return
	}
	h.booted = true
	for _, e := range h.buffered {
		h.submitLocked(e)
	}
	h.buffered = nil
	h.publishHubStateLocked()
	h.dispatchLocked(event.NewBuilder("EventHub", event.TypeHub, event.SourceBooted).MustBuild())
	h.logger.Info("Event hub booted", slog.Int("modules", len(h.modules)))
}

// IsBooted reports whether FinishModulesRegistration has run.
func (h *Hub) IsBooted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.booted
}

// Dispatch numbers e and queues it for delivery. The returned copy carries
// the assigned event number.
func (h *Hub) Dispatch(e *event.Event) (*event.Event, error) {
	if e == nil {
		return nil, ErrNilEvent
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return nil, ErrHubDisposed
	}
	return h.dispatchLocked(e), nil
}

// EventCount returns the number of events numbered so far.
func (h *Hub) EventCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextNumber
}

// dispatchLocked numbers e and submits it while h.mu is held, so delivery
// order equals number order.
func (h *Hub) dispatchLocked(e *event.Event) *event.Event {
	numbered := e.Renumber(h.nextNumber)
	h.nextNumber++
	if !h.booted {
		h.buffered = append(h.buffered, numbered)
		return numbered
	}
	h.submitLocked(numbered)
	return numbered
}

func (h *Hub) submitLocked(e *event.Event) {
	if !h.post("event "+e.Name(), func() { h.process(e) }) {
		h.logger.Warn("Dropping event, hub loop stopped", logfields.EventName(e.Name()), logfields.EventNumber(e.Number()))
	}
}

func (h *Hub) registeredModules() []*Module {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Module, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.modules[name])
	}
	return out
}

// process delivers e on the hub thread.
func (h *Hub) process(e *event.Event) {
	start := time.Now()
	mods := h.registeredModules()
	for _, m := range mods {
		m.runCallbacks()
	}

	for _, m := range mods {
		for _, p := range m.processorSnapshot() {
			var out *event.Event
			safeCall(m.logger, "Process", func() { out = p.Process(e) })
			if out != nil {
				if out.Number() != e.Number() {
					out = out.Renumber(e.Number())
				}
				e = out
			}
		}
	}

	for _, c := range h.engine.Evaluate(e) {
		ce := event.NewBuilder("Rules Consequence Event", event.TypeRulesEngine, event.SourceResponseContent).
			SetData(c.EventData()).
			MustBuild()
		if _, err := h.Dispatch(ce); err != nil {
			h.logger.Debug("Consequence dropped", logfields.Consequence(c.ID), logfields.Error(err))
		}
	}

	for _, m := range mods {
		for _, l := range m.listenersFor(e) {
			safeCall(m.logger, "Hear", func() { l.Hear(e) })
		}
	}

	for _, o := range h.takeOneTime(e) {
		safeCall(h.logger, "one-time listener", func() { o.fn(e) })
	}

	h.recorder.IncEventDispatched(e.Type().Short())
	h.recorder.ObserveEventDuration(e.Type().Short(), time.Since(start))
	h.logger.Debug("Event processed", logfields.EventName(e.Name()), logfields.EventType(string(e.Type())),
		logfields.EventSource(string(e.Source())), logfields.EventNumber(e.Number()))
}

func (h *Hub) addOneTime(o *oneTimeListener) {
	h.mu.Lock()
	h.oneTime = append(h.oneTime, o)
	h.mu.Unlock()
}

func (h *Hub) takeOneTime(e *event.Event) []*oneTimeListener {
	h.mu.Lock()
	defer h.mu.Unlock()
	var hit []*oneTimeListener
	kept := h.oneTime[:0]
	for _, o := range h.oneTime {
		if o.matches(e) {
			hit = append(hit, o)
			continue
		}
		kept = append(kept, o)
	}
	clear(h.oneTime[len(kept):])
	h.oneTime = kept
	return hit
}

func (h *Hub) removeOneTime(owner string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.oneTime = slices.DeleteFunc(h.oneTime, func(o *oneTimeListener) bool { return o.owner == owner })
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	Name            string `json:"name"`
	SharedStateName string `json:"sharedStateName,omitempty"`
	Version         string `json:"version,omitempty"`
	State           string `json:"state"`
}

// Modules lists modules in registration order.
func (h *Hub) Modules() []ModuleInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ModuleInfo, 0, len(h.order))
	for _, name := range h.order {
		m := h.modules[name]
		m.mu.Lock()
		out = append(out, ModuleInfo{Name: m.name, SharedStateName: m.stateName, Version: m.version, State: m.state.String()})
		m.mu.Unlock()
	}
	return out
}

// IsRegisteredModule reports whether a module named name is registered.
func (h *Hub) IsRegisteredModule(name string) bool {
	h.mu.Lock()
	m, ok := h.modules[name]
	h.mu.Unlock()
	return ok && m.IsRegistered()
}

// Dispose unregisters every module, waits up to maxWait for them and their
// tasks to finish, then stops the hub thread. A false result means cleanup
// continues in the background.
func (h *Hub) Dispose(maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return h.loop.Dispose(0)
	}
	h.disposed = true
	mods := make([]*Module, 0, len(h.modules))
	for _, name := range h.order {
		mods = append(mods, h.modules[name])
	}
	h.mu.Unlock()

	for _, m := range mods {
		m.UnregisterModule()
	}
	complete := true
	for _, m := range mods {
		if !waitUntil(m.unregistered, deadline) {
			complete = false
			continue
		}
		if !waitUntil(m.exec.Done(), deadline) {
			m.exec.Dispose(0)
			complete = false
		}
	}

	h.mu.Lock()
	h.oneTime = nil
	h.mu.Unlock()
	if !h.loop.Dispose(time.Until(deadline)) {
		complete = false
	}
	h.logger.Info("Event hub disposed", slog.Bool("complete", complete))
	return complete
}

func waitUntil(ch <-chan struct{}, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}
