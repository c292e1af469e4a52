package hub

import (
	"log/slog"
	"slices"
	"sync"
	"weak"

	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/executor"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/resolver"
	"git.home.luguber.info/inful/mobilecore/internal/rules"
)

type listenerKey struct {
	t event.Type
	s event.Source
}

var wildcardKey = listenerKey{t: event.TypeWildcard, s: event.SourceWildcard}

// Module is the core every extension embeds. Its zero value is not usable;
// create one with NewModule and register the owning extension with a Hub.
type Module struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	attached  bool
	hub       *Hub
	ext       Extension
	stateName string
	version   string
	exec      *executor.TaskExecutor

	registeredCalled bool
	idleRequested    bool
	callbacks        []func()

	listeners   map[listenerKey]Listener
	processors  []Processor
	dispatchers []*Dispatcher

	tasks           []queuedTask
	taskRunning     bool
	runningRequired bool
	closedToTasks   bool

	unregistered chan struct{}
}

// NewModule returns an unattached module named name.
func NewModule(name string) *Module {
	return &Module{
		name:         name,
		logger:       slog.Default().With(logfields.Module(name)),
		listeners:    make(map[listenerKey]Listener),
		unregistered: make(chan struct{}),
	}
}

// Core returns m, letting extensions satisfy Extension by embedding *Module.
func (m *Module) Core() *Module { return m }

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Logger returns the module's logger.
func (m *Module) Logger() *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logger
}

// State returns the registration state.
func (m *Module) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRegistered reports whether the module is registered. The answer may be
// stale by the time the caller acts on it.
func (m *Module) IsRegistered() bool { return m.State() == StateRegistered }

// Unregistered is closed once unregistration has completed.
func (m *Module) Unregistered() <-chan struct{} { return m.unregistered }

func (m *Module) attach(h *Hub, ext Extension, stateName, version string, exec *executor.TaskExecutor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attached {
		return ErrModuleAlreadyAttached
	}
	m.attached = true
	m.hub = h
	m.ext = ext
	m.stateName = stateName
	m.version = version
	m.exec = exec
	m.logger = h.logger.With(logfields.Module(m.name))
	m.state = StateRegistering
	return nil
}

// childGuard must be called with m.mu held. It reports whether children may
// be registered now.
func (m *Module) childGuard() (bool, error) {
	if !m.attached {
		return false, ErrModuleNotAttached
	}
	return m.state == StateRegistered, nil
}

// registeredHub returns the hub while the module is registered.
func (m *Module) registeredHub() *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRegistered {
		return nil
	}
	return m.hub
}

// liveHub returns the hub from attachment until unregistration completes.
func (m *Module) liveHub() *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached || m.state == StateUnregistered {
		return nil
	}
	return m.hub
}

// enqueueCallbackLocked queues callbacks for the hub thread. It returns the
// hub to notify once m.mu is released, or nil when no drain is needed.
func (m *Module) enqueueCallbackLocked(fns ...func()) *Hub {
	added := false
	for _, fn := range fns {
		if fn != nil {
			m.callbacks = append(m.callbacks, fn)
			added = true
		}
	}
	if !added || m.idleRequested {
		return nil
	}
	m.idleRequested = true
	return m.hub
}

func notifyIdle(h *Hub, m *Module) {
	if h != nil {
		h.post("idle "+m.name, m.runCallbacks)
	}
}

// runCallbacks drains pending callbacks. It runs on the hub thread.
func (m *Module) runCallbacks() {
	for {
		m.mu.Lock()
		if len(m.callbacks) == 0 {
			m.idleRequested = false
			m.mu.Unlock()
			return
		}
		cbs := m.callbacks
		m.callbacks = nil
		logger := m.logger
		m.mu.Unlock()
		for _, cb := range cbs {
			safeCall(logger, "callback", cb)
		}
	}
}

func lifecycleRegistered(v any) func() {
	if lc, ok := v.(Lifecycle); ok {
		return lc.OnRegistered
	}
	return nil
}

func lifecycleUnregistered(v any) func() {
	if lc, ok := v.(Lifecycle); ok {
		return lc.OnUnregistered
	}
	return nil
}

// RegisterListener registers l for events of type t and source s. One
// listener is kept per type and source; a later registration replaces the
// earlier one. Either may be the wildcard.
func (m *Module) RegisterListener(t event.Type, s event.Source, l Listener) error {
	if l == nil {
		return ErrInvalidModule
	}
	m.mu.Lock()
	ok, err := m.childGuard()
	if !ok {
		m.mu.Unlock()
		return err
	}
	key := listenerKey{t: t, s: s}
	old := m.listeners[key]
	m.listeners[key] = l
	var h *Hub
	if old != nil {
		h = m.enqueueCallbackLocked(lifecycleUnregistered(old), lifecycleRegistered(l))
	} else {
		h = m.enqueueCallbackLocked(lifecycleRegistered(l))
	}
	m.mu.Unlock()
	notifyIdle(h, m)
	return nil
}

// RegisterWildcardListener registers l for every event.
func (m *Module) RegisterWildcardListener(l Listener) error {
	return m.RegisterListener(event.TypeWildcard, event.SourceWildcard, l)
}

// UnregisterListener removes the listener for t and s.
func (m *Module) UnregisterListener(t event.Type, s event.Source) {
	m.mu.Lock()
	key := listenerKey{t: t, s: s}
	old, ok := m.listeners[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.listeners, key)
	h := m.enqueueCallbackLocked(lifecycleUnregistered(old))
	m.mu.Unlock()
	notifyIdle(h, m)
}

// UnregisterWildcardListener removes the wildcard listener.
func (m *Module) UnregisterWildcardListener() {
	m.UnregisterListener(event.TypeWildcard, event.SourceWildcard)
}

// RegisterProcessor adds p to the processors that see every event first.
func (m *Module) RegisterProcessor(p Processor) error {
	if p == nil {
		return ErrInvalidModule
	}
	m.mu.Lock()
	ok, err := m.childGuard()
	if !ok {
		m.mu.Unlock()
		return err
	}
	m.processors = append(m.processors, p)
	h := m.enqueueCallbackLocked(lifecycleRegistered(p))
	m.mu.Unlock()
	notifyIdle(h, m)
	return nil
}

// CreateDispatcher returns a dispatcher bound to m. It returns nil without
// an error while the module is not registered.
func (m *Module) CreateDispatcher() (*Dispatcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, err := m.childGuard()
	if !ok {
		return nil, err
	}
	d := &Dispatcher{module: weak.Make(m)}
	m.dispatchers = append(m.dispatchers, d)
	return d, nil
}

// RegisterOneTimeListener calls fn for the first event with type t, source
// s and pair id pairID, then forgets it. An empty pairID matches any event
// of that type and source.
func (m *Module) RegisterOneTimeListener(t event.Type, s event.Source, pairID string, fn func(e *event.Event)) error {
	if fn == nil {
		return ErrInvalidModule
	}
	m.mu.Lock()
	ok, err := m.childGuard()
	h := m.hub
	m.mu.Unlock()
	if !ok {
		return err
	}
	h.addOneTime(&oneTimeListener{owner: m.name, key: listenerKey{t: t, s: s}, pairID: pairID, fn: fn})
	return nil
}

// RegisterRule adds a rule owned by this module.
func (m *Module) RegisterRule(r *rules.Rule) error {
	return m.withRules(func(en *rules.Engine) { en.Add(m.name, r) })
}

// ReplaceRules swaps every rule owned by this module.
func (m *Module) ReplaceRules(rs []*rules.Rule) error {
	return m.withRules(func(en *rules.Engine) { en.Replace(m.name, rs) })
}

// UnregisterAllRules removes every rule owned by this module.
func (m *Module) UnregisterAllRules() error {
	return m.withRules(func(en *rules.Engine) { en.Remove(m.name) })
}

func (m *Module) withRules(fn func(*rules.Engine)) error {
	m.mu.Lock()
	ok, err := m.childGuard()
	h := m.hub
	m.mu.Unlock()
	if !ok {
		return err
	}
	fn(h.engine)
	return nil
}

// listenersFor returns the listeners matching e's type and source, exact
// match first and the full wildcard last.
func (m *Module) listenersFor(e *event.Event) []Listener {
	keys := []listenerKey{
		{t: e.Type(), s: e.Source()},
		{t: e.Type(), s: event.SourceWildcard},
		{t: event.TypeWildcard, s: e.Source()},
		wildcardKey,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRegistered {
		return nil
	}
	var out []Listener
	seen := make([]listenerKey, 0, len(keys))
	for _, k := range keys {
		if slices.Contains(seen, k) {
			continue
		}
		seen = append(seen, k)
		if l, ok := m.listeners[k]; ok {
			out = append(out, l)
		}
	}
	return out
}

func (m *Module) processorSnapshot() []Processor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRegistered {
		return nil
	}
	return slices.Clone(m.processors)
}

// detachChildren clears every listener, processor and dispatcher and
// returns the OnUnregistered callbacks to run.
func (m *Module) detachChildren() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []func()
	for _, l := range m.listeners {
		if fn := lifecycleUnregistered(l); fn != nil {
			out = append(out, fn)
		}
	}
	for _, p := range m.processors {
		if fn := lifecycleUnregistered(p); fn != nil {
			out = append(out, fn)
		}
	}
	for _, d := range m.dispatchers {
		d.detached.Store(true)
	}
	clear(m.listeners)
	m.processors = nil
	m.dispatchers = nil
	return out
}

// stateOwner returns the hub and state name for shared-state writes.
func (m *Module) stateOwner() (*Hub, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached || m.state == StateUnregistered || m.stateName == "" {
		return nil, ""
	}
	return m.hub, m.stateName
}

// CreateSharedState publishes slot at version. It fails unless version is
// greater than every version published so far.
func (m *Module) CreateSharedState(version int64, slot StateSlot) bool {
	h, name := m.stateOwner()
	if h == nil {
		return false
	}
	return h.setSharedState(name, &version, slot, opCreate)
}

// UpdateSharedState replaces the Pending state at exactly version.
func (m *Module) UpdateSharedState(version int64, slot StateSlot) bool {
	h, name := m.stateOwner()
	if h == nil {
		return false
	}
	return h.setSharedState(name, &version, slot, opUpdate)
}

// CreateOrUpdateSharedState creates the state at version, or updates it
// when a Pending state already sits there.
func (m *Module) CreateOrUpdateSharedState(version int64, slot StateSlot) bool {
	h, name := m.stateOwner()
	if h == nil {
		return false
	}
	return h.setSharedState(name, &version, slot, opCreateOrUpdate)
}

// CreateOrUpdateSharedStateNow publishes slot at the hub's next event number.
func (m *Module) CreateOrUpdateSharedStateNow(slot StateSlot) bool {
	h, name := m.stateOwner()
	if h == nil {
		return false
	}
	return h.setSharedState(name, nil, slot, opCreateOrUpdate)
}

// PublishSharedState is CreateOrUpdateSharedStateNow with a data slot.
func (m *Module) PublishSharedState(d event.Data) bool {
	return m.CreateOrUpdateSharedStateNow(resolver.Data(d.Copy()))
}

// ClearSharedStates forgets every state this module published.
func (m *Module) ClearSharedStates() {
	h, name := m.stateOwner()
	if h == nil {
		return
	}
	h.clearSharedStates(name)
}

// GetSharedEventState resolves state name as of e; a nil e means latest.
// It never blocks and returns Pending when nothing is known.
func (m *Module) GetSharedEventState(name string, e *event.Event) StateSlot {
	h := m.liveHub()
	if h == nil {
		return resolver.Pending[event.Data]()
	}
	return h.GetSharedEventState(name, e)
}

// HasSharedEventState reports whether name holds any Data or Pending state.
func (m *Module) HasSharedEventState(name string) bool {
	h := m.liveHub()
	return h != nil && h.HasSharedEventState(name)
}

// UnregisterModule starts asynchronous unregistration. Queued normal tasks
// that have not started are dropped. Calling it more than once is a no-op.
func (m *Module) UnregisterModule() {
	m.mu.Lock()
	if !m.attached || (m.state != StateRegistering && m.state != StateRegistered) {
		m.mu.Unlock()
		return
	}
	m.state = StateUnregistering
	m.dropNormalTasksLocked()
	h := m.hub
	m.mu.Unlock()
	m.logger.Debug("Module unregistration started")
	h.post("unregister "+m.name, func() { h.advanceUnregistration(m) })
}
