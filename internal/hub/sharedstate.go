package hub

import (
	"math"
	"slices"

	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/resolver"
)

type stateOp int

const (
	opCreate stateOp = iota
	opUpdate
	opCreateOrUpdate
)

// setSharedState stores slot for owner. A nil version means the next event
// number. On success a shared state change event is dispatched.
func (h *Hub) setSharedState(owner string, version *int64, slot StateSlot, op stateOp) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return false
	}
	return h.setSharedStateLocked(owner, version, slot, op)
}

func (h *Hub) setSharedStateLocked(owner string, version *int64, slot StateSlot, op stateOp) bool {
	v := h.nextNumber
	if version != nil {
		v = *version
	}
	r, ok := h.states[owner]
	if !ok {
		r = resolver.New[event.Data]()
		h.states[owner] = r
	}
	var changed bool
	switch op {
	case opCreate:
		changed = r.Add(v, slot)
	case opUpdate:
		changed = r.Update(v, slot)
	case opCreateOrUpdate:
		changed = r.Add(v, slot) || r.Update(v, slot)
	}
	if !changed {
		h.logger.Debug("Shared state not changed", logfields.StateName(owner), logfields.Version(v))
		return false
	}
	h.recorder.IncSharedStateChange(owner)
	h.dispatchLocked(stateChangeEvent(owner))
	return true
}

func stateChangeEvent(owner string) *event.Event {
	return event.NewBuilder("Shared state change", event.TypeHub, event.SourceSharedState).
		SetData(event.Data{KeyStateOwner: owner}).
		MustBuild()
}

func (h *Hub) clearSharedStates(owner string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.states[owner] = resolver.New[event.Data]()
	h.recorder.IncSharedStateChange(owner)
	h.dispatchLocked(stateChangeEvent(owner))
}

// GetSharedEventState resolves state name as of e, or the latest state for
// a nil e. Unknown names resolve to Pending.
func (h *Hub) GetSharedEventState(name string, e *event.Event) StateSlot {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.states[name]
	if !ok {
		return resolver.Pending[event.Data]()
	}
	v := int64(math.MaxInt64)
	if e != nil {
		v = e.Number()
	}
	return r.Get(v)
}

// HasSharedEventState reports whether name holds any Data or Pending state.
func (h *Hub) HasSharedEventState(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.states[name]
	return ok && r.ContainsValidState()
}

// SharedStateData returns the data of state name as of e.
func (h *Hub) SharedStateData(name string, e *event.Event) (event.Data, bool) {
	s := h.GetSharedEventState(name, e)
	if !s.IsData() {
		return nil, false
	}
	d, _ := s.Value()
	return d, true
}

// SharedStateNames lists every state name that has been published.
func (h *Hub) SharedStateNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.states))
	for name := range h.states {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// publishHubStateLocked publishes the registered modules as the hub state.
func (h *Hub) publishHubStateLocked() {
	exts := event.Data{}
	for _, name := range h.order {
		m := h.modules[name]
		m.mu.Lock()
		key := m.stateName
		if key == "" {
			key = m.name
		}
		info := event.Data{KeyFriendlyName: m.name}
		if m.version != "" {
			info[KeyVersion] = m.version
		}
		m.mu.Unlock()
		exts[key] = info
	}
	d := event.Data{KeyVersion: h.sdkVersion, KeyExtensions: exts}
	h.setSharedStateLocked(StateName, nil, resolver.Data(d), opCreateOrUpdate)
}
