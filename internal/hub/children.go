package hub

import (
	"sync/atomic"
	"weak"

	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
)

// Dispatcher sends events on behalf of a module. It holds only a weak
// reference to the module and stops working once the module unregisters.
type Dispatcher struct {
	module   weak.Pointer[Module]
	detached atomic.Bool
}

// Dispatch hands e to the hub and returns the numbered event. It returns
// nil when the owning module is no longer registered.
func (d *Dispatcher) Dispatch(e *event.Event) *event.Event {
	if d == nil || d.detached.Load() {
		return nil
	}
	m := d.module.Value()
	if m == nil {
		return nil
	}
	h := m.registeredHub()
	if h == nil {
		return nil
	}
	out, err := h.Dispatch(e)
	if err != nil {
		m.Logger().Warn("Dispatch failed", logfields.Error(err))
		return nil
	}
	return out
}

type oneTimeListener struct {
	owner  string
	key    listenerKey
	pairID string
	fn     func(e *event.Event)
}

func (o *oneTimeListener) matches(e *event.Event) bool {
	if o.key.t != event.TypeWildcard && o.key.t != e.Type() {
		return false
	}
	if o.key.s != event.SourceWildcard && o.key.s != e.Source() {
		return false
	}
	return o.pairID == "" || o.pairID == e.PairID()
}
