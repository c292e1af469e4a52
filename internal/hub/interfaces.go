package hub

import (
	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/resolver"
)

// StateSlot is a resolved or pending shared state.
type StateSlot = resolver.Slot[event.Data]

// Extension is implemented by every module registered with a hub.
// Implementations embed the *Module returned by NewModule and return it from Core.
type Extension interface {
	Core() *Module
	// SharedStateName names the state this module publishes; empty for none.
	SharedStateName() string
	// OnRegistered runs once on the hub thread after registration.
	OnRegistered()
	// OnUnregistered runs once on the hub thread at the end of unregistration.
	OnUnregistered()
}

// Versioned extensions report their version in the hub shared state.
type Versioned interface {
	Version() string
}

// Lifecycle may be implemented by listeners, processors and dispatcher
// owners to observe their own registration. Callbacks run on the hub thread.
type Lifecycle interface {
	OnRegistered()
	OnUnregistered()
}

// Listener hears events of the type and source it was registered for.
type Listener interface {
	Hear(e *event.Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(e *event.Event)

func (f ListenerFunc) Hear(e *event.Event) { f(e) }

// Processor sees every event before listeners and may replace it. Returning
// nil keeps the event unchanged.
type Processor interface {
	Process(e *event.Event) *event.Event
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(e *event.Event) *event.Event

func (f ProcessorFunc) Process(e *event.Event) *event.Event { return f(e) }

// TaskOptions tunes AddTaskToQueue.
type TaskOptions struct {
	// RequiredForUnregistration keeps the task when the module unregisters;
	// it may run after OnUnregistered.
	RequiredForUnregistration bool
}
