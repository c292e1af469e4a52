// Package hub implements the event hub and the module lifecycle.
//
// The hub numbers every dispatched event and delivers it on a single
// logical thread: processors first, then the rules engine, then listeners,
// then one-time listeners. Module, listener, processor and dispatcher
// callbacks therefore never run concurrently with each other.
//
// Extensions embed a *Module and register with Hub.RegisterModule.
// Registration and unregistration complete asynchronously on the hub
// thread. Each module owns a private executor on which AddTaskToQueue
// runs work in strict FIFO order.
//
// Shared states are versioned by event number and resolved with a
// resolver.RangedResolver per state name. Lock order is hub before module.
package hub
