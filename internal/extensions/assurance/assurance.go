// Package assurance streams every hub event to an external sink for live
// inspection.
package assurance

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/hub"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/version"
)

const ModuleName = "com.adobe.assurance"

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var subjectToken = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// Subject returns the subject an event is published on:
// <prefix>.<type>.<source> with the common vocabulary prefixes removed.
func Subject(prefix string, e *event.Event) string {
	return prefix + "." + subjectToken.Replace(e.Type().Short()) + "." + subjectToken.Replace(e.Source().Short())
}

// Extension publishes events heard through a wildcard listener.
type Extension struct {
	*hub.Module

	connect ConnectFunc
	prefix  string

	mu  sync.Mutex
	pub Publisher

	published atomic.Int64
	dropped   atomic.Int64
}

// New returns an assurance module using connect to open its publisher.
func New(connect ConnectFunc, prefix string) *Extension {
	return &Extension{Module: hub.NewModule(ModuleName), connect: connect, prefix: prefix}
}

func (x *Extension) SharedStateName() string { return "" }
func (x *Extension) Version() string         { return version.Version }

func (x *Extension) OnRegistered() {
	if err := x.RegisterWildcardListener(hub.ListenerFunc(x.hear)); err != nil {
		x.Logger().Error("Failed to register assurance listener", logfields.Error(err))
		return
	}
	x.AddTaskToQueue("connect", x.open, hub.TaskOptions{})
}

func (x *Extension) OnUnregistered() {
	x.AddTaskToQueue("close publisher", func() {
		x.mu.Lock()
		pub := x.pub
		x.pub = nil
		x.mu.Unlock()
		if pub != nil {
			pub.Close()
		}
	}, hub.TaskOptions{RequiredForUnregistration: true})
}

// Published returns the number of events delivered to the sink.
func (x *Extension) Published() int64 { return x.published.Load() }

// Dropped returns the number of events that could not be delivered.
func (x *Extension) Dropped() int64 { return x.dropped.Load() }

func (x *Extension) open() {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	pub, err := x.connect(ctx)
	if err != nil {
		x.Logger().Warn("Assurance sink unavailable", logfields.Error(err))
		return
	}
	x.mu.Lock()
	x.pub = pub
	x.mu.Unlock()
}

func (x *Extension) hear(e *event.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		x.dropped.Add(1)
		x.Logger().Warn("Event not encoded", logfields.EventName(e.Name()), logfields.Error(err))
		return
	}
	subject := Subject(x.prefix, e)
	if !x.AddTaskToQueue("publish", func() { x.publish(subject, payload) }, hub.TaskOptions{}) {
		x.dropped.Add(1)
	}
}

func (x *Extension) publish(subject string, payload []byte) {
	x.mu.Lock()
	pub := x.pub
	x.mu.Unlock()
	if pub == nil {
		x.dropped.Add(1)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := pub.Publish(ctx, subject, payload); err != nil {
		x.dropped.Add(1)
		x.Logger().Debug("Event not published", logfields.Subject(subject), logfields.Error(err))
		return
	}
	x.published.Add(1)
}
