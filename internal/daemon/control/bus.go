// Package control carries in-process orchestration messages between the
// daemon's goroutines. Messages are not durable and never reach the hub.
package control

import (
	"context"
	"reflect"
	"sync"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.DaemonError("control bus is closed").Build()

// Bus fans typed messages out to subscriber channels. Publish blocks until
// every subscriber accepted the message or ctx is done.
type Bus struct {
	mu     sync.RWMutex
	topics map[reflect.Type][]*subscription
	closed bool
}

type subscription struct {
	mu      sync.RWMutex // held for reading while a delivery is in flight
	quit    chan struct{}
	once    sync.Once
	deliver func(ctx context.Context, msg any) error
	done    func()
}

func (s *subscription) close() {
	s.once.Do(func() {
		close(s.quit)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.done()
	})
}

func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type][]*subscription)}
}

// Subscribe returns a channel receiving every message of exactly type T and
// a function that cancels the subscription and closes the channel.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	ch := make(chan T, buffer)
	topic := reflect.TypeFor[T]()
	sub := &subscription{quit: make(chan struct{}), done: func() { close(ch) }}
	sub.deliver = func(ctx context.Context, msg any) error {
		sub.mu.RLock()
		defer sub.mu.RUnlock()
		select {
		case <-sub.quit:
			return nil
		default:
		}
		select {
		case ch <- msg.(T):
			return nil
		case <-sub.quit:
			return nil
		case <-ctx.Done():
			return errors.WrapError(ctx.Err(), errors.CategoryRuntime, "control message not delivered").
				WithContext("topic", topic.String()).
				Build()
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return ch, func() {}
	}
	b.topics[topic] = append(b.topics[topic], sub)
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		subs := b.topics[topic]
		for i, s := range subs {
			if s == sub {
				b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		b.mu.Unlock()
		sub.close()
	}
}

// Subscribers reports how many subscriptions exist for T.
func Subscribers[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[reflect.TypeFor[T]()])
}

// Publish delivers msg to the subscribers of its dynamic type.
func (b *Bus) Publish(ctx context.Context, msg any) error {
	if msg == nil {
		return errors.ValidationError("control message cannot be nil").Build()
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	targets := append([]*subscription(nil), b.topics[reflect.TypeOf(msg)]...)
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.deliver(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every subscription channel. Later publishes fail with ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[reflect.Type][]*subscription)
	b.mu.Unlock()

	for _, subs := range topics {
		for _, s := range subs {
			s.close()
		}
	}
}
