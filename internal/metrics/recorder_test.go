package metrics

import (
	"sync"
	"testing"
	"time"
)

// countingRecorder is a Recorder used to check that the interface can be
// satisfied by test doubles elsewhere in the tree.
type countingRecorder struct {
	NoopRecorder
	mu     sync.Mutex
	events map[string]int
}

func (c *countingRecorder) IncEventDispatched(eventType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[eventType]++
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncEventDispatched("a")
	r.ObserveEventDuration("a", time.Second)
	r.IncHitResult("t", "no")
}

func TestEmbeddedNoopRecorder(t *testing.T) {
	c := &countingRecorder{events: map[string]int{}}
	var r Recorder = c
	r.IncEventDispatched("a")
	r.IncEventDispatched("a")
	r.SetHitQueueSize("t", 1)
	if c.events["a"] != 2 {
		t.Fatalf("expected 2 events got %d", c.events["a"])
	}
}
