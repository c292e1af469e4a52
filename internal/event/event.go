// Package event defines the immutable messages routed by the event hub.
package event

import (
	"encoding/json"
	"math"
	"time"
)

// Event is an immutable message. Construct it with a Builder; the hub assigns
// the event number at dispatch.
type Event struct {
	name           string
	uniqueID       string
	eventType      Type
	source         Source
	pairID         string
	responsePairID string
	timestamp      time.Time
	number         int64
	data           Data
}

var (
	// SharedStateOldest resolves shared state queries to the first published state.
	SharedStateOldest = &Event{name: "SharedStateOldest", number: 0}
	// SharedStateNewest resolves shared state queries to the latest published state.
	SharedStateNewest = &Event{name: "SharedStateNewest", number: math.MaxInt64}
)

func (e *Event) Name() string           { return e.name }
func (e *Event) UniqueID() string       { return e.uniqueID }
func (e *Event) Type() Type             { return e.eventType }
func (e *Event) Source() Source         { return e.source }
func (e *Event) PairID() string         { return e.pairID }
func (e *Event) ResponsePairID() string { return e.responsePairID }
func (e *Event) Timestamp() time.Time   { return e.timestamp }
func (e *Event) Number() int64          { return e.number }

// Data returns a copy of the payload, so listeners cannot mutate the event.
func (e *Event) Data() Data { return e.data.Copy() }

// DataView returns the payload without copying. Callers must not modify it.
func (e *Event) DataView() Data { return e.data }

// Renumber returns a copy of e carrying event number n. The hub calls this at dispatch.
func (e *Event) Renumber(n int64) *Event {
	cp := *e
	cp.number = n
	return &cp
}

// Is reports whether e has the given type and source.
func (e *Event) Is(t Type, s Source) bool {
	return e.eventType == t && e.source == s
}

type wireEvent struct {
	Name           string    `json:"name"`
	UniqueID       string    `json:"uuid"`
	Type           Type      `json:"type"`
	Source         Source    `json:"source"`
	PairID         string    `json:"pairId,omitempty"`
	ResponsePairID string    `json:"responsePairId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Number         int64     `json:"eventNumber"`
	Data           Data      `json:"data,omitempty"`
}

// MarshalJSON renders the event for the admin API and the assurance stream.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		Name:           e.name,
		UniqueID:       e.uniqueID,
		Type:           e.eventType,
		Source:         e.source,
		PairID:         e.pairID,
		ResponsePairID: e.responsePairID,
		Timestamp:      e.timestamp,
		Number:         e.number,
		Data:           e.data,
	})
}
