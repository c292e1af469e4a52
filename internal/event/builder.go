package event

import (
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
)

// ErrAlreadyBuilt is returned when Build is called more than once on a Builder.
var ErrAlreadyBuilt = errors.ContractError("event builder already built").Build()

// Builder assembles an Event. A Builder is single use.
type Builder struct {
	e     Event
	built bool
	now   func() time.Time
}

// NewBuilder starts an event with the given name, type and source.
func NewBuilder(name string, t Type, s Source) *Builder {
	return &Builder{
		e: Event{
			name:      name,
			eventType: NewType(string(t)),
			source:    NewSource(string(s)),
		},
		now: time.Now,
	}
}

// SetPairID sets the id a response event will carry as its pair id.
func (b *Builder) SetPairID(id string) *Builder {
	if !b.built {
		b.e.pairID = id
	}
	return b
}

// SetResponsePairID sets the id that responses to this event must use. When
// unset, Build generates one.
func (b *Builder) SetResponsePairID(id string) *Builder {
	if !b.built {
		b.e.responsePairID = id
	}
	return b
}

// SetTimestamp overrides the creation time.
func (b *Builder) SetTimestamp(ts time.Time) *Builder {
	if !b.built {
		b.e.timestamp = ts
	}
	return b
}

// SetData stores d as the payload without copying.
func (b *Builder) SetData(d Data) *Builder {
	if !b.built {
		b.e.data = d
	}
	return b
}

// CopyData stores a deep copy of d as the payload.
func (b *Builder) CopyData(d Data) *Builder {
	if !b.built {
		b.e.data = d.Copy()
	}
	return b
}

// SetEventNumber presets the event number. The hub overwrites it at dispatch.
func (b *Builder) SetEventNumber(n int64) *Builder {
	if !b.built {
		b.e.number = n
	}
	return b
}

// Build returns the event. Calling Build twice returns ErrAlreadyBuilt.
func (b *Builder) Build() (*Event, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	b.built = true

	e := b.e
	e.uniqueID = uuid.NewString()
	if e.responsePairID == "" {
		e.responsePairID = uuid.NewString()
	}
	if e.timestamp.IsZero() {
		e.timestamp = b.now()
	}
	if e.data == nil {
		e.data = Data{}
	}
	return &e, nil
}

// MustBuild is Build for call sites that construct a fresh builder inline.
func (b *Builder) MustBuild() *Event {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}
