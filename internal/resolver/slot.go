package resolver

// Kind discriminates the value held by a Slot.
type Kind uint8

const (
	// KindData is a concrete, materialized state.
	KindData Kind = iota
	// KindPending marks a state that is on the way and will be resolved later.
	KindPending
	// KindInvalid marks a state known to be unusable.
	KindInvalid
	// KindNext defers to the next Data, Pending or Invalid state. Tracing only.
	KindNext
	// KindPrev defers to the previous state. Tracing only.
	KindPrev
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindPending:
		return "pending"
	case KindInvalid:
		return "invalid"
	case KindNext:
		return "next"
	case KindPrev:
		return "prev"
	default:
		return "unknown"
	}
}

// Slot is a shared state value or one of the four marker states.
type Slot[T any] struct {
	kind  Kind
	value T
}

// Data wraps a concrete value.
func Data[T any](v T) Slot[T] { return Slot[T]{kind: KindData, value: v} }

// Pending returns the pending marker.
func Pending[T any]() Slot[T] { return Slot[T]{kind: KindPending} }

// Invalid returns the invalid marker.
func Invalid[T any]() Slot[T] { return Slot[T]{kind: KindInvalid} }

// Next returns the marker deferring to the following state.
func Next[T any]() Slot[T] { return Slot[T]{kind: KindNext} }

// Prev returns the marker deferring to the preceding state.
func Prev[T any]() Slot[T] { return Slot[T]{kind: KindPrev} }

// Kind reports which variant s holds.
func (s Slot[T]) Kind() Kind { return s.kind }

// Value returns the wrapped value; ok is false for marker states.
func (s Slot[T]) Value() (v T, ok bool) {
	if s.kind != KindData {
		return v, false
	}
	return s.value, true
}

// IsData reports whether the slot holds a resolved value.
func (s Slot[T]) IsData() bool { return s.kind == KindData }

// IsPending reports whether the value is still being produced.
func (s Slot[T]) IsPending() bool { return s.kind == KindPending }

// IsInvalid reports whether the state is known to be unusable.
func (s Slot[T]) IsInvalid() bool { return s.kind == KindInvalid }

// isMarker reports Next/Prev, the two kinds that never surface from Get.
func (s Slot[T]) isMarker() bool { return s.kind == KindNext || s.kind == KindPrev }
