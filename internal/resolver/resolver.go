// Package resolver implements versioned shared-state resolution.
//
// A RangedResolver answers "what was the most recent valid state as of
// version v" over a sparse, strictly increasing version axis. States may be
// published as Pending and later resolved to Data, Invalid, Next or Prev
// without rewriting already observed history.
package resolver

import (
	"math"
	"slices"
)

// initialVersion holds the seed Next marker so that queries made before any
// state exists wait for the first future value.
const initialVersion int64 = -1

// RangedResolver stores one module's shared state history.
//
// It is not safe for concurrent use; the owner serializes access.
type RangedResolver[T any] struct {
	versions []int64 // strictly increasing
	slots    []Slot[T]
}

// New returns a resolver seeded with a Next marker at version -1.
func New[T any]() *RangedResolver[T] {
	return &RangedResolver[T]{
		versions: []int64{initialVersion},
		slots:    []Slot[T]{Next[T]()},
	}
}

// Add appends state at version. It refuses Next/Prev states and versions not
// strictly greater than the highest stored version.
func (r *RangedResolver[T]) Add(version int64, state Slot[T]) bool {
	if state.isMarker() {
		return false
	}
	if version <= r.versions[len(r.versions)-1] {
		return false
	}
	r.versions = append(r.versions, version)
	r.slots = append(r.slots, state)
	return true
}

// Update replaces the Pending state stored at exactly version. Any state is
// accepted except Pending itself, so a pending-to-pending update reports no change.
func (r *RangedResolver[T]) Update(version int64, state Slot[T]) bool {
	if state.IsPending() {
		return false
	}
	i, found := slices.BinarySearch(r.versions, version)
	if !found || !r.slots[i].IsPending() {
		return false
	}
	r.slots[i] = state
	return true
}

// Get resolves the state effective at version. The result is always Data,
// Pending or Invalid.
func (r *RangedResolver[T]) Get(version int64) Slot[T] {
	i, found := slices.BinarySearch(r.versions, version)
	switch {
	case i == len(r.versions):
		// beyond all stored data: latest state below version
		if i == 0 {
			return Pending[T]()
		}
		return r.resolve(i - 1)
	case !found && i > 0:
		// no state at version: the one in effect below it
		return r.resolve(i - 1)
	default:
		// exact match, or only higher versions exist
		return r.resolve(i)
	}
}

// Latest resolves the most recent state.
func (r *RangedResolver[T]) Latest() Slot[T] {
	return r.Get(math.MaxInt64)
}

// ContainsValidState reports whether any stored state is Data or Pending.
func (r *RangedResolver[T]) ContainsValidState() bool {
	for _, s := range r.slots {
		if s.kind == KindData || s.kind == KindPending {
			return true
		}
	}
	return false
}

// Len returns the number of stored entries including the seed marker.
func (r *RangedResolver[T]) Len() int { return len(r.versions) }

// LatestVersion returns the highest stored version.
func (r *RangedResolver[T]) LatestVersion() int64 {
	return r.versions[len(r.versions)-1]
}

// resolve traces back through Prev markers, then forward through Next and
// Prev markers. Falling off the end yields Pending.
func (r *RangedResolver[T]) resolve(i int) Slot[T] {
	if i < 0 || i >= len(r.slots) {
		return Pending[T]()
	}
	for i > 0 && r.slots[i].kind == KindPrev {
		i--
	}
	// once we move forward we never go back
	for i < len(r.slots) && r.slots[i].isMarker() {
		i++
	}
	if i == len(r.slots) {
		return Pending[T]()
	}
	return r.slots[i]
}
