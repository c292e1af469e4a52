package resolver

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, s Slot[string]) string {
	t.Helper()
	v, ok := s.Value()
	require.True(t, ok, "expected data, got %s", s.Kind())
	return v
}

func TestEmptyResolverIsPending(t *testing.T) {
	r := New[string]()
	for _, v := range []int64{-10, -1, 0, 42} {
		assert.True(t, r.Get(v).IsPending(), "version %d", v)
	}
	assert.False(t, r.ContainsValidState(), "seed marker is not a valid state")
	assert.Equal(t, 1, r.Len())
}

func TestAddIsStrictlyMonotonic(t *testing.T) {
	r := New[string]()
	require.True(t, r.Add(0, Data("a")))
	require.True(t, r.Add(5, Data("b")))

	assert.False(t, r.Add(5, Data("dup")))
	assert.False(t, r.Add(3, Data("old")))
	assert.False(t, r.Add(-1, Data("seed")))
	assert.Equal(t, 3, r.Len(), "refused adds must not mutate")
	assert.Equal(t, int64(5), r.LatestVersion())
}

func TestAddRejectsMarkers(t *testing.T) {
	r := New[string]()
	assert.False(t, r.Add(1, Next[string]()))
	assert.False(t, r.Add(1, Prev[string]()))
	assert.True(t, r.Add(1, Invalid[string]()))
	assert.True(t, r.Add(2, Pending[string]()))
}

func TestGetResolvesLowerVersion(t *testing.T) {
	r := New[string]()
	r.Add(2, Data("two"))
	r.Add(6, Data("six"))

	assert.Equal(t, "two", value(t, r.Get(2)))
	assert.Equal(t, "two", value(t, r.Get(3)))
	assert.Equal(t, "two", value(t, r.Get(5)))
	assert.Equal(t, "six", value(t, r.Get(6)))
	assert.Equal(t, "six", value(t, r.Get(100)))
	assert.Equal(t, "six", value(t, r.Latest()))
}

func TestGetBeforeFirstStateDefersToNext(t *testing.T) {
	r := New[string]()
	r.Add(5, Data("five"))
	// only the seed Next marker lies below version 2
	assert.Equal(t, "five", value(t, r.Get(2)))
	assert.Equal(t, "five", value(t, r.Get(-7)))
}

func TestUpdateOnlyReplacesPending(t *testing.T) {
	r := New[string]()
	r.Add(1, Data("one"))
	r.Add(2, Pending[string]())

	assert.False(t, r.Update(1, Data("rewrite")), "data is immutable")
	assert.False(t, r.Update(3, Data("missing")), "no slot at version")
	assert.False(t, r.Update(2, Pending[string]()), "pending to pending is a no-op")
	assert.True(t, r.Get(2).IsPending())

	assert.True(t, r.Update(2, Data("two")))
	assert.Equal(t, "two", value(t, r.Get(2)))
	assert.False(t, r.Update(2, Data("again")), "resolved slots stay resolved")
}

func TestUpdateToPrevDefersBackward(t *testing.T) {
	r := New[string]()
	r.Add(1, Data("one"))
	r.Add(2, Pending[string]())
	require.True(t, r.Update(2, Prev[string]()))

	assert.Equal(t, "one", value(t, r.Get(2)))
	assert.Equal(t, "one", value(t, r.Get(9)))
}

func TestUpdateToNextDefersForward(t *testing.T) {
	r := New[string]()
	r.Add(1, Data("one"))
	r.Add(2, Pending[string]())
	require.True(t, r.Update(2, Next[string]()))

	assert.True(t, r.Get(2).IsPending(), "nothing follows yet")
	assert.Equal(t, "one", value(t, r.Get(1)))

	r.Add(4, Data("four"))
	assert.Equal(t, "four", value(t, r.Get(2)))
	assert.Equal(t, "four", value(t, r.Get(3)))
}

func TestPrevChainThenNext(t *testing.T) {
	r := New[string]()
	r.Add(0, Pending[string]())
	r.Add(1, Pending[string]())
	r.Update(0, Next[string]())
	r.Update(1, Prev[string]())
	// 1 -> back to 0 (Next) -> forward past 1 (Prev) -> end
	assert.True(t, r.Get(1).IsPending())

	r.Add(2, Data("two"))
	assert.Equal(t, "two", value(t, r.Get(1)))
}

func TestInvalidSurfaces(t *testing.T) {
	r := New[string]()
	r.Add(1, Invalid[string]())
	assert.True(t, r.Get(1).IsInvalid())
	assert.False(t, r.ContainsValidState())

	r.Add(2, Pending[string]())
	assert.True(t, r.ContainsValidState(), "pending counts as valid")
}

// TestRandomOperationsNeverLeakMarkers drives random Add/Update sequences and
// checks that Get only ever yields Data, Pending or Invalid, and that a
// resolved Data answer for a resolved entry never changes afterwards.
func TestRandomOperationsNeverLeakMarkers(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	kinds := []func(int) Slot[int]{
		func(v int) Slot[int] { return Data(v) },
		func(int) Slot[int] { return Pending[int]() },
		func(int) Slot[int] { return Invalid[int]() },
		func(int) Slot[int] { return Next[int]() },
		func(int) Slot[int] { return Prev[int]() },
	}

	for round := range 200 {
		r := New[int]()
		frozen := map[int64]Slot[int]{}
		for step := range 60 {
			v := int64(rng.IntN(40))
			s := kinds[rng.IntN(len(kinds))](step)
			if rng.IntN(2) == 0 {
				r.Add(v, s)
			} else {
				r.Update(v, s)
			}

			for q := int64(-2); q < 42; q++ {
				got := r.Get(q)
				require.NotEqual(t, KindNext, got.Kind(), "round %d", round)
				require.NotEqual(t, KindPrev, got.Kind(), "round %d", round)
			}
			for q, want := range frozen {
				require.Equal(t, want, r.Get(q), "round %d version %d changed", round, q)
			}
			// freeze exact entries that hold concrete data
			for i, ver := range r.versions {
				if r.slots[i].IsData() {
					frozen[ver] = r.Get(ver)
				}
			}
		}
	}
}
