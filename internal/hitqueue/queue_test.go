package hitqueue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/retry"
)

const waitFor = 2 * time.Second

type recordingProcessor struct {
	mu     sync.Mutex
	seen   []string
	decide func(h *testHit, call int) RetryType
	calls  int
}

func (p *recordingProcessor) Process(h *testHit) RetryType {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.seen = append(p.seen, h.Identifier)
	decide := p.decide
	p.mu.Unlock()
	if decide == nil {
		return RetryNo
	}
	return decide(h, call)
}

func (p *recordingProcessor) setDecide(fn func(h *testHit, call int) RetryType) {
	p.mu.Lock()
	p.decide = fn
	p.mu.Unlock()
}

func (p *recordingProcessor) snapshot() ([]string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...), p.calls
}

func fastPolicy() retry.Policy {
	return retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond)
}

func newTestQueue(t *testing.T, p Processor[*testHit], opts ...Option) *Queue[*testHit] {
	t.Helper()
	svc, err := NewSQLiteService(t.TempDir())
	require.NoError(t, err)
	opts = append([]Option{WithRetryPolicy(fastPolicy())}, opts...)
	q, err := New[*testHit](svc, newTestSchema(), p, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { q.Dispose(time.Second) })
	return q
}

func TestQueueDeliversOldestFirst(t *testing.T) {
	p := &recordingProcessor{}
	q := newTestQueue(t, p, StartSuspended())

	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "late", Timestamp: 300}}))
	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "early", Timestamp: 100}}))
	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "middle", Timestamp: 200}}))
	assert.True(t, q.IsSuspended())
	assert.Equal(t, int64(3), q.Size())

	q.BringOnline()
	require.Eventually(t, func() bool { return q.Size() == 0 }, waitFor, 5*time.Millisecond)
	seen, _ := p.snapshot()
	assert.Equal(t, []string{"early", "middle", "late"}, seen)
}

func TestQueueFillsIdentifierAndTimestamp(t *testing.T) {
	q := newTestQueue(t, &recordingProcessor{}, StartSuspended())
	h := &testHit{URL: "https://example.com"}
	require.True(t, q.Queue(h))
	assert.NotEmpty(t, h.Identifier)
	assert.NotZero(t, h.Timestamp)

	got, ok := q.SelectOldestHit()
	require.True(t, ok)
	assert.Equal(t, h.Identifier, got.Identifier)
	assert.Equal(t, "https://example.com", got.URL)
}

func TestQueueRetriesUntilDone(t *testing.T) {
	const failures = 3
	p := &recordingProcessor{decide: func(_ *testHit, call int) RetryType {
		if call <= failures {
			return RetryYes
		}
		return RetryNo
	}}
	q := newTestQueue(t, p, StartSuspended())

	var pauses atomic.Int32
	q.pauseHook = func(d time.Duration) {
		assert.Equal(t, time.Millisecond, d)
		pauses.Add(1)
	}
	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "only"}}))
	q.BringOnline()

	require.Eventually(t, func() bool { return q.Size() == 0 }, waitFor, 5*time.Millisecond)
	seen, calls := p.snapshot()
	assert.Equal(t, failures+1, calls)
	for _, id := range seen {
		assert.Equal(t, "only", id)
	}
	assert.Equal(t, int32(failures), pauses.Load())
}

func TestQueueNewHitDoesNotShortenRetryPause(t *testing.T) {
	p := &recordingProcessor{decide: func(*testHit, int) RetryType { return RetryYes }}
	q := newTestQueue(t, p, WithRetryPolicy(retry.NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour)))

	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "failing", Timestamp: 1}}))
	require.Eventually(t, func() bool { _, c := p.snapshot(); return c == 1 }, waitFor, 5*time.Millisecond)

	for i := range 5 {
		require.True(t, q.Queue(&testHit{HitBase: HitBase{Timestamp: int64(10 + i)}}))
	}
	time.Sleep(50 * time.Millisecond)
	seen, calls := p.snapshot()
	assert.Equal(t, 1, calls, "head hit retried before its pause elapsed")
	assert.Equal(t, []string{"failing"}, seen)
	assert.Equal(t, int64(6), q.Size())
}

func TestQueueBreakStopsDraining(t *testing.T) {
	p := &recordingProcessor{decide: func(*testHit, int) RetryType { return RetryBreak }}
	q := newTestQueue(t, p, StartSuspended())

	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "a", Timestamp: 1}}))
	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "b", Timestamp: 2}}))
	q.BringOnline()

	require.Eventually(t, func() bool { _, c := p.snapshot(); return c >= 1 }, waitFor, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	seen, calls := p.snapshot()
	assert.Equal(t, 1, calls, "break must not spin on the same hit")
	assert.Equal(t, []string{"a"}, seen)
	assert.Equal(t, int64(2), q.Size())

	p.setDecide(nil)
	q.BringOnline()
	require.Eventually(t, func() bool { return q.Size() == 0 }, waitFor, 5*time.Millisecond)
}

func TestQueueSuspendKeepsHits(t *testing.T) {
	block := make(chan struct{})
	p := &recordingProcessor{decide: func(*testHit, int) RetryType {
		<-block
		return RetryNo
	}}
	q := newTestQueue(t, p)

	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "a", Timestamp: 1}}))
	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "b", Timestamp: 2}}))
	require.Eventually(t, func() bool { _, c := p.snapshot(); return c == 1 }, waitFor, 5*time.Millisecond)

	q.Suspend()
	close(block)
	require.Eventually(t, func() bool { return q.Size() == 1 }, waitFor, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	_, calls := p.snapshot()
	assert.Equal(t, 1, calls)

	q.BringOnline()
	require.Eventually(t, func() bool { return q.Size() == 0 }, waitFor, 5*time.Millisecond)
}

func TestQueueUpdateAllHits(t *testing.T) {
	q := newTestQueue(t, &recordingProcessor{}, StartSuspended())
	for _, id := range []string{"a", "b"} {
		require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: id}, Retry: 1}))
	}
	require.True(t, q.UpdateAllHits(map[string]any{"RETRY": int64(0)}))

	query, err := NewQueryBuilder(q.Table()).Selection(`"RETRY" = ?`, 1).Build()
	require.NoError(t, err)
	_, ok := q.QueryHit(query)
	assert.False(t, ok)

	hit, ok := q.SelectOldestHit()
	require.True(t, ok)
	hit.URL = "changed"
	require.True(t, q.UpdateHit(hit))
	query, _ = NewQueryBuilder(q.Table()).Selection(`"URL" = ?`, "changed").Build()
	got, ok := q.QueryHit(query)
	require.True(t, ok)
	assert.Equal(t, hit.Identifier, got.Identifier)
}

func TestQueueDispose(t *testing.T) {
	p := &recordingProcessor{decide: func(*testHit, int) RetryType { return RetryYes }}
	svc, err := NewSQLiteService(t.TempDir())
	require.NoError(t, err)
	q, err := New[*testHit](svc, newTestSchema(), p,
		WithRetryPolicy(retry.NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour)))
	require.NoError(t, err)

	require.True(t, q.Queue(&testHit{HitBase: HitBase{Identifier: "stuck"}}))
	require.Eventually(t, func() bool { _, c := p.snapshot(); return c == 1 }, waitFor, 5*time.Millisecond)

	// The hour-long pause is interrupted by Dispose.
	assert.True(t, q.Dispose(time.Second))
	assert.True(t, q.Dispose(time.Second))
	assert.False(t, q.Queue(&testHit{}))
	_, ok := q.SelectOldestHit()
	assert.False(t, ok)
}

func TestQueueDisposeTimesOutWhileProcessing(t *testing.T) {
	release := make(chan struct{})
	p := &recordingProcessor{decide: func(*testHit, int) RetryType {
		<-release
		return RetryNo
	}}
	svc, err := NewSQLiteService(t.TempDir())
	require.NoError(t, err)
	q, err := New[*testHit](svc, newTestSchema(), p)
	require.NoError(t, err)

	require.True(t, q.Queue(&testHit{}))
	require.Eventually(t, func() bool { _, c := p.snapshot(); return c == 1 }, waitFor, 5*time.Millisecond)

	assert.False(t, q.Dispose(10*time.Millisecond))
	close(release)
	require.Eventually(t, func() bool { return q.Dispose(0) }, waitFor, 5*time.Millisecond)
}
