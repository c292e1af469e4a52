package hitqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/mobilecore/internal/executor"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/metrics"
	"git.home.luguber.info/inful/mobilecore/internal/retry"
)

type options struct {
	policy    retry.Policy
	logger    *slog.Logger
	recorder  metrics.Recorder
	postReset func()
	suspended bool
}

// Option configures a Queue.
type Option func(*options)

// WithRetryPolicy sets the pause between RetryYes attempts.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the queue and database logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets where hit outcomes and database resets are recorded.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPostReset installs a hook run after the database is reset.
func WithPostReset(fn func()) Option {
	return func(o *options) { o.postReset = fn }
}

// StartSuspended creates the queue suspended; BringOnline starts draining.
func StartSuspended() Option {
	return func(o *options) { o.suspended = true }
}

// Queue is a durable delivery queue. Hits are handed to the processor
// oldest first by a single worker and deleted only when the processor
// returns RetryNo.
type Queue[T Hit] struct {
	db        *Database[T]
	processor Processor[T]
	policy    retry.Policy
	logger    *slog.Logger
	recorder  metrics.Recorder
	exec      *executor.TaskExecutor

	mu        sync.Mutex
	suspended bool
	disposed  bool
	running   bool
	dirty     bool
	attempt   int

	interrupt chan struct{}
	pauseHook func(time.Duration)
}

// New opens the schema's database and starts the queue. Hits already
// stored are drained immediately unless StartSuspended is given.
func New[T Hit](service Service, schema Schema[T], processor Processor[T], opts ...Option) (*Queue[T], error) {
	o := options{
		policy:   retry.DefaultPolicy(),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With(logfields.Table(schema.TableName()))

	db := NewDatabase(service, schema, logger, o.recorder)
	if o.postReset != nil {
		db.SetPostReset(o.postReset)
	}
	ctx := context.Background()
	if err := db.InitializeDatabase(ctx); err != nil {
		logger.Warn("Hit database initialization failed, resetting", logfields.Error(err))
		if rerr := db.Reset(ctx); rerr != nil {
			return nil, rerr
		}
	}

	exec, err := executor.New(1,
		executor.WithName("hitqueue:"+schema.TableName()),
		executor.WithLogger(logger),
		executor.WithRecorder(o.recorder))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	q := &Queue[T]{
		db:        db,
		processor: processor,
		policy:    o.policy,
		logger:    logger,
		recorder:  o.recorder,
		exec:      exec,
		suspended: o.suspended,
		interrupt: make(chan struct{}, 1),
	}
	q.kick()
	return q, nil
}

// Table returns the hit table name.
func (q *Queue[T]) Table() string { return q.db.Table() }

// Queue persists hit and wakes the worker. A missing identifier or
// timestamp is filled in. It reports whether the write succeeded.
func (q *Queue[T]) Queue(hit T) bool {
	if q.isDisposed() {
		return false
	}
	base := hit.Base()
	if base.Identifier == "" {
		base.Identifier = uuid.NewString()
	}
	if base.Timestamp == 0 {
		base.Timestamp = time.Now().Unix()
	}
	if err := q.db.Insert(context.Background(), hit); err != nil {
		q.logger.Error("Failed to queue hit", logfields.HitID(base.Identifier), logfields.Error(err))
		return false
	}
	q.kick()
	return true
}

// QueryHit returns the oldest hit matching query.
func (q *Queue[T]) QueryHit(query *Query) (T, bool) {
	hit, ok, err := q.db.QueryFirst(context.Background(), query)
	if err != nil {
		q.logger.Warn("Hit query failed", logfields.Error(err))
		return hit, false
	}
	return hit, ok
}

// SelectOldestHit returns the hit the worker would process next.
func (q *Queue[T]) SelectOldestHit() (T, bool) {
	hit, ok, err := q.db.Oldest(context.Background())
	if err != nil {
		q.logger.Warn("Selecting oldest hit failed", logfields.Error(err))
		return hit, false
	}
	return hit, ok
}

// UpdateHit overwrites the stored copy of hit.
func (q *Queue[T]) UpdateHit(hit T) bool {
	if err := q.db.UpdateHit(context.Background(), hit); err != nil {
		q.logger.Warn("Updating hit failed", logfields.HitID(hit.Base().Identifier), logfields.Error(err))
		return false
	}
	return true
}

// UpdateAllHits sets the given column values on every stored hit.
func (q *Queue[T]) UpdateAllHits(values map[string]any) bool {
	if err := q.db.UpdateAll(context.Background(), values); err != nil {
		q.logger.Warn("Updating all hits failed", logfields.Error(err))
		return false
	}
	return true
}

// DeleteAllHits removes every stored hit.
func (q *Queue[T]) DeleteAllHits() bool {
	if err := q.db.DeleteAllHits(context.Background()); err != nil {
		q.logger.Warn("Deleting hits failed", logfields.Error(err))
		return false
	}
	return true
}

// Size returns the number of stored hits, or 0 when the count fails.
func (q *Queue[T]) Size() int64 {
	n, err := q.db.Size(context.Background())
	if err != nil {
		return 0
	}
	q.recorder.SetHitQueueSize(q.Table(), n)
	return n
}

// Suspend stops the worker after the current hit. Stored hits are kept.
func (q *Queue[T]) Suspend() {
	q.mu.Lock()
	q.suspended = true
	q.mu.Unlock()
	q.wake()
}

// BringOnline resumes draining.
func (q *Queue[T]) BringOnline() {
	q.mu.Lock()
	q.suspended = false
	q.mu.Unlock()
	q.kick()
}

// IsSuspended reports whether the queue is suspended.
func (q *Queue[T]) IsSuspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended
}

func (q *Queue[T]) isDisposed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.disposed
}

// Dispose stops the worker and closes the database, waiting up to maxWait.
// A false result means the worker is still finishing a hit; the database is
// closed once it exits.
func (q *Queue[T]) Dispose(maxWait time.Duration) bool {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return q.exec.Dispose(0)
	}
	q.disposed = true
	q.mu.Unlock()
	q.wake()

	if q.exec.Dispose(maxWait) {
		q.closeDB()
		return true
	}
	go func() {
		<-q.exec.Done()
		q.closeDB()
	}()
	return false
}

func (q *Queue[T]) closeDB() {
	if err := q.db.Close(); err != nil {
		q.logger.Warn("Closing hit database failed", logfields.Error(err))
	}
}

// wake cuts short a retry pause. Only Suspend and Dispose use it.
func (q *Queue[T]) wake() {
	select {
	case q.interrupt <- struct{}{}:
	default:
	}
}

// kick schedules a drain pass unless one is running, in which case the
// running pass is told to look again before it stops. A retry pause in
// progress is left to run its full length.
func (q *Queue[T]) kick() {
	q.mu.Lock()
	if q.disposed || q.suspended {
		q.mu.Unlock()
		return
	}
	if q.running {
		q.dirty = true
		q.mu.Unlock()
		return
	}
	q.running = true
	q.dirty = false
	q.mu.Unlock()

	if !q.exec.AddTask("drain", q.drain, q.onTaskError) {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}
}

func (q *Queue[T]) onTaskError(task string, err error) {
	q.logger.Error("Hit queue worker failed", logfields.Task(task), logfields.Error(err))
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
}

// proceed reports whether the drain loop may continue. When idle is true it
// also stops unless a kick arrived since the last check.
func (q *Queue[T]) proceed(idle bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed || q.suspended || (idle && !q.dirty) {
		q.running = false
		q.dirty = false
		return false
	}
	q.dirty = false
	return true
}

func (q *Queue[T]) drain() error {
	select {
	case <-q.interrupt:
	default:
	}
	ctx := context.Background()
	table := q.Table()
	for q.proceed(false) {
		hit, ok, err := q.db.Oldest(ctx)
		if err != nil || !ok {
			if q.proceed(true) {
				continue
			}
			return nil
		}

		result := q.processor.Process(hit)
		q.recorder.IncHitResult(table, result.String())
		id := hit.Base().Identifier

		switch result {
		case RetryNo:
			q.attempt = 0
			if err := q.db.DeleteHitWithIdentifier(ctx, id); err != nil {
				q.logger.Warn("Deleting processed hit failed", logfields.HitID(id), logfields.Error(err))
			}
		case RetryYes:
			q.attempt++
			delay := q.policy.Delay(q.attempt)
			q.logger.Debug("Hit will be retried", logfields.HitID(id),
				logfields.Attempt(q.attempt), logfields.Delay(delay))
			q.pause(delay)
		default:
			q.attempt = 0
			q.logger.Debug("Hit processing paused", logfields.HitID(id))
			if q.proceed(true) {
				continue
			}
			return nil
		}
	}
	return nil
}

func (q *Queue[T]) pause(d time.Duration) {
	if q.pauseHook != nil {
		q.pauseHook(d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-q.interrupt:
	}
}
