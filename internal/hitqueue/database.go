package hitqueue

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/metrics"
)

// ErrDatabaseClosed is returned by operations on a closed Database.
var ErrDatabaseClosed = errors.HitQueueError("hit database closed").Build()

// ErrConstraintViolation is returned when a write breaks a table constraint,
// such as a second hit with the same identifier. The database is left as is.
var ErrConstraintViolation = errors.HitQueueError("hit violates a table constraint").Build()

// DatabaseStatus reports whether the last storage operation succeeded.
type DatabaseStatus int

const (
	StatusOK DatabaseStatus = iota
	StatusFatalError
)

func (s DatabaseStatus) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "fatal_error"
}

// Database persists hits of one schema in one table. A storage failure
// marks the database fatal and resets it: the file is deleted, recreated
// and PostReset is invoked. Queued hits are lost on reset. Constraint
// violations are returned to the caller without a reset.
type Database[T Hit] struct {
	service  Service
	schema   Schema[T]
	logger   *slog.Logger
	recorder metrics.Recorder

	mu        sync.Mutex
	store     Store
	status    DatabaseStatus
	closed    bool
	postReset func()
}

// NewDatabase binds schema to databases opened from service. Call
// OpenOrCreateDatabase and InitializeDatabase before use.
func NewDatabase[T Hit](service Service, schema Schema[T], logger *slog.Logger, recorder metrics.Recorder) *Database[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Database[T]{service: service, schema: schema, logger: logger, recorder: recorder}
}

// SetPostReset installs a hook run after every reset.
func (d *Database[T]) SetPostReset(fn func()) {
	d.mu.Lock()
	d.postReset = fn
	d.mu.Unlock()
}

// Status returns the status of the last operation.
func (d *Database[T]) Status() DatabaseStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Table returns the hit table name.
func (d *Database[T]) Table() string { return d.schema.TableName() }

// OpenOrCreateDatabase opens the schema's database.
func (d *Database[T]) OpenOrCreateDatabase() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openLocked()
}

func (d *Database[T]) openLocked() error {
	if d.store != nil {
		return nil
	}
	st, err := d.service.OpenDatabase(d.schema.DatabaseName())
	if err != nil {
		d.status = StatusFatalError
		return errors.WrapError(err, errors.CategoryStorage, "open hit database").
			WithContext("database", d.schema.DatabaseName()).
			Build()
	}
	d.store = st
	d.status = StatusOK
	d.closed = false
	return nil
}

// InitializeDatabase creates the hit table and migrates it when its
// columns differ from the schema.
func (d *Database[T]) InitializeDatabase(ctx context.Context) error {
	d.mu.Lock()
	if err := d.openLocked(); err != nil {
		d.mu.Unlock()
		return err
	}
	reset, err := d.initTableLocked(ctx, true)
	hook := d.postReset
	d.mu.Unlock()
	if reset && hook != nil {
		hook()
	}
	return err
}

// initTableLocked creates and migrates the table. It reports whether the
// database was reset because the migration failed.
func (d *Database[T]) initTableLocked(ctx context.Context, allowReset bool) (bool, error) {
	table := d.schema.TableName()
	if err := d.store.CreateTable(ctx, table, d.schema.Columns()); err != nil {
		d.status = StatusFatalError
		return false, errors.WrapError(err, errors.CategoryStorage, "create hit table").WithContext("table", table).Build()
	}
	_, reset, err := d.migrateLocked(ctx, allowReset)
	if err != nil || reset {
		return reset, err
	}
	d.status = StatusOK
	return false, nil
}

// MigrateDatabaseIfNeeded rebuilds the hit table when its columns differ
// from the schema, keeping the values of the columns both share. When the
// rebuild fails the database is reset. It reports whether the table was
// migrated.
func (d *Database[T]) MigrateDatabaseIfNeeded(ctx context.Context) (bool, error) {
	d.mu.Lock()
	if d.closed || d.store == nil {
		d.mu.Unlock()
		return false, ErrDatabaseClosed
	}
	migrated, reset, err := d.migrateLocked(ctx, true)
	hook := d.postReset
	d.mu.Unlock()
	if reset && hook != nil {
		hook()
	}
	return migrated, err
}

func (d *Database[T]) migrateLocked(ctx context.Context, allowReset bool) (migrated, reset bool, err error) {
	table := d.schema.TableName()
	cols := d.schema.Columns()
	existing, err := d.store.TableColumns(ctx, table)
	if err != nil {
		d.status = StatusFatalError
		return false, false, errors.WrapError(err, errors.CategoryStorage, "read hit table columns").WithContext("table", table).Build()
	}
	if slices.Equal(existing, columnNames(cols)) {
		return false, false, nil
	}
	d.logger.Info("Migrating hit table", logfields.Table(table),
		slog.Any("from", existing), slog.Any("to", columnNames(cols)))
	if mErr := d.store.MigrateTable(ctx, table, cols); mErr != nil {
		d.status = StatusFatalError
		if !allowReset {
			return false, false, errors.WrapError(mErr, errors.CategoryStorage, "migrate hit table").WithContext("table", table).Build()
		}
		d.logger.Error("Hit table migration failed, resetting", logfields.Table(table), logfields.Error(mErr))
		return false, true, d.resetLocked(ctx)
	}
	return true, false, nil
}

// with runs fn against the open store and resets the database if fn fails
// with anything but a constraint violation.
func (d *Database[T]) with(ctx context.Context, op string, fn func(Store) error) error {
	d.mu.Lock()
	if d.closed || d.store == nil {
		d.mu.Unlock()
		return ErrDatabaseClosed
	}
	err := fn(d.store)
	if err == nil {
		d.status = StatusOK
		d.mu.Unlock()
		return nil
	}
	if stderrors.Is(err, ErrConstraintViolation) {
		d.mu.Unlock()
		d.logger.Warn("Hit rejected by table constraint",
			logfields.Table(d.schema.TableName()), slog.String("op", op), logfields.Error(err))
		return err
	}
	d.status = StatusFatalError
	d.logger.Error("Hit database operation failed, resetting",
		logfields.Table(d.schema.TableName()), slog.String("op", op), logfields.Error(err))
	if rerr := d.resetLocked(ctx); rerr != nil {
		d.logger.Error("Hit database reset failed", logfields.Table(d.schema.TableName()), logfields.Error(rerr))
	}
	hook := d.postReset
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return errors.WrapError(err, errors.CategoryStorage, op).WithContext("table", d.schema.TableName()).Build()
}

// Insert persists hit.
func (d *Database[T]) Insert(ctx context.Context, hit T) error {
	return d.with(ctx, "insert hit", func(s Store) error {
		return s.Insert(ctx, d.schema.TableName(), d.schema.GenerateDataMap(hit))
	})
}

// Query returns the hits matching q. Rows that cannot be decoded are skipped.
func (d *Database[T]) Query(ctx context.Context, q *Query) ([]T, error) {
	var rows []Row
	err := d.with(ctx, "query hits", func(s Store) error {
		var err error
		rows, err = s.Query(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	hits := make([]T, 0, len(rows))
	for _, row := range rows {
		h, err := d.schema.GenerateHit(row)
		if err != nil {
			d.logger.Warn("Skipping undecodable hit", logfields.Table(d.schema.TableName()),
				logfields.HitID(row.String(ColumnID)), logfields.Error(err))
			continue
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func (d *Database[T]) first(ctx context.Context, q *Query) (T, bool, error) {
	var zero T
	hits, err := d.Query(ctx, q)
	if err != nil || len(hits) == 0 {
		return zero, false, err
	}
	return hits[0], true, nil
}

// Oldest returns the hit with the smallest timestamp.
func (d *Database[T]) Oldest(ctx context.Context) (T, bool, error) {
	q, _ := NewQueryBuilder(d.schema.TableName()).OrderBy(oldestFirst).Limit("1").Build()
	return d.first(ctx, q)
}

// QueryFirst returns the first hit matching q in timestamp order.
func (d *Database[T]) QueryFirst(ctx context.Context, q *Query) (T, bool, error) {
	nq := *q
	if nq.orderBy == "" {
		nq.orderBy = oldestFirst
	}
	nq.limit = "1"
	return d.first(ctx, &nq)
}

// UpdateHit rewrites the stored row with hit's identifier.
func (d *Database[T]) UpdateHit(ctx context.Context, hit T) error {
	values := d.schema.GenerateDataMap(hit)
	delete(values, ColumnID)
	return d.with(ctx, "update hit", func(s Store) error {
		return s.Update(ctx, d.schema.TableName(), values, quote(ColumnID)+" = ?", hit.Base().Identifier)
	})
}

// UpdateAll sets values on every stored hit.
func (d *Database[T]) UpdateAll(ctx context.Context, values map[string]any) error {
	if _, ok := values[ColumnID]; ok {
		return errors.ValidationError("cannot bulk update hit identifiers").Build()
	}
	return d.with(ctx, "update all hits", func(s Store) error {
		return s.Update(ctx, d.schema.TableName(), values, "")
	})
}

// DeleteHitWithIdentifier removes one hit. A missing identifier is not an error.
func (d *Database[T]) DeleteHitWithIdentifier(ctx context.Context, id string) error {
	if id == "" {
		return errors.ValidationError("empty hit identifier").Build()
	}
	return d.with(ctx, "delete hit", func(s Store) error {
		return s.Delete(ctx, d.schema.TableName(), quote(ColumnID)+" = ?", id)
	})
}

// DeleteAllHits empties the table.
func (d *Database[T]) DeleteAllHits(ctx context.Context) error {
	return d.with(ctx, "delete all hits", func(s Store) error {
		return s.Delete(ctx, d.schema.TableName(), "")
	})
}

// Size returns the number of stored hits.
func (d *Database[T]) Size(ctx context.Context) (int64, error) {
	q, _ := NewQueryBuilder(d.schema.TableName()).Build()
	return d.SizeMatching(ctx, q)
}

// SizeMatching counts the hits matching q.
func (d *Database[T]) SizeMatching(ctx context.Context, q *Query) (int64, error) {
	var n int64
	err := d.with(ctx, "count hits", func(s Store) error {
		var err error
		n, err = s.Count(ctx, q)
		return err
	})
	return n, err
}

// DeleteTable drops the hit table; InitializeDatabase recreates it.
func (d *Database[T]) DeleteTable(ctx context.Context) error {
	return d.with(ctx, "delete hit table", func(s Store) error {
		return s.DropTable(ctx, d.schema.TableName())
	})
}

// Reset deletes and recreates the database, then runs PostReset.
func (d *Database[T]) Reset(ctx context.Context) error {
	d.mu.Lock()
	err := d.resetLocked(ctx)
	hook := d.postReset
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (d *Database[T]) resetLocked(ctx context.Context) error {
	table := d.schema.TableName()
	d.recorder.IncDatabaseReset(table)
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("Closing hit database before reset failed", logfields.Table(table), logfields.Error(err))
		}
		d.store = nil
	}
	if err := d.service.DeleteDatabase(d.schema.DatabaseName()); err != nil {
		d.status = StatusFatalError
		return fmt.Errorf("delete hit database: %w", err)
	}
	if err := d.openLocked(); err != nil {
		return err
	}
	if _, err := d.initTableLocked(ctx, false); err != nil {
		return err
	}
	d.logger.Warn("Hit database reset", logfields.Table(table))
	return nil
}

// Close releases the store. Later operations return ErrDatabaseClosed.
func (d *Database[T]) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.store == nil {
		return nil
	}
	err := d.store.Close()
	d.store = nil
	return err
}
