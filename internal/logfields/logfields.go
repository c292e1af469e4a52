package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyHub         = "hub"
	KeyModule      = "module"
	KeyExecutor    = "executor"
	KeyTask        = "task"
	KeyEventName   = "event_name"
	KeyEventType   = "event_type"
	KeyEventSource = "event_source"
	KeyEventNumber = "event_number"
	KeyPairID      = "pair_id"
	KeyStateName   = "state_name"
	KeyVersion     = "version"
	KeyTable       = "table"
	KeyHitID       = "hit_id"
	KeyAttempt     = "attempt"
	KeyDelay       = "delay"
	KeyRetry       = "retry"
	KeyRule        = "rule"
	KeyConsequence = "consequence"
	KeyURL         = "url"
	KeyStatus      = "status"
	KeyPath        = "path"
	KeySubject     = "subject"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Hub(name string) slog.Attr { return slog.String(KeyHub, name) }
func Module(name string) slog.Attr { return slog.String(KeyModule, name) }
func Executor(name string) slog.Attr { return slog.String(KeyExecutor, name) }
func Task(name string) slog.Attr { return slog.String(KeyTask, name) }
func EventName(n string) slog.Attr { return slog.String(KeyEventName, n) }
func EventType(t string) slog.Attr { return slog.String(KeyEventType, t) }
func EventSource(s string) slog.Attr { return slog.String(KeyEventSource, s) }
func EventNumber(n int64) slog.Attr { return slog.Int64(KeyEventNumber, n) }
func PairID(id string) slog.Attr { return slog.String(KeyPairID, id) }
func StateName(n string) slog.Attr { return slog.String(KeyStateName, n) }
func Version(v int64) slog.Attr { return slog.Int64(KeyVersion, v) }
func Table(name string) slog.Attr { return slog.String(KeyTable, name) }
func HitID(id string) slog.Attr { return slog.String(KeyHitID, id) }
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }
func Delay(d time.Duration) slog.Attr { return slog.Duration(KeyDelay, d) }
func Retry(r string) slog.Attr { return slog.String(KeyRetry, r) }
func Rule(id string) slog.Attr { return slog.String(KeyRule, id) }
func Consequence(id string) slog.Attr { return slog.String(KeyConsequence, id) }
func URL(u string) slog.Attr { return slog.String(KeyURL, u) }
func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }
func Subject(s string) slog.Attr { return slog.String(KeySubject, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
