package metrics

import "time"

// ResultLabel enumerates outcome categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultPanic   ResultLabel = "panic"
	ResultDropped ResultLabel = "dropped"
)

// Recorder defines observability hooks for the event hub, executors and hit queues.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods must be
// safe for nil receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	IncEventDispatched(eventType string)
	ObserveEventDuration(eventType string, d time.Duration)
	SetRegisteredModules(n int)
	IncSharedStateChange(stateName string)
	ObserveTaskDuration(executor string, d time.Duration)
	IncTaskResult(executor string, result ResultLabel)
	IncHitResult(table, retry string)
	SetHitQueueSize(table string, size int64)
	IncDatabaseReset(table string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncEventDispatched(string) {}
func (NoopRecorder) ObserveEventDuration(string, time.Duration) {}
func (NoopRecorder) SetRegisteredModules(int) {}
func (NoopRecorder) IncSharedStateChange(string) {}
func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) IncTaskResult(string, ResultLabel) {}
func (NoopRecorder) IncHitResult(string, string) {}
func (NoopRecorder) SetHitQueueSize(string, int64) {}
func (NoopRecorder) IncDatabaseReset(string) {}
