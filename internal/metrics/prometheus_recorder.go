package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "mobilecore"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	eventsDispatched  *prom.CounterVec
	eventDuration     *prom.HistogramVec
	registeredModules prom.Gauge
	sharedStates      *prom.CounterVec
	taskDuration      *prom.HistogramVec
	taskResults       *prom.CounterVec
	hitResults        *prom.CounterVec
	hitQueueSize      *prom.GaugeVec
	databaseResets    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.eventsDispatched = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Events dispatched through the hub by event type",
		}, []string{"type"})
		pr.eventDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_duration_seconds",
			Help:      "Time spent on the hub thread running processors, rules and listeners for one event",
			Buckets:   prom.DefBuckets,
		}, []string{"type"})
		pr.registeredModules = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_modules",
			Help:      "Modules currently registered with the hub",
		})
		pr.sharedStates = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "shared_state_changes_total",
			Help:      "Successful shared state mutations by owner",
		}, []string{"state"})
		pr.taskDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of executor tasks",
			Buckets:   prom.DefBuckets,
		}, []string{"executor"})
		pr.taskResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Executor task outcomes",
		}, []string{"executor", "result"})
		pr.hitResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hit_results_total",
			Help:      "Hit processor results by table and retry type",
		}, []string{"table", "retry"})
		pr.hitQueueSize = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "hit_queue_size",
			Help:      "Hits waiting in each queue table",
		}, []string{"table"})
		pr.databaseResets = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hit_database_resets_total",
			Help:      "Hit databases recreated after a fatal storage error",
		}, []string{"table"})
		reg.MustRegister(pr.eventsDispatched, pr.eventDuration, pr.registeredModules, pr.sharedStates,
			pr.taskDuration, pr.taskResults, pr.hitResults, pr.hitQueueSize, pr.databaseResets)
	})
	return pr
}

func (p *PrometheusRecorder) IncEventDispatched(eventType string) {
	if p == nil || p.eventsDispatched == nil {
		return
	}
	p.eventsDispatched.WithLabelValues(eventType).Inc()
}

func (p *PrometheusRecorder) ObserveEventDuration(eventType string, d time.Duration) {
	if p == nil || p.eventDuration == nil {
		return
	}
	p.eventDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetRegisteredModules(n int) {
	if p == nil || p.registeredModules == nil {
		return
	}
	p.registeredModules.Set(float64(n))
}

func (p *PrometheusRecorder) IncSharedStateChange(stateName string) {
	if p == nil || p.sharedStates == nil {
		return
	}
	p.sharedStates.WithLabelValues(stateName).Inc()
}

func (p *PrometheusRecorder) ObserveTaskDuration(executor string, d time.Duration) {
	if p == nil || p.taskDuration == nil {
		return
	}
	p.taskDuration.WithLabelValues(executor).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(executor string, result ResultLabel) {
	if p == nil || p.taskResults == nil {
		return
	}
	p.taskResults.WithLabelValues(executor, string(result)).Inc()
}

func (p *PrometheusRecorder) IncHitResult(table, retry string) {
	if p == nil || p.hitResults == nil {
		return
	}
	p.hitResults.WithLabelValues(table, retry).Inc()
}

func (p *PrometheusRecorder) SetHitQueueSize(table string, size int64) {
	if p == nil || p.hitQueueSize == nil {
		return
	}
	p.hitQueueSize.WithLabelValues(table).Set(float64(size))
}

func (p *PrometheusRecorder) IncDatabaseReset(table string) {
	if p == nil || p.databaseResets == nil {
		return
	}
	p.databaseResets.WithLabelValues(table).Inc()
}
