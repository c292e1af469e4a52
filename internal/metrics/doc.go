// Package metrics provides the observability hooks used by the event hub,
// the task executors and the hit queues.
//
// Components receive a Recorder through an option and default to NoopRecorder,
// so no call site needs a nil check:
//
//	hub := hub.New("main", hub.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// PrometheusRecorder registers its collectors on the supplied registry once;
// HTTPHandler exposes that registry for scraping.
package metrics
