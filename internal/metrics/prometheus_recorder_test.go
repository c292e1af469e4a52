package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncEventDispatched("com.adobe.eventtype.hub")
	pr.ObserveEventDuration("com.adobe.eventtype.hub", 5*time.Millisecond)
	pr.SetRegisteredModules(3)
	pr.IncSharedStateChange("com.adobe.module.configuration")
	pr.ObserveTaskDuration("hub", time.Millisecond)
	pr.IncTaskResult("hub", ResultSuccess)
	pr.IncHitResult("signal_hits", "yes")
	pr.SetHitQueueSize("signal_hits", 4)
	pr.IncDatabaseReset("signal_hits")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 9 {
		t.Fatalf("expected 9 metric families, got %d", len(mfs))
	}
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncEventDispatched("x")
	pr.SetHitQueueSize("t", 1)
	pr.IncTaskResult("e", ResultPanic)
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).SetRegisteredModules(2)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mobilecore_registered_modules 2") {
		t.Fatalf("missing gauge in body:\n%s", rec.Body.String())
	}
}
