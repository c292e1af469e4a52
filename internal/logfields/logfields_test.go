package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Hub", KeyHub, "main", Hub("main")},
		{"Module", KeyModule, "com.adobe.module.signal", Module("com.adobe.module.signal")},
		{"Executor", KeyExecutor, "hub", Executor("hub")},
		{"Task", KeyTask, "load", Task("load")},
		{"EventName", KeyEventName, "Configure", EventName("Configure")},
		{"EventType", KeyEventType, "com.adobe.eventtype.hub", EventType("com.adobe.eventtype.hub")},
		{"EventSource", KeyEventSource, "com.adobe.eventsource.booted", EventSource("com.adobe.eventsource.booted")},
		{"PairID", KeyPairID, "p1", PairID("p1")},
		{"StateName", KeyStateName, "s", StateName("s")},
		{"Table", KeyTable, "signal_hits", Table("signal_hits")},
		{"HitID", KeyHitID, "h1", HitID("h1")},
		{"Retry", KeyRetry, "yes", Retry("yes")},
		{"Rule", KeyRule, "r1", Rule("r1")},
		{"URL", KeyURL, "https://example.com", URL("https://example.com")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Subject", KeySubject, "events.a", Subject("events.a")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric helpers.
func TestNumericHelpers(t *testing.T) {
	if v := EventNumber(5); v.Key != KeyEventNumber || v.Value.Int64() != 5 {
		t.Fatalf("EventNumber mismatch: %v", v)
	}
	if v := Version(-1); v.Key != KeyVersion || v.Value.Int64() != -1 {
		t.Fatalf("Version mismatch: %v", v)
	}
	if v := Attempt(3); v.Key != KeyAttempt {
		t.Fatalf("Attempt key mismatch: %s", v.Key)
	}
	if v := Status(503); v.Key != KeyStatus {
		t.Fatalf("Status key mismatch: %s", v.Key)
	}
	if v := Delay(30 * time.Second); v.Key != KeyDelay || v.Value.Duration() != 30*time.Second {
		t.Fatalf("Delay mismatch: %v", v)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	if got := Error(errors.New("boom")).Value.String(); got != "boom" {
		t.Fatalf("Expected boom, got %s", got)
	}
}
