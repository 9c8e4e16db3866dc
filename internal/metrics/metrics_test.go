package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	handler := r.Handler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	return w.Body.String()
}

func TestNewWithRegistry(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	r.RecordHTTPRequest("GET", "/health", 200, 0.01)
}

func TestRecordHTTPRequest(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())
	r.RecordHTTPRequest("POST", "/run-replan", 202, 0.05)
	r.RecordHTTPRequest("GET", "/health", 200, 0.001)

	body := scrape(t, r)
	if !strings.Contains(body, "http_requests_total") {
		t.Error("expected http_requests_total in scrape output")
	}
	if !strings.Contains(body, "http_request_duration_seconds") {
		t.Error("expected http_request_duration_seconds in scrape output")
	}
}

func TestRecordRunOutcome(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())
	r.RecordRunOutcome("completed", 42)
	r.RecordRunOutcome("rejected_single_flight", 0)

	body := scrape(t, r)
	if !strings.Contains(body, "replan_runs_total") {
		t.Error("expected replan_runs_total in scrape output")
	}
	if !strings.Contains(body, "replan_jobs_scheduled_per_run") {
		t.Error("expected replan_jobs_scheduled_per_run in scrape output")
	}
}

func TestRecordUnresolvedAndOverflowPass(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())
	r.RecordUnresolved("NO_ELIGIBLE_TECHNICIAN_EQUIPMENT")
	r.RecordOverflowPass("1")
	r.RecordOverflowPass("2")

	body := scrape(t, r)
	if !strings.Contains(body, "replan_unresolved_items_total") {
		t.Error("expected replan_unresolved_items_total in scrape output")
	}
	if !strings.Contains(body, `pass_number="2"`) {
		t.Error("expected pass_number label with value 2")
	}
}

func TestRecordPassDurationAndExternalCall(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())
	r.RecordPassDuration("today", 1.2)
	r.RecordExternalCall("optimizer", "Optimize", 0.8)

	body := scrape(t, r)
	if !strings.Contains(body, "replan_pass_duration_seconds") {
		t.Error("expected replan_pass_duration_seconds in scrape output")
	}
	if !strings.Contains(body, "external_call_duration_seconds") {
		t.Error("expected external_call_duration_seconds in scrape output")
	}
}

func TestGauges(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())
	r.SetActiveRuns("scheduled", 1)
	r.SetQueueDepth("replan:run", 3)
	r.SetSingleFlightLocked(true)
	r.SetSingleFlightLocked(false)

	body := scrape(t, r)
	if !strings.Contains(body, "replan_active_runs") {
		t.Error("expected replan_active_runs in scrape output")
	}
	if !strings.Contains(body, "replan_single_flight_locked 0") {
		t.Error("expected replan_single_flight_locked gauge reset to 0")
	}
}

func TestStatusCodeLabel(t *testing.T) {
	cases := map[int]string{200: "2xx", 301: "3xx", 404: "4xx", 500: "5xx", 0: "unknown"}
	for code, want := range cases {
		if got := statusCodeLabel(code); got != want {
			t.Errorf("statusCodeLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
