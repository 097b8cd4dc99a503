package api

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestHealthz(t *testing.T) {
	h := newHarness(t, false)

	var body healthResponse
	resp := h.do(t, http.MethodGet, "/healthz", nil, &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	want := healthResponse{Status: "ok", PoolSize: 4, Targets: 3}
	if body != want {
		t.Errorf("healthz = %+v, want %+v", body, want)
	}
}

func TestHealthzCountsRunningTargets(t *testing.T) {
	h := newHarness(t, false)
	h.wait(t, h.submit(t, "echo", "warm up"))

	var body healthResponse
	h.do(t, http.MethodGet, "/healthz", nil, &body)
	if body.RunningTargets != 1 {
		t.Errorf("running_targets = %d, want 1", body.RunningTargets)
	}
}

func TestMetricsExposition(t *testing.T) {
	h := newHarness(t, false)
	h.wait(t, h.submit(t, "echo", "count me"))

	resp, err := http.Get(h.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") && !strings.HasPrefix(ct, "application/openmetrics-text") {
		t.Errorf("Content-Type = %q, want prometheus exposition", ct)
	}
	raw, _ := io.ReadAll(resp.Body)
	body := string(raw)

	for _, name := range []string{
		"dispatch_http_requests_total",
		"dispatch_http_request_duration_seconds",
		"dispatch_http_event_streams_open",
		"dispatch_tasks_submitted_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
	if !strings.Contains(body, `route="/v1/tasks/"`) {
		t.Error("request metrics should be labeled by route pattern")
	}
}
