package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/seantiz/dispatch/internal/target"
)

func TestListTargets(t *testing.T) {
	h := newHarness(t, false)

	var all []targetResponse
	h.do(t, http.MethodGet, "/v1/targets", nil, &all)
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Name != "echo" || all[1].Name != "fail" || all[2].Name != "gate" {
		t.Errorf("names = %s, %s, %s, want sorted echo, fail, gate", all[0].Name, all[1].Name, all[2].Name)
	}

	var byCap []targetResponse
	h.do(t, http.MethodGet, "/v1/targets?capability=fail", nil, &byCap)
	if len(byCap) != 1 || byCap[0].Name != "fail" {
		t.Errorf("by capability = %+v, want only fail", byCap)
	}
}

func TestRegisterAndGetTarget(t *testing.T) {
	h := newHarness(t, false)

	var created targetResponse
	r := h.do(t, http.MethodPost, "/v1/targets", target.Target{
		Name:     "writer",
		Endpoint: "local://echo",
	}, &created)
	if r.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", r.StatusCode)
	}
	if created.TriggerType != target.TriggerAlways {
		t.Errorf("trigger_type = %q, want default %q", created.TriggerType, target.TriggerAlways)
	}

	var got targetResponse
	if r := h.do(t, http.MethodGet, "/v1/targets/writer", nil, &got); r.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", r.StatusCode)
	}
	if got.Endpoint != "local://echo" {
		t.Errorf("endpoint = %q, want local://echo", got.Endpoint)
	}

	// The new target dispatches through the echo handler.
	res := h.wait(t, h.submit(t, "writer", "via writer"))
	if res.Result != "via writer" {
		t.Errorf("result = %v, want via writer", res.Result)
	}
}

func TestRegisterTargetValidation(t *testing.T) {
	h := newHarness(t, false)

	if r := h.do(t, http.MethodPost, "/v1/targets", target.Target{}, nil); r.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", r.StatusCode)
	}
}

func TestRegisterTargetPersists(t *testing.T) {
	h := newHarness(t, false)
	dir := t.TempDir()
	h.srv.dir = dir

	h.do(t, http.MethodPost, "/v1/targets", target.Target{Name: "saved", Endpoint: "local://echo"}, nil)

	if _, err := os.Stat(filepath.Join(dir, "saved.yaml")); err != nil {
		t.Errorf("target file not written: %v", err)
	}
}

func TestDeleteTarget(t *testing.T) {
	h := newHarness(t, false)

	if r := h.do(t, http.MethodDelete, "/v1/targets/echo", nil, nil); r.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", r.StatusCode)
	}
	if r := h.do(t, http.MethodGet, "/v1/targets/echo", nil, nil); r.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", r.StatusCode)
	}
	if r := h.do(t, http.MethodDelete, "/v1/targets/echo", nil, nil); r.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", r.StatusCode)
	}
}

func TestStartStopTarget(t *testing.T) {
	h := newHarness(t, false)

	var started targetResponse
	if r := h.do(t, http.MethodPost, "/v1/targets/echo/start", nil, &started); r.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200", r.StatusCode)
	}
	if !started.Running || started.Service == nil {
		t.Errorf("started = %+v, want running with service", started)
	}

	var stopped map[string]any
	h.do(t, http.MethodPost, "/v1/targets/echo/stop", nil, &stopped)
	if stopped["stopped"] != true {
		t.Errorf("stop = %v, want stopped true", stopped)
	}
	if h.registry.IsRunning("echo") {
		t.Error("echo still running after stop")
	}
}

func TestStartTargetErrors(t *testing.T) {
	h := newHarness(t, false)
	if err := h.registry.Register(target.Target{Name: "nowhere"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if r := h.do(t, http.MethodPost, "/v1/targets/ghost/start", nil, nil); r.StatusCode != http.StatusNotFound {
		t.Errorf("unknown target status = %d, want 404", r.StatusCode)
	}
	if r := h.do(t, http.MethodPost, "/v1/targets/nowhere/start", nil, nil); r.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("no endpoint status = %d, want 503", r.StatusCode)
	}
	if r := h.do(t, http.MethodPost, "/v1/targets/ghost/stop", nil, nil); r.StatusCode != http.StatusNotFound {
		t.Errorf("stop unknown status = %d, want 404", r.StatusCode)
	}
}
