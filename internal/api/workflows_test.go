package api

import (
	"net/http"
	"testing"

	"github.com/seantiz/dispatch/internal/model"
	"github.com/seantiz/dispatch/internal/workflow"
)

func TestRunWorkflowSuccess(t *testing.T) {
	h := newHarness(t, false)

	var run model.WorkflowRun
	r := h.do(t, http.MethodPost, "/v1/workflows", runWorkflowRequest{
		Definition: workflow.Definition{
			Name: "greet",
			Steps: []model.WorkflowStep{
				{ID: "first", TargetName: "echo", Instruction: "hello"},
				{ID: "second", TargetName: "echo", Instruction: "world", DependsOn: []string{"first"}},
			},
		},
	}, &run)
	if r.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", r.StatusCode)
	}
	if run.Status != model.StatusSuccess {
		t.Fatalf("run status = %q, want success (error %q)", run.Status, run.Error)
	}
	if len(run.Results) != 2 || run.Results["second"].Result != "world" {
		t.Errorf("results = %+v, want two results with second = world", run.Results)
	}
}

func TestRunWorkflowAbortsOnFailure(t *testing.T) {
	h := newHarness(t, false)

	var run model.WorkflowRun
	h.do(t, http.MethodPost, "/v1/workflows", runWorkflowRequest{
		Definition: workflow.Definition{
			Steps: []model.WorkflowStep{
				{ID: "a", TargetName: "echo", Instruction: "ok"},
				{ID: "b", TargetName: "fail", Instruction: "no", DependsOn: []string{"a"}},
				{ID: "c", TargetName: "echo", Instruction: "never", DependsOn: []string{"b"}},
			},
		},
	}, &run)

	if run.Status != model.StatusError {
		t.Fatalf("run status = %q, want error", run.Status)
	}
	if run.FailedStep != "b" {
		t.Errorf("failed_step = %q, want b", run.FailedStep)
	}
	if _, ok := run.PartialResults["c"]; ok {
		t.Error("step c ran after b failed")
	}
	if len(run.PartialResults) != 2 {
		t.Errorf("partial results = %d, want 2", len(run.PartialResults))
	}
}

func TestRunWorkflowValidation(t *testing.T) {
	h := newHarness(t, false)

	tests := []struct {
		name string
		body any
	}{
		{"no steps", runWorkflowRequest{}},
		{"step without target", runWorkflowRequest{Definition: workflow.Definition{
			Steps: []model.WorkflowStep{{Instruction: "x"}},
		}}},
		{"duplicate ids", runWorkflowRequest{Definition: workflow.Definition{
			Steps: []model.WorkflowStep{
				{ID: "a", TargetName: "echo"},
				{ID: "a", TargetName: "echo"},
			},
		}}},
		{"invalid json", []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := h.do(t, http.MethodPost, "/v1/workflows", tt.body, nil); r.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", r.StatusCode)
			}
		})
	}
}

func TestRunWorkflowFromRequirements(t *testing.T) {
	h := newHarness(t, false)
	h.srv.planner = &workflow.KeywordPlanner{
		SearchTarget:   "echo",
		AnalysisTarget: "echo_analysis",
		ContentTarget:  "echo_content",
	}

	var run model.WorkflowRun
	h.do(t, http.MethodPost, "/v1/workflows", runWorkflowRequest{Requirements: "search for cats"}, &run)
	if run.Status != model.StatusSuccess {
		t.Fatalf("run status = %q, want success (error %q)", run.Status, run.Error)
	}
	if _, ok := run.Results["echo"]; !ok {
		t.Errorf("results = %+v, want a result for the echo step", run.Results)
	}
}

func TestPlanWorkflow(t *testing.T) {
	h := newHarness(t, false)

	var plan planResponse
	r := h.do(t, http.MethodPost, "/v1/workflows/plan", planRequest{Requirements: "search and analyze then write a report"}, &plan)
	if r.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", r.StatusCode)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("steps = %+v, want 3", plan.Steps)
	}
	if plan.Steps[2].TargetName != workflow.DefaultContentTarget {
		t.Errorf("last step target = %q, want %q", plan.Steps[2].TargetName, workflow.DefaultContentTarget)
	}

	if r := h.do(t, http.MethodPost, "/v1/workflows/plan", planRequest{}, nil); r.StatusCode != http.StatusBadRequest {
		t.Errorf("empty requirements status = %d, want 400", r.StatusCode)
	}
}

func TestGetWorkflowFromArchive(t *testing.T) {
	h := newHarness(t, true)

	var run model.WorkflowRun
	h.do(t, http.MethodPost, "/v1/workflows", runWorkflowRequest{
		Definition: workflow.Definition{
			Name:  "archived",
			Steps: []model.WorkflowStep{{TargetName: "echo", Instruction: "kept"}},
		},
	}, &run)

	var got model.WorkflowRun
	if r := h.do(t, http.MethodGet, "/v1/workflows/"+run.WorkflowID, nil, &got); r.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", r.StatusCode)
	}
	if got.Name != "archived" || got.Status != model.StatusSuccess {
		t.Errorf("run = %+v, want archived success", got)
	}
	if got.Results["echo"] == nil || got.Results["echo"].Result != "kept" {
		t.Errorf("results = %+v, want echo = kept", got.Results)
	}
	if got.FinishedAt.Before(got.StartedAt) {
		t.Errorf("started_at %v after finished_at %v", got.StartedAt, got.FinishedAt)
	}

	if r := h.do(t, http.MethodGet, "/v1/workflows/wf_missing", nil, nil); r.StatusCode != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", r.StatusCode)
	}
}

func TestGetWorkflowArchiveDisabled(t *testing.T) {
	h := newHarness(t, false)

	if r := h.do(t, http.MethodGet, "/v1/workflows/wf_any", nil, nil); r.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", r.StatusCode)
	}
}
