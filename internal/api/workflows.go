package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/dispatch/internal/model"
	"github.com/seantiz/dispatch/internal/store"
	"github.com/seantiz/dispatch/internal/workflow"
)

const archiveTimeout = 5 * time.Second

// runWorkflowRequest is the JSON body for POST /v1/workflows. When Steps is
// empty, Requirements is planned into steps first.
type runWorkflowRequest struct {
	workflow.Definition
	Requirements string `json:"requirements,omitempty"`
}

// planRequest is the JSON body for POST /v1/workflows/plan.
type planRequest struct {
	Requirements string `json:"requirements"`
}

// planResponse is a planned workflow, ready to be posted to /v1/workflows.
type planResponse struct {
	Steps []model.WorkflowStep `json:"steps"`
}

// handleRunWorkflow runs a workflow to completion and returns the run. A
// failed run is still a 200; its status and error describe the failure.
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	var req runWorkflowRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	def := req.Definition
	if len(def.Steps) == 0 && strings.TrimSpace(req.Requirements) != "" {
		steps, err := s.planner.Plan(req.Requirements)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		def.Steps = steps
	}
	if err := def.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A run lasts as long as its slowest steps.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("clear write deadline for workflow", "error", err)
	}

	run := s.runner.RunDefinition(r.Context(), &def)

	if s.archive != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), archiveTimeout)
		if err := s.archive.SaveWorkflowRun(ctx, run); err != nil {
			s.logger.Error("archive workflow run", "workflow_id", run.WorkflowID, "error", err)
		}
		cancel()
	}

	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handlePlanWorkflow(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	steps, err := s.planner.Plan(req.Requirements)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, planResponse{Steps: steps})
}

// handleGetWorkflow returns an archived workflow run.
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, http.StatusNotFound, "result archive is not enabled")
		return
	}

	run, err := s.archive.GetWorkflowRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	if err != nil {
		s.logger.Error("get workflow run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get workflow")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}
