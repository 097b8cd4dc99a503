package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/dispatch/internal/engine"
	"github.com/seantiz/dispatch/internal/model"
	"github.com/seantiz/dispatch/internal/store"
)

// submitTaskRequest is the JSON body for POST /v1/tasks.
type submitTaskRequest struct {
	TargetName  string         `json:"target_name"`
	Instruction string         `json:"instruction"`
	Context     map[string]any `json:"context"`
	Priority    int            `json:"priority"`
	TimeoutS    float64        `json:"timeout_s"`
}

// submitTaskResponse is returned with 202 Accepted.
type submitTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// historyResponse wraps the task history list.
type historyResponse struct {
	Results []*model.TaskResult `json:"results"`
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset,omitempty"`
	Source  string              `json:"source"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TargetName == "" {
		s.writeError(w, http.StatusBadRequest, "target_name is required")
		return
	}
	if req.TimeoutS < 0 {
		s.writeError(w, http.StatusBadRequest, "timeout_s must not be negative")
		return
	}

	id, err := s.engine.Submit(r.Context(), model.TaskRequest{
		TargetName:  req.TargetName,
		Instruction: req.Instruction,
		Context:     req.Context,
		Priority:    req.Priority,
		Timeout:     seconds(req.TimeoutS),
	})
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, engine.ErrShutdown):
		s.writeError(w, http.StatusServiceUnavailable, "engine is shutting down")
		return
	case err != nil:
		s.logger.Error("submit task", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit task")
		return
	}

	s.writeJSON(w, http.StatusAccepted, submitTaskResponse{TaskID: id, Status: model.StatusRunning})
}

func (s *Server) handleListActiveTasks(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.ListActive())
}

// handleTaskHistory returns recent terminal results from the ledger, or from
// the archive with ?source=archive, which also honours ?offset=.
func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(parseIntQuery(r, "limit", defaultListLimit))

	if r.URL.Query().Get("source") == "archive" {
		if s.archive == nil {
			s.writeError(w, http.StatusNotFound, "result archive is not enabled")
			return
		}
		offset := max(parseIntQuery(r, "offset", 0), 0)
		results, total, err := s.archive.ListResults(r.Context(), limit, offset)
		if err != nil {
			s.logger.Error("list archived results", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to list results")
			return
		}
		s.writeJSON(w, http.StatusOK, historyResponse{
			Results: results,
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			Source:  "archive",
		})
		return
	}

	results := s.engine.History(limit)
	s.writeJSON(w, http.StatusOK, historyResponse{
		Results: results,
		Total:   s.engine.Counts().Completed,
		Limit:   limit,
		Source:  "ledger",
	})
}

// handleGetTask reports a task's status. Tasks unknown to the engine are
// looked up in the archive when one is configured.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := s.engine.Status(id)
	if err == nil {
		s.writeJSON(w, http.StatusOK, st)
		return
	}
	if !errors.Is(err, engine.ErrTaskNotFound) {
		s.logger.Error("get task status", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	if s.archive != nil {
		res, err := s.archive.GetResult(r.Context(), id)
		if err == nil {
			s.writeJSON(w, http.StatusOK, model.TaskStatus{
				TaskID:     res.TaskID,
				Status:     res.Status,
				Completed:  true,
				TargetName: res.TargetName,
				Result:     res,
			})
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("get archived result", "task_id", id, "error", err)
		}
	}
	s.writeError(w, http.StatusNotFound, "task not found")
}

// handleWaitTask blocks until the task finishes or ?timeout_s= elapses. On
// timeout the task is detached and a timeout result is returned.
func (s *Server) handleWaitTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	timeout := seconds(parseFloatQuery(r, "timeout_s", 0))

	// Waits may outlast the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("clear write deadline for wait", "error", err)
	}

	res, err := s.engine.Wait(r.Context(), id, timeout)
	switch {
	case errors.Is(err, engine.ErrTaskNotFound):
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	case err != nil:
		// Client went away.
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func seconds(f float64) time.Duration {
	if f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
