package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/dispatch/internal/target"
)

// targetResponse is a target together with its running service, if any.
type targetResponse struct {
	target.Target
	Running bool            `json:"running"`
	Service *target.Service `json:"service,omitempty"`
}

// handleListTargets lists targets, optionally filtered by ?capability= or
// ?trigger_type=.
func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	var targets []target.Target
	if c := r.URL.Query().Get("capability"); c != "" {
		targets = s.registry.ByCapability(c)
	} else {
		targets = s.registry.List(r.URL.Query().Get("trigger_type"))
	}

	out := make([]targetResponse, 0, len(targets))
	for _, t := range targets {
		out = append(out, s.describeTarget(t))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRegisterTarget(w http.ResponseWriter, r *http.Request) {
	var t target.Target
	if err := decodeBody(w, r, &t); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(t.Name) == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.registry.Register(t); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	registered, err := s.registry.Get(t.Name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to register target")
		return
	}

	if s.dir != "" {
		path, err := target.SaveFile(s.dir, registered)
		if err != nil {
			s.logger.Error("persist target", "target", t.Name, "error", err)
		} else {
			s.logger.Info("persisted target", "target", t.Name, "path", path)
		}
	}

	s.writeJSON(w, http.StatusCreated, s.describeTarget(registered))
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := s.registry.Get(chi.URLParam(r, "name"))
	if errors.Is(err, target.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		s.logger.Error("get target", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get target")
		return
	}
	s.writeJSON(w, http.StatusOK, s.describeTarget(t))
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Unregister(chi.URLParam(r, "name")) {
		s.writeError(w, http.StatusNotFound, "target not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartTarget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.registry.Start(r.Context(), name)
	if errors.Is(err, target.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	t, err := s.registry.Get(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "target not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.describeTarget(t))
}

func (s *Server) handleStopTarget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.registry.Get(name); err != nil {
		s.writeError(w, http.StatusNotFound, "target not found")
		return
	}
	stopped := s.registry.Stop(name)
	s.writeJSON(w, http.StatusOK, map[string]any{"name": name, "stopped": stopped})
}

func (s *Server) describeTarget(t target.Target) targetResponse {
	resp := targetResponse{Target: t}
	for _, svc := range s.registry.Services() {
		if svc.Name == t.Name {
			resp.Running = true
			resp.Service = &svc
			break
		}
	}
	return resp
}
