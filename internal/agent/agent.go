// Package agent implements the service a remote target runs. It answers the
// health, info and execute calls the dispatcher makes and hands each
// instruction to a Processor.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/seantiz/dispatch/internal/invoker"
)

// Version is reported by /info.
const Version = "1.0.0"

const (
	maxBodySize     = 16 << 20
	shutdownTimeout = 10 * time.Second
	defaultTimeout  = 300 * time.Second
)

// Service exposes one target over HTTP.
type Service struct {
	profile   Profile
	processor Processor
	logger    *slog.Logger
	router    *chi.Mux
	startedAt time.Time

	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewService creates a service that identifies as profile and executes with p.
func NewService(profile Profile, p Processor, logger *slog.Logger) *Service {
	if profile.Capabilities == nil {
		profile.Capabilities = []string{}
	}
	s := &Service{
		profile:   profile,
		processor: p,
		logger:    logger.With("target", profile.Name),
		router:    chi.NewRouter(),
		startedAt: time.Now().UTC(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/info", s.handleInfo)
	s.router.Post("/execute", s.handleExecute)

	return s
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve serves on l until ctx is done, then shuts down gracefully.
func (s *Service) Serve(ctx context.Context, l net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("agent listening", "addr", l.Addr().String())
		if err := httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("agent stopped")
	return nil
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string    `json:"status"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Capabilities []string  `json:"capabilities"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Name:         s.profile.Name,
		Description:  s.profile.Description,
		Capabilities: s.profile.Capabilities,
		Timestamp:    time.Now().UTC(),
	})
}

// InfoResponse is the body of GET /info.
type InfoResponse struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Capabilities []string  `json:"capabilities"`
	Version      string    `json:"version"`
	StartedAt    time.Time `json:"started_at"`
	Succeeded    int64     `json:"succeeded"`
	Failed       int64     `json:"failed"`
}

func (s *Service) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Name:         s.profile.Name,
		Description:  s.profile.Description,
		Capabilities: s.profile.Capabilities,
		Version:      Version,
		StartedAt:    s.startedAt,
		Succeeded:    s.succeeded.Load(),
		Failed:       s.failed.Load(),
	})
}

func (s *Service) handleExecute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req invoker.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, invoker.ExecuteResponse{
			Status:    invoker.ResponseError,
			Error:     fmt.Sprintf("invalid request body: %v", err),
			Timestamp: time.Now().UTC(),
		})
		return
	}
	if req.Context == nil {
		req.Context = map[string]any{}
	}

	timeout := defaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	execID := uuid.NewString()
	logger := s.logger.With("execution_id", execID, "request_id", middleware.GetReqID(r.Context()))

	start := time.Now()
	result, err := s.processor.Process(ctx, req.Instruction, req.Context)
	elapsed := time.Since(start).Seconds()

	resp := invoker.ExecuteResponse{
		ExecutionTime: elapsed,
		Timestamp:     time.Now().UTC(),
	}
	if err != nil {
		s.failed.Add(1)
		logger.Error("execution failed", "error", err, "execution_time_s", elapsed)
		resp.Status = invoker.ResponseError
		resp.Error = err.Error()
	} else {
		s.succeeded.Add(1)
		logger.Info("execution succeeded", "execution_time_s", elapsed)
		resp.Status = invoker.ResponseSuccess
		resp.Result = result
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
