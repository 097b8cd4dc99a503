package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/dispatch/internal/engine"
	"github.com/seantiz/dispatch/internal/store"
	"github.com/seantiz/dispatch/internal/target"
	"github.com/seantiz/dispatch/internal/workflow"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router   *chi.Mux
	engine   *engine.Engine
	registry *target.Registry
	runner   *workflow.Runner
	planner  workflow.Planner
	archive  store.Store
	dir      string
	logger   *slog.Logger
	addr     string
}

// Deps groups what the server dispatches to. Archive and TargetsDir are
// optional; when TargetsDir is set, targets registered over HTTP are also
// written there.
type Deps struct {
	Engine     *engine.Engine
	Registry   *target.Registry
	Runner     *workflow.Runner
	Planner    workflow.Planner
	Archive    store.Store
	TargetsDir string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		engine:   deps.Engine,
		registry: deps.Registry,
		runner:   deps.Runner,
		planner:  deps.Planner,
		archive:  deps.Archive,
		dir:      deps.TargetsDir,
		logger:   logger,
		addr:     addr,
	}
	if srv.planner == nil {
		srv.planner = workflow.NewKeywordPlanner()
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/v1/stats", s.handleGetStats)

	s.router.Route("/v1/targets", func(r chi.Router) {
		r.Get("/", s.handleListTargets)
		r.Post("/", s.handleRegisterTarget)
		r.Get("/{name}", s.handleGetTarget)
		r.Delete("/{name}", s.handleDeleteTarget)
		r.Post("/{name}/start", s.handleStartTarget)
		r.Post("/{name}/stop", s.handleStopTarget)
	})

	s.router.Route("/v1/tasks", func(r chi.Router) {
		r.Post("/", s.handleSubmitTask)
		r.Get("/", s.handleListActiveTasks)
		r.Get("/history", s.handleTaskHistory)
		r.Get("/{id}", s.handleGetTask)
		r.Get("/{id}/wait", s.handleWaitTask)
		r.Get("/{id}/events", s.handleStreamEvents)
	})

	s.router.Route("/v1/workflows", func(r chi.Router) {
		r.Post("/", s.handleRunWorkflow)
		r.Post("/plan", s.handlePlanWorkflow)
		r.Get("/{id}", s.handleGetWorkflow)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext serves until ctx is done, then shuts the HTTP server down.
// The engine is left running; its owner shuts it down afterwards so that
// accepted tasks still reach a terminal result.
func (s *Server) RunContext(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down", "reason", context.Cause(ctx).Error())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
