package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/seantiz/dispatch/internal/agent"
	"github.com/seantiz/dispatch/internal/config"
	"github.com/seantiz/dispatch/internal/engine"
	"github.com/seantiz/dispatch/internal/invoker"
	"github.com/seantiz/dispatch/internal/store"
	"github.com/seantiz/dispatch/internal/target"
	"github.com/seantiz/dispatch/internal/workflow"
)

// builtinDelay is the simulated work time of the built-in targets.
const builtinDelay = 500 * time.Millisecond

// stack is the dispatcher wired from configuration.
type stack struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *target.Registry
	engine   *engine.Engine
	runner   *workflow.Runner
	archive  store.Store
}

// loadStack reads configuration and wires the dispatcher. Logs go to w.
func loadStack(w io.Writer) (*stack, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(w, cfg.LogLevel)

	reg := target.NewRegistry(target.NewHTTPHealthChecker(cfg.HealthTimeout), logger)
	local := invoker.NewLocalInvoker()
	if cfg.BuiltinTargets {
		names, err := agent.RegisterBuiltins(local, reg, builtinDelay)
		if err != nil {
			return nil, err
		}
		logger.Debug("registered builtin targets", "targets", names)
	}

	n, err := reg.LoadDir(cfg.TargetsDir)
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}
	logger.Debug("loaded targets", "dir", cfg.TargetsDir, "count", n)

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithDefaultTimeout(cfg.DefaultTimeout),
	}
	var archive store.Store
	if cfg.ArchivePath != "" {
		s, err := store.NewSQLiteStore(cfg.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		archive = s
		opts = append(opts, engine.WithArchive(s))
	}

	eng := engine.New(reg, invoker.NewMux(local, invoker.NewHTTPInvoker(nil)), cfg.PoolSize, opts...)
	runner := workflow.NewRunner(eng,
		workflow.WithLogger(logger),
		workflow.WithStepTimeout(cfg.DefaultTimeout),
	)

	return &stack{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		engine:   eng,
		runner:   runner,
		archive:  archive,
	}, nil
}

// close shuts the engine down, then closes the archive.
func (s *stack) close(ctx context.Context) error {
	err := s.engine.Shutdown(ctx)
	if s.archive != nil {
		if cerr := s.archive.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
