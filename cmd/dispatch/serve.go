package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/dispatch/internal/api"
	"github.com/seantiz/dispatch/internal/workflow"
)

// drainTimeout bounds how long serve waits for accepted tasks on shutdown.
const drainTimeout = 30 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dispatcher HTTP API",
	Long: `Serve the HTTP API: targets, tasks, task events (SSE), workflows,
stats, health and Prometheus metrics.

On SIGINT or SIGTERM the server stops accepting requests, then waits for
accepted tasks to finish before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides listen_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := loadStack(os.Stdout)
	if err != nil {
		return err
	}
	addr := st.cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if st.cfg.WatchTargets {
		if err := os.MkdirAll(st.cfg.TargetsDir, 0o755); err != nil {
			return fmt.Errorf("create targets dir: %w", err)
		}
		if err := st.registry.Watch(ctx, st.cfg.TargetsDir); err != nil {
			return err
		}
	}

	st.logger.Info("dispatch: starting",
		"listen_addr", addr,
		"pool_size", st.cfg.PoolSize,
		"targets", len(st.registry.List("")),
		"archive", st.cfg.ArchivePath,
	)

	srv := api.NewServer(addr, api.Deps{
		Engine:     st.engine,
		Registry:   st.registry,
		Runner:     st.runner,
		Planner:    workflow.NewKeywordPlanner(),
		Archive:    st.archive,
		TargetsDir: st.cfg.TargetsDir,
	}, st.logger)

	serveErr := srv.RunContext(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := st.close(drainCtx); err != nil {
		st.logger.Error("engine shutdown", "error", err)
	}
	return serveErr
}
