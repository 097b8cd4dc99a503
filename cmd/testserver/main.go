// testserver starts a dispatch API server with in-process stub targets for
// E2E testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/seantiz/dispatch/internal/agent"
	"github.com/seantiz/dispatch/internal/api"
	"github.com/seantiz/dispatch/internal/engine"
	"github.com/seantiz/dispatch/internal/invoker"
	"github.com/seantiz/dispatch/internal/store"
	"github.com/seantiz/dispatch/internal/target"
	"github.com/seantiz/dispatch/internal/workflow"
)

// stubTarget is a configurable in-process target for E2E tests.
type stubTarget struct {
	name  string
	delay time.Duration
	fail  string
}

func (s stubTarget) handle(ctx context.Context, instruction string, _ map[string]any) (any, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.fail != "" {
		return nil, errors.New(s.fail)
	}
	return map[string]any{"target": s.name, "echo": instruction}, nil
}

func main() {
	addr := ":8080"
	if v := os.Getenv("DISPATCH_LISTEN_ADDR"); v != "" {
		addr = v
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	local := invoker.NewLocalInvoker()
	reg := target.NewRegistry(nil, logger)
	stubs := []stubTarget{
		{name: "stub-echo"},
		{name: "stub-slow", delay: 2 * time.Second},
		{name: "stub-fail", delay: 100 * time.Millisecond, fail: "stub failure"},
	}
	for _, s := range stubs {
		local.Handle(s.name, s.handle)
		if err := reg.Register(target.Target{
			Name:         s.name,
			Endpoint:     invoker.LocalEndpoint(s.name),
			Capabilities: []string{"stub"},
		}); err != nil {
			log.Fatalf("register %s: %v", s.name, err)
		}
	}
	if _, err := agent.RegisterBuiltins(local, reg, 200*time.Millisecond); err != nil {
		log.Fatalf("register builtins: %v", err)
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	var archive store.Store
	if path := os.Getenv("DISPATCH_ARCHIVE_PATH"); path != "" {
		db, err := store.NewSQLiteStore(path)
		if err != nil {
			log.Fatalf("failed to open archive: %v", err)
		}
		defer db.Close()
		archive = db
		opts = append(opts, engine.WithArchive(db))
	}

	eng := engine.New(reg, invoker.NewMux(local, invoker.NewHTTPInvoker(nil)), 4, opts...)
	srv := api.NewServer(addr, api.Deps{
		Engine:   eng,
		Registry: reg,
		Runner:   workflow.NewRunner(eng, workflow.WithLogger(logger)),
		Archive:  archive,
	}, logger)

	logger.Info("testserver: starting", "addr", addr)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eng.Shutdown(ctx); err != nil {
		logger.Error("engine shutdown", "error", err)
	}
}
