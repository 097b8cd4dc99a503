// Command dispatch-agent exposes one target over HTTP (GET /health,
// GET /info, POST /execute) so a dispatcher can reach it at an http://
// endpoint. The target is backed by a built-in processor kind or by an
// external command that reads the instruction on stdin:
//
//	dispatch-agent --kind web_search --addr :9001
//	dispatch-agent --name wc --addr :9002 -- wc -w
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/dispatch/internal/agent"
	"github.com/seantiz/dispatch/internal/config"
)

var (
	kind        string
	name        string
	description string
	addr        string
	delay       time.Duration
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:          "dispatch-agent [flags] [-- command args...]",
	Short:        "Serve one dispatch target over HTTP",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&kind, "kind", agent.KindEcho, "Processor kind: "+strings.Join(agent.Kinds(), ", "))
	rootCmd.Flags().StringVar(&name, "name", "", "Target name (default: the kind's name)")
	rootCmd.Flags().StringVar(&description, "description", "", "Target description")
	rootCmd.Flags().StringVar(&addr, "addr", ":9000", "Listen address")
	rootCmd.Flags().DurationVar(&delay, "delay", time.Second, "Simulated work time of the simulated kinds")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := config.NewLogger(os.Stdout, config.ParseLogLevel(logLevel))

	p, profile, err := agent.NewProcessor(kind, delay)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		p = agent.Command{Path: args[0], Args: args[1:], Logger: logger}
		profile = agent.Profile{
			Name:         args[0],
			Description:  "Runs " + strings.Join(args, " "),
			Capabilities: []string{"command"},
		}
	}
	if name != "" {
		profile.Name = name
	}
	if description != "" {
		profile.Description = description
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return agent.NewService(profile, p, logger).Serve(ctx, l)
}
