package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// envPrefix prefixes task context entries exported to a command.
const envPrefix = "DISPATCH_CTX_"

// Command runs an external program per task. The instruction is written to
// the program's stdin and scalar context entries are exported as
// DISPATCH_CTX_<KEY> environment variables. A non-zero exit is a failure.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Logger *slog.Logger
}

// Process implements Processor.
func (c Command) Process(ctx context.Context, instruction string, taskCtx map[string]any) (any, error) {
	if c.Path == "" {
		return nil, errors.New("command path is empty")
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = os.Environ()
	for k, v := range taskCtx {
		switch v.(type) {
		case string, bool, float64, int:
			cmd.Env = append(cmd.Env, envPrefix+strings.ToUpper(k)+"="+fmt.Sprint(v))
		}
	}
	cmd.Stdin = strings.NewReader(instruction)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	var stdout, stderr strings.Builder
	var wg sync.WaitGroup
	wg.Go(func() { c.collect(stdoutPipe, &stdout, "stdout") })
	wg.Go(func() { c.collect(stderrPipe, &stderr, "stderr") })
	wg.Wait()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("run command: %w", waitErr)
		}
		exitCode = exitErr.ExitCode()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = waitErr.Error()
		}
		return nil, fmt.Errorf("command exited with code %d: %s", exitCode, msg)
	}

	return map[string]any{
		"exit_code": exitCode,
		"output":    stdout.String(),
		"stderr":    stderr.String(),
	}, nil
}

// collect reads lines from r into out, logging each at debug level.
func (c Command) collect(r io.Reader, out *strings.Builder, stream string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		out.WriteString(line + "\n")
		if c.Logger != nil {
			c.Logger.Debug("command output", "stream", stream, "line", line)
		}
	}
}
