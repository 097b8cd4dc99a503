package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const (
	startupTimeout = 10 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// lockedBuffer is a thread-safe wrapper around bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// proc holds a running subprocess and its output.
type proc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	binDir    string
	buildOnce sync.Once
	buildErr  error
)

// getBinary returns the path of the named command, building all commands
// under test on first use.
func getBinary(t *testing.T, name string) string {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "dispatch-e2e-*")
		if err != nil {
			buildErr = err
			return
		}
		root := findRepoRoot(t)
		for _, cmdName := range []string{"dispatch", "dispatch-agent"} {
			cmd := exec.Command("go", "build", "-o", filepath.Join(dir, cmdName), "./cmd/"+cmdName)
			cmd.Dir = root
			out, err := cmd.CombinedOutput()
			if err != nil {
				buildErr = fmt.Errorf("go build %s failed: %w\n%s", cmdName, err, out)
				return
			}
		}
		binDir = dir
	})
	if buildErr != nil {
		t.Fatal(buildErr)
	}
	return filepath.Join(binDir, name)
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// start runs binary with args and env and waits until readyPath answers 200.
func start(t *testing.T, binary, addr, readyPath string, env []string, args ...string) *proc {
	t.Helper()

	stdout := &lockedBuffer{}
	cmd := exec.Command(binary, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start %s: %v", binary, err)
	}

	p := &proc{cmd: cmd, stdout: stdout, url: "http://" + addr}
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(p.url + readyPath)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return p
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("%s did not become ready within %v\nstdout:\n%s", binary, startupTimeout, stdout.String())
	return nil
}

// startServer runs dispatch serve with a fresh targets dir and archive.
func startServer(t *testing.T, extraEnv ...string) *proc {
	t.Helper()
	addr := freeAddr(t)
	dir := t.TempDir()
	env := append([]string{
		"DISPATCH_LISTEN_ADDR=" + addr,
		"DISPATCH_TARGETS_DIR=" + filepath.Join(dir, "targets"),
		"DISPATCH_ARCHIVE_PATH=" + filepath.Join(dir, "archive.db"),
		"DISPATCH_LOG_LEVEL=info",
		"DISPATCH_POOL_SIZE=4",
	}, extraEnv...)
	return start(t, getBinary(t, "dispatch"), addr, "/healthz", env, "serve")
}

// startAgent runs dispatch-agent with args and returns its base URL.
func startAgent(t *testing.T, args ...string) *proc {
	t.Helper()
	addr := freeAddr(t)
	return start(t, getBinary(t, "dispatch-agent"), addr, "/health", nil, append([]string{"--addr", addr}, args...)...)
}

// call sends a JSON request and decodes the JSON response into out.
func call(t *testing.T, method, url string, body, out any) int {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}
