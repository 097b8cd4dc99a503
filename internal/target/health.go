package target

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LocalScheme prefixes endpoints served in-process.
const LocalScheme = "local://"

// DefaultHealthTimeout bounds a single health probe.
const DefaultHealthTimeout = 5 * time.Second

// HealthChecker probes a target endpoint.
type HealthChecker interface {
	Check(ctx context.Context, endpoint string) error
}

// HTTPHealthChecker probes GET {endpoint}/health and treats any 2xx as healthy.
type HTTPHealthChecker struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPHealthChecker creates a checker with the given per-probe timeout.
func NewHTTPHealthChecker(timeout time.Duration) *HTTPHealthChecker {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	return &HTTPHealthChecker{Client: &http.Client{}, Timeout: timeout}
}

// Check implements HealthChecker.
func (c *HTTPHealthChecker) Check(ctx context.Context, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	url := strings.TrimRight(endpoint, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("health check %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check %s: status %d", endpoint, resp.StatusCode)
	}
	return nil
}
