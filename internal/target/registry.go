package target

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// Service status values.
const statusRunning = "running"

// Compile-time interface satisfaction check.
var _ Resolver = (*Registry)(nil)

// Registry holds registered targets and the services currently running for
// them. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	targets  map[string]Target
	services map[string]Service

	checker HealthChecker
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. A nil checker disables health
// probing of HTTP endpoints (they are assumed reachable).
func NewRegistry(checker HealthChecker, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		targets:  make(map[string]Target),
		services: make(map[string]Service),
		checker:  checker,
		logger:   logger,
	}
}

// Register adds or replaces a target. Replacing a target drops its running
// service record so the next task re-checks the new endpoint.
func (r *Registry) Register(t Target) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("register target: name is required")
	}
	t = t.withDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.targets[t.Name]; ok && prev.Endpoint != t.Endpoint {
		delete(r.services, t.Name)
	}
	r.targets[t.Name] = t
	return nil
}

// Unregister removes a target and stops its service. It reports whether the
// target existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.targets[name]; !ok {
		return false
	}
	delete(r.targets, name)
	delete(r.services, name)
	return true
}

// Get returns the named target.
func (r *Registry) Get(name string) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

// List returns all targets sorted by name, optionally filtered by trigger type.
func (r *Registry) List(triggerType string) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Target, 0, len(r.targets))
	for _, t := range r.targets {
		if triggerType != "" && t.TriggerType != triggerType {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByCapability returns the targets advertising the given capability.
func (r *Registry) ByCapability(capability string) []Target {
	var out []Target
	for _, t := range r.List("") {
		if slices.Contains(t.Capabilities, capability) {
			out = append(out, t)
		}
	}
	return out
}

// Resolve implements Resolver. The endpoint of a running service wins over
// the configured one.
func (r *Registry) Resolve(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.targets[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if svc, ok := r.services[name]; ok {
		return svc.Endpoint, nil
	}
	return t.Endpoint, nil
}

// IsRunning implements Resolver.
func (r *Registry) IsRunning(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return ok && svc.Status == statusRunning
}

// Start implements Resolver. In-process endpoints start immediately; HTTP
// endpoints must pass a health probe.
func (r *Registry) Start(ctx context.Context, name string) error {
	t, err := r.Get(name)
	if err != nil {
		return err
	}
	if t.Endpoint == "" {
		return fmt.Errorf("start %s: no endpoint configured", name)
	}

	if !strings.HasPrefix(t.Endpoint, LocalScheme) && r.checker != nil {
		if err := r.checker.Check(ctx, t.Endpoint); err != nil {
			r.logger.Warn("target health check failed", "target", name, "endpoint", t.Endpoint, "error", err)
			return fmt.Errorf("start %s: %w", name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.targets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	r.services[name] = Service{
		Name:      name,
		Status:    statusRunning,
		Endpoint:  t.Endpoint,
		StartedAt: time.Now().UTC(),
	}
	r.logger.Info("target started", "target", name, "endpoint", t.Endpoint)
	return nil
}

// Stop forgets the running service of a target. It reports whether one was running.
func (r *Registry) Stop(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[name]; !ok {
		return false
	}
	delete(r.services, name)
	return true
}

// Services returns the running services sorted by name.
func (r *Registry) Services() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
