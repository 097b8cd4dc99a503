package target

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no target is registered under a name.
var ErrNotFound = errors.New("target not found")

// Trigger types.
const (
	TriggerAlways     = "always"
	TriggerOnDemand   = "on_demand"
	TriggerRepository = "repository"
)

// Resolver is what the task executor needs from a target registry.
type Resolver interface {
	// Resolve returns the endpoint of the named target, or ErrNotFound.
	Resolve(name string) (string, error)

	// IsRunning reports whether the target's service is currently reachable.
	IsRunning(name string) bool

	// Start brings the target's service up. It returns nil once the target
	// is reachable.
	Start(ctx context.Context, name string) error
}

// Target describes a named worker.
type Target struct {
	Name           string            `json:"name" yaml:"name"`
	Description    string            `json:"description" yaml:"description"`
	Prompt         string            `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	TriggerType    string            `json:"trigger_type" yaml:"trigger_type"`
	Capabilities   []string          `json:"capabilities" yaml:"capabilities"`
	Dependencies   []string          `json:"dependencies" yaml:"dependencies"`
	Endpoint       string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ContainerImage string            `json:"container_image,omitempty" yaml:"container_image,omitempty"`
	Environment    map[string]string `json:"environment_vars,omitempty" yaml:"environment_vars,omitempty"`
	ResourceLimits map[string]any    `json:"resource_limits,omitempty" yaml:"resource_limits,omitempty"`
	CreatedAt      time.Time         `json:"created_at" yaml:"created_at,omitempty"`
}

// withDefaults fills the zero-valued optional fields.
func (t Target) withDefaults() Target {
	if t.TriggerType == "" {
		t.TriggerType = TriggerAlways
	}
	if t.Description == "" {
		t.Description = "Target " + t.Name
	}
	if t.Capabilities == nil {
		t.Capabilities = []string{}
	}
	if t.Dependencies == nil {
		t.Dependencies = []string{}
	}
	if t.ResourceLimits == nil {
		t.ResourceLimits = map[string]any{"memory": "512Mi", "cpu": "0.5"}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return t
}

// Service describes a running target service.
type Service struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Endpoint  string    `json:"endpoint"`
	StartedAt time.Time `json:"started_at"`
}
