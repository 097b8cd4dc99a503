package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/dispatch/internal/model"
)

// Definition is a workflow as written in a YAML file or request body.
type Definition struct {
	Name    string               `json:"name,omitempty" yaml:"name,omitempty"`
	Context map[string]any       `json:"context,omitempty" yaml:"context,omitempty"`
	Steps   []model.WorkflowStep `json:"steps" yaml:"steps"`
}

// Validate checks what can be checked before any step is dispatched.
// Dependencies are left to the runner, which reports them against the
// step that names them.
func (d *Definition) Validate() error {
	if len(d.Steps) == 0 {
		return errors.New("workflow has no steps")
	}
	for i, s := range d.Steps {
		if s.TargetName == "" {
			return fmt.Errorf("step %d: target is required", i)
		}
		if s.TimeoutS < 0 {
			return fmt.Errorf("step %s: timeout must not be negative", s.StepID())
		}
		if err := checkExtract(s); err != nil {
			return err
		}
	}
	return checkStepIDs(d.Steps)
}

// ParseDefinition decodes a YAML workflow definition.
func ParseDefinition(r io.Reader) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinition reads a YAML workflow definition from path.
func LoadDefinition(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow: %w", err)
	}
	defer f.Close()
	return ParseDefinition(f)
}

// RunDefinition runs def.
func (r *Runner) RunDefinition(ctx context.Context, def *Definition) *model.WorkflowRun {
	return r.Run(ctx, def.Name, def.Steps, def.Context)
}
