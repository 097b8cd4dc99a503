package model

import "time"

// WorkflowStep is one step of a workflow. ID defaults to TargetName when
// empty; DependsOn names the IDs of earlier steps in the same workflow.
// Extract maps context keys to JSONPath expressions evaluated over the
// dependencies' results, e.g. "$.result_search.result.hits[0]".
type WorkflowStep struct {
	ID          string            `json:"id,omitempty" yaml:"id,omitempty"`
	TargetName  string            `json:"target" yaml:"target"`
	Instruction string            `json:"instruction" yaml:"instruction"`
	DependsOn   []string          `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	TimeoutS    float64           `json:"timeout_s,omitempty" yaml:"timeout_s,omitempty"`
	Context     map[string]any    `json:"context,omitempty" yaml:"context,omitempty"`
	Extract     map[string]string `json:"extract,omitempty" yaml:"extract,omitempty"`
}

// StepID returns the identifier other steps use to depend on s.
func (s WorkflowStep) StepID() string {
	if s.ID != "" {
		return s.ID
	}
	return s.TargetName
}

// Timeout returns the step's timeout, or zero when unset.
func (s WorkflowStep) Timeout() time.Duration {
	return time.Duration(s.TimeoutS * float64(time.Second))
}

// WorkflowRun is the outcome of a workflow execution. It is returned to the
// caller and not retained by the engine.
//
// On success Results holds every step; on failure PartialResults holds the
// steps that ran, including the failing one, and Err carries the typed cause.
type WorkflowRun struct {
	WorkflowID     string                 `json:"workflow_id"`
	Name           string                 `json:"name,omitempty"`
	Status         string                 `json:"status"`
	Results        map[string]*TaskResult `json:"results,omitempty"`
	PartialResults map[string]*TaskResult `json:"partial_results,omitempty"`
	Error          string                 `json:"error,omitempty"`
	FailedStep     string                 `json:"failed_step,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at"`
	Err            error                  `json:"-"`
}
