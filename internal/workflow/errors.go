package workflow

import (
	"errors"
	"fmt"
)

// ErrDuplicateStep is returned when two steps in one workflow share an id.
var ErrDuplicateStep = errors.New("duplicate step id")

// DependencyError reports a step whose prerequisite has not completed
// earlier in the same run.
type DependencyError struct {
	Step       string
	Dependency string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s not completed for step %s", e.Dependency, e.Step)
}

// StepFailureError reports a step that could not be dispatched or finished
// with a status other than success.
type StepFailureError struct {
	Step    string
	Status  string
	Message string
}

func (e *StepFailureError) Error() string {
	return fmt.Sprintf("step %s failed: %s", e.Step, e.Message)
}
