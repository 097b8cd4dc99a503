package workflow

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/ohler55/ojg/jp"

	"github.com/seantiz/dispatch/internal/model"
)

// ExtractError reports a step whose extraction expression could not be
// parsed or matched nothing in its dependencies' results.
type ExtractError struct {
	Step string
	Key  string
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %s: extract %s from %q: %v", e.Step, e.Key, e.Path, e.Err)
	}
	return fmt.Sprintf("step %s: extract %s: %q matched nothing", e.Step, e.Key, e.Path)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// checkExtract parses every extraction expression of step.
func checkExtract(step model.WorkflowStep) error {
	for _, key := range slices.Sorted(maps.Keys(step.Extract)) {
		if _, err := jp.ParseString(step.Extract[key]); err != nil {
			return &ExtractError{Step: step.StepID(), Key: key, Path: step.Extract[key], Err: err}
		}
	}
	return nil
}

// extract evaluates step's JSONPath expressions against a document holding
// its dependencies' results, keyed result_<dependency id> as in the step
// context. A single match is stored as is; several become a list.
func extract(step model.WorkflowStep, results map[string]*model.TaskResult) (map[string]any, error) {
	if len(step.Extract) == 0 {
		return nil, nil
	}

	deps := make(map[string]*model.TaskResult, len(step.DependsOn))
	for _, dep := range step.DependsOn {
		deps["result_"+dep] = results[dep]
	}
	doc, err := toGeneric(deps)
	if err != nil {
		return nil, &ExtractError{Step: step.StepID(), Err: err}
	}

	out := make(map[string]any, len(step.Extract))
	for _, key := range slices.Sorted(maps.Keys(step.Extract)) {
		expr := step.Extract[key]
		path, err := jp.ParseString(expr)
		if err != nil {
			return nil, &ExtractError{Step: step.StepID(), Key: key, Path: expr, Err: err}
		}
		matches := path.Get(doc)
		switch len(matches) {
		case 0:
			return nil, &ExtractError{Step: step.StepID(), Key: key, Path: expr}
		case 1:
			out[key] = matches[0]
		default:
			out[key] = matches
		}
	}
	return out, nil
}

// toGeneric round-trips v through JSON so the path evaluator sees plain
// maps and slices with the same field names the API returns.
func toGeneric(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return out, nil
}
