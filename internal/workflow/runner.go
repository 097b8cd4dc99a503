// Package workflow runs ordered, dependency-linked task sequences on top of
// the engine's submit and wait primitives.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/seantiz/dispatch/internal/model"
)

// DefaultWaitGrace is added to a step's timeout when waiting for it, so the
// executor's own timeout result arrives before the wait gives up.
const DefaultWaitGrace = 5 * time.Second

// Dispatcher is the part of the engine a workflow needs.
type Dispatcher interface {
	Submit(ctx context.Context, req model.TaskRequest) (string, error)
	Wait(ctx context.Context, id string, timeout time.Duration) (*model.TaskResult, error)
}

// Runner executes workflows one step at a time.
type Runner struct {
	dispatcher  Dispatcher
	logger      *slog.Logger
	stepTimeout time.Duration
	grace       time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithStepTimeout sets the timeout assumed for steps that declare none. It
// should match the engine's default task timeout.
func WithStepTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.stepTimeout = d
		}
	}
}

// WithWaitGrace overrides DefaultWaitGrace.
func WithWaitGrace(d time.Duration) RunnerOption {
	return func(r *Runner) { r.grace = d }
}

// NewRunner creates a runner that dispatches through d.
func NewRunner(d Dispatcher, opts ...RunnerOption) *Runner {
	r := &Runner{
		dispatcher:  d,
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		stepTimeout: model.DefaultTimeout,
		grace:       DefaultWaitGrace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes steps in the order given. Each step waits for the previous
// one to finish. The first missing dependency or unsuccessful step aborts
// the run; the returned run then carries the results gathered so far,
// including the failing step's, in PartialResults.
//
// wfCtx is merged into every step's context before the step's own context
// and its dependencies' results, stored under result_<dependency id>.
// Values named by the step's Extract expressions are merged last.
func (r *Runner) Run(ctx context.Context, name string, steps []model.WorkflowStep, wfCtx map[string]any) *model.WorkflowRun {
	run := &model.WorkflowRun{
		WorkflowID: model.NewWorkflowID(),
		Name:       name,
		StartedAt:  time.Now().UTC(),
	}
	logger := r.logger.With("workflow_id", run.WorkflowID)
	logger.Info("workflow started", "name", name, "steps", len(steps))

	results := make(map[string]*model.TaskResult, len(steps))

	if err := checkStepIDs(steps); err != nil {
		return r.abort(logger, run, results, "", err)
	}

	for _, step := range steps {
		stepID := step.StepID()

		for _, dep := range step.DependsOn {
			if _, ok := results[dep]; !ok {
				return r.abort(logger, run, results, stepID, &DependencyError{Step: stepID, Dependency: dep})
			}
		}

		extracted, err := extract(step, results)
		if err != nil {
			return r.abort(logger, run, results, stepID, err)
		}

		req := model.TaskRequest{
			TargetName:  step.TargetName,
			Instruction: step.Instruction,
			Context:     stepContext(wfCtx, step, results, extracted),
			Timeout:     step.Timeout(),
		}
		id, err := r.dispatcher.Submit(ctx, req)
		if err != nil {
			return r.abort(logger, run, results, stepID, &StepFailureError{
				Step:    stepID,
				Status:  model.StatusError,
				Message: err.Error(),
			})
		}
		logger.Info("workflow step dispatched", "step", stepID, "task_id", id, "target", step.TargetName)

		res, err := r.dispatcher.Wait(ctx, id, r.waitTimeout(step))
		if err != nil {
			return r.abort(logger, run, results, stepID, fmt.Errorf("wait for step %s: %w", stepID, err))
		}
		results[stepID] = res

		if res.Status != model.StatusSuccess {
			return r.abort(logger, run, results, stepID, &StepFailureError{
				Step:    stepID,
				Status:  res.Status,
				Message: res.Error,
			})
		}
	}

	run.Status = model.StatusSuccess
	run.Results = results
	run.FinishedAt = time.Now().UTC()
	r.observe(run)
	logger.Info("workflow completed", "steps", len(results),
		"duration_s", run.FinishedAt.Sub(run.StartedAt).Seconds())
	return run
}

func (r *Runner) waitTimeout(step model.WorkflowStep) time.Duration {
	t := step.Timeout()
	if t <= 0 {
		t = r.stepTimeout
	}
	return t + r.grace
}

func (r *Runner) abort(logger *slog.Logger, run *model.WorkflowRun, results map[string]*model.TaskResult, stepID string, err error) *model.WorkflowRun {
	run.Status = model.StatusError
	run.PartialResults = results
	run.FailedStep = stepID
	run.Err = err
	run.Error = err.Error()
	var sf *StepFailureError
	if errors.As(err, &sf) {
		run.Error = sf.Message
	}
	run.FinishedAt = time.Now().UTC()
	r.observe(run)
	logger.Error("workflow aborted", "step", stepID, "error", err)
	return run
}

func (r *Runner) observe(run *model.WorkflowRun) {
	workflowsTotal.WithLabelValues(run.Status).Inc()
	workflowDuration.WithLabelValues(run.Status).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
}

func checkStepIDs(steps []model.WorkflowStep) error {
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		id := s.StepID()
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateStep, id)
		}
		seen[id] = true
	}
	return nil
}

func stepContext(wfCtx map[string]any, step model.WorkflowStep, results map[string]*model.TaskResult, extracted map[string]any) map[string]any {
	out := make(map[string]any, len(wfCtx)+len(step.Context)+len(step.DependsOn)+len(extracted))
	maps.Copy(out, wfCtx)
	maps.Copy(out, step.Context)
	for _, dep := range step.DependsOn {
		out["result_"+dep] = results[dep]
	}
	maps.Copy(out, extracted)
	return out
}
