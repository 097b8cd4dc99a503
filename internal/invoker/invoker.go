// Package invoker performs the single request/response exchange a task
// makes against its target's endpoint.
package invoker

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the exchange exceeds its time budget.
var ErrTimeout = errors.New("execution timed out")

// InvocationError reports a call that reached the target and failed there,
// or failed in transport.
type InvocationError struct {
	Endpoint string
	Message  string
	Err      error
}

func (e *InvocationError) Error() string {
	return e.Message
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Invoker calls a target endpoint. The context carries the task's deadline;
// implementations return ErrTimeout once it passes.
type Invoker interface {
	Invoke(ctx context.Context, endpoint, instruction string, taskCtx map[string]any) (any, error)
}

// Func adapts a plain function to Invoker.
type Func func(ctx context.Context, endpoint, instruction string, taskCtx map[string]any) (any, error)

// Invoke implements Invoker.
func (f Func) Invoke(ctx context.Context, endpoint, instruction string, taskCtx map[string]any) (any, error) {
	return f(ctx, endpoint, instruction, taskCtx)
}

// ExecuteRequest is the body POSTed to {endpoint}/execute.
type ExecuteRequest struct {
	Instruction string         `json:"instruction"`
	Context     map[string]any `json:"context"`
	Timeout     float64        `json:"timeout"`
}

// Response status values reported by targets.
const (
	ResponseSuccess = "success"
	ResponseError   = "error"
)

// ExecuteResponse is the body a target returns from /execute.
type ExecuteResponse struct {
	Status        string    `json:"status"`
	Result        any       `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
	ExecutionTime float64   `json:"execution_time"`
	Timestamp     time.Time `json:"timestamp"`
}

// timeoutFromContext converts the remaining context budget to seconds, or
// zero when the context has no deadline.
func timeoutFromContext(ctx context.Context) float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return max(time.Until(deadline).Seconds(), 0)
}

// contextErr maps a finished context to the invoker's error taxonomy.
func contextErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
