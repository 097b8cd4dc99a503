package model

import (
	"maps"
	"time"
	"unicode/utf8"
)

// Task status constants. Success, error and timeout are terminal.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// DefaultTimeout is applied to tasks submitted without a timeout.
const DefaultTimeout = 300 * time.Second

// IsTerminal reports whether status is one a task never leaves.
func IsTerminal(status string) bool {
	switch status {
	case StatusSuccess, StatusError, StatusTimeout:
		return true
	default:
		return false
	}
}

// TaskRequest is one unit of work submitted against a single target.
// It is immutable once the engine has accepted it.
type TaskRequest struct {
	TaskID      string         `json:"task_id"`
	TargetName  string         `json:"target_name"`
	Instruction string         `json:"instruction"`
	Context     map[string]any `json:"context"`
	Priority    int            `json:"priority"`
	Timeout     time.Duration  `json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Clone returns a copy of r with its own context map, so the engine never
// shares mutable state with the submitter.
func (r TaskRequest) Clone() TaskRequest {
	c := r
	c.Context = make(map[string]any, len(r.Context))
	maps.Copy(c.Context, r.Context)
	return c
}

// TaskResult is the terminal outcome of a task. Result is set only on
// success, Error only on error or timeout.
type TaskResult struct {
	TaskID        string    `json:"task_id"`
	TargetName    string    `json:"target_name"`
	Status        string    `json:"status"`
	Result        any       `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
	ExecutionTime float64   `json:"execution_time"`
	CompletedAt   time.Time `json:"completed_at"`
}

// TaskSummary is the listing form of an active task.
type TaskSummary struct {
	TaskID      string    `json:"task_id"`
	TargetName  string    `json:"target_name"`
	Instruction string    `json:"instruction"`
	Priority    int       `json:"priority"`
	TimeoutS    float64   `json:"timeout_s"`
	CreatedAt   time.Time `json:"created_at"`
}

// maxSummaryInstruction bounds the instruction text shown in listings.
const maxSummaryInstruction = 100

// Summarize builds the listing form of r, truncating long instructions.
func Summarize(r TaskRequest) TaskSummary {
	instr := r.Instruction
	if utf8.RuneCountInString(instr) > maxSummaryInstruction {
		instr = truncateRunes(instr, maxSummaryInstruction) + "..."
	}
	return TaskSummary{
		TaskID:      r.TaskID,
		TargetName:  r.TargetName,
		Instruction: instr,
		Priority:    r.Priority,
		TimeoutS:    r.Timeout.Seconds(),
		CreatedAt:   r.CreatedAt,
	}
}

// truncateRunes cuts s after n runes.
func truncateRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

// TaskStatus is the answer to a status query. Exactly one of Running and
// Result describes the task: Result is non-nil iff Completed is true.
type TaskStatus struct {
	TaskID     string      `json:"task_id"`
	Status     string      `json:"status"`
	Completed  bool        `json:"completed"`
	TargetName string      `json:"target_name"`
	CreatedAt  *time.Time  `json:"created_at,omitempty"`
	Detached   bool        `json:"detached,omitempty"`
	Result     *TaskResult `json:"result,omitempty"`
}
