package model

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as an entity identifier.
func NewID() string {
	return ulid.Make().String()
}

// NewWorkflowID generates an identifier for a single workflow run.
func NewWorkflowID() string {
	return "wf_" + uuid.NewString()
}

// TaskIDs hands out task identifiers of the form task_<seq>_<ulid>. The
// sequence number makes ids distinguishable in submission order within the
// process and the ULID carries the timestamp, so ids are never reused even
// across generators. Safe for concurrent use.
type TaskIDs struct {
	seq atomic.Uint64
}

// Next returns the next task identifier.
func (g *TaskIDs) Next() string {
	n := g.seq.Add(1)
	return fmt.Sprintf("task_%d_%s", n, NewID())
}
