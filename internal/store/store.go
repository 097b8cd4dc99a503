// Package store archives terminal task results and workflow runs.
//
// The archive is append-only: a record written once is never updated. It
// backs statistics and audit queries and is never read back into the live
// ledger.
package store

import (
	"context"
	"errors"

	"github.com/seantiz/dispatch/internal/model"
)

// ErrNotFound is returned when an archived record does not exist.
var ErrNotFound = errors.New("record not found")

// ResultStats holds aggregate execution statistics.
type ResultStats struct {
	Total            int            `json:"total"`
	CountByStatus    map[string]int `json:"count_by_status"`
	CountByTarget    map[string]int `json:"count_by_target"`
	AvgExecutionTime float64        `json:"avg_execution_time"`
}

// Store defines the archive operations.
type Store interface {
	// SaveResult appends res. Saving an id that already exists is a no-op.
	SaveResult(ctx context.Context, res *model.TaskResult) error
	GetResult(ctx context.Context, id string) (*model.TaskResult, error)
	// ListResults returns archived results, most recently completed first,
	// along with the total count.
	ListResults(ctx context.Context, limit, offset int) ([]*model.TaskResult, int, error)
	GetResultStats(ctx context.Context) (*ResultStats, error)
	SaveWorkflowRun(ctx context.Context, run *model.WorkflowRun) error
	GetWorkflowRun(ctx context.Context, id string) (*model.WorkflowRun, error)
	Close() error
}
