// Package ledger is the authoritative in-memory record of active and
// completed tasks.
//
// A task id lives in exactly one of three places once accepted: the active
// set, the detached set (a waiter gave up but execution is still running),
// or the result set. Every move between them happens under one lock.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/seantiz/dispatch/internal/model"
)

// ErrDuplicate is returned when a task id is registered twice.
var ErrDuplicate = errors.New("task already registered")

// Ledger is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	active   map[string]model.TaskRequest
	detached map[string]model.TaskRequest
	results  map[string]*model.TaskResult
	order    []string // result ids in completion order
	done     map[string]chan struct{}
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		active:   make(map[string]model.TaskRequest),
		detached: make(map[string]model.TaskRequest),
		results:  make(map[string]*model.TaskResult),
		done:     make(map[string]chan struct{}),
	}
}

// PutActive registers an accepted task.
func (l *Ledger) PutActive(req model.TaskRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.known(req.TaskID) {
		return fmt.Errorf("%w: %s", ErrDuplicate, req.TaskID)
	}
	l.active[req.TaskID] = req
	l.done[req.TaskID] = make(chan struct{})
	return nil
}

func (l *Ledger) known(id string) bool {
	if _, ok := l.active[id]; ok {
		return true
	}
	if _, ok := l.detached[id]; ok {
		return true
	}
	_, ok := l.results[id]
	return ok
}

// Complete records the terminal result of a task and releases its waiters.
// The result is written whether or not the task is still active; the first
// result recorded for an id wins and is never replaced. Complete reports
// whether res was the one recorded.
func (l *Ledger) Complete(res *model.TaskResult) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.results[res.TaskID]; ok {
		return false
	}
	l.results[res.TaskID] = res
	l.order = append(l.order, res.TaskID)
	delete(l.active, res.TaskID)
	delete(l.detached, res.TaskID)

	if ch, ok := l.done[res.TaskID]; ok {
		close(ch)
		delete(l.done, res.TaskID)
	}
	return true
}

// Detach moves a still-active task out of the active set after its waiter
// gave up. The task keeps reporting as running until its result arrives.
// Detach reports whether the task was active.
func (l *Ledger) Detach(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.active[id]
	if !ok {
		return false
	}
	delete(l.active, id)
	l.detached[id] = req
	return true
}

// Result returns the recorded result of a task, if any.
func (l *Ledger) Result(id string) (*model.TaskResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.results[id]
	return res, ok
}

// Done returns a channel closed when the task's result is recorded. For a
// completed task the returned channel is already closed. ok is false for
// unknown ids.
func (l *Ledger) Done(id string) (<-chan struct{}, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if ch, ok := l.done[id]; ok {
		return ch, true
	}
	if _, ok := l.results[id]; ok {
		return closedChan, true
	}
	return nil, false
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Status reports where a task stands. ok is false for unknown ids.
func (l *Ledger) Status(id string) (model.TaskStatus, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if res, ok := l.results[id]; ok {
		return model.TaskStatus{
			TaskID:     id,
			Status:     res.Status,
			Completed:  true,
			TargetName: res.TargetName,
			Result:     res,
		}, true
	}

	req, ok := l.active[id]
	detached := false
	if !ok {
		req, ok = l.detached[id]
		detached = ok
	}
	if !ok {
		return model.TaskStatus{}, false
	}
	created := req.CreatedAt
	return model.TaskStatus{
		TaskID:     id,
		Status:     model.StatusRunning,
		TargetName: req.TargetName,
		CreatedAt:  &created,
		Detached:   detached,
	}, true
}

// Active returns the active tasks in no particular order.
func (l *Ledger) Active() []model.TaskRequest {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.TaskRequest, 0, len(l.active))
	for _, req := range l.active {
		out = append(out, req)
	}
	return out
}

// History returns up to limit results, most recently completed first.
// A non-positive limit returns all results.
func (l *Ledger) History(limit int) []*model.TaskResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.order)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*model.TaskResult, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.results[l.order[i]])
	}
	return out
}

// Counts holds ledger occupancy figures.
type Counts struct {
	Active    int            `json:"active"`
	Detached  int            `json:"detached"`
	Completed int            `json:"completed"`
	ByStatus  map[string]int `json:"by_status"`
	ByTarget  map[string]int `json:"by_target"`
	AvgExecS  float64        `json:"avg_execution_time"`
}

// Counts summarizes the ledger.
func (l *Ledger) Counts() Counts {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c := Counts{
		Active:    len(l.active),
		Detached:  len(l.detached),
		Completed: len(l.results),
		ByStatus:  make(map[string]int),
		ByTarget:  make(map[string]int),
	}
	var total float64
	for _, res := range l.results {
		c.ByStatus[res.Status]++
		c.ByTarget[res.TargetName]++
		total += res.ExecutionTime
	}
	if len(l.results) > 0 {
		c.AvgExecS = total / float64(len(l.results))
	}
	return c
}
