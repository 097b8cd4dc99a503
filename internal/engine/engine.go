package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/seantiz/dispatch/internal/invoker"
	"github.com/seantiz/dispatch/internal/ledger"
	"github.com/seantiz/dispatch/internal/model"
	"github.com/seantiz/dispatch/internal/store"
	"github.com/seantiz/dispatch/internal/target"
)

const (
	// DefaultPoolSize bounds concurrent executions when New is given a
	// non-positive size.
	DefaultPoolSize = 10

	// DefaultHistoryLimit is used by History when limit is not positive.
	DefaultHistoryLimit = 100

	archiveTimeout = 5 * time.Second
)

// Callback is invoked once with a task's terminal result. An error or panic
// is logged and otherwise ignored.
type Callback func(*model.TaskResult) error

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithArchive makes the engine append every terminal result to s.
func WithArchive(s store.Store) Option {
	return func(e *Engine) { e.archive = s }
}

// WithDefaultTimeout sets the timeout applied to requests that carry none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// Engine accepts tasks, executes them against targets under a bounded pool,
// and records their results. Construct with New and release with Shutdown.
type Engine struct {
	resolver       target.Resolver
	invoker        invoker.Invoker
	ledger         *ledger.Ledger
	broker         *EventBroker
	archive        store.Store
	logger         *slog.Logger
	defaultTimeout time.Duration
	poolSize       int

	ids   model.TaskIDs
	queue *queue
	pool  *semaphore.Weighted

	// mu orders submissions against Shutdown.
	mu     sync.RWMutex
	closed bool

	cbMu      sync.Mutex
	callbacks map[string]Callback

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	drained chan struct{}
}

// New creates an engine and starts its drain loop. poolSize bounds the
// number of tasks executing at once.
func New(resolver target.Resolver, inv invoker.Invoker, poolSize int, opts ...Option) *Engine {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		resolver:       resolver,
		invoker:        inv,
		ledger:         ledger.New(),
		broker:         NewEventBroker(),
		logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		defaultTimeout: model.DefaultTimeout,
		poolSize:       poolSize,
		queue:          newQueue(),
		pool:           semaphore.NewWeighted(int64(poolSize)),
		callbacks:      make(map[string]Callback),
		baseCtx:        ctx,
		cancel:         cancel,
		drained:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	go e.drain()
	return e
}

// Broker returns the engine's lifecycle event broker.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// PoolSize returns the maximum number of concurrent executions.
func (e *Engine) PoolSize() int {
	return e.poolSize
}

// Submit accepts req for asynchronous execution and returns its task id.
// It never waits for execution.
func (e *Engine) Submit(ctx context.Context, req model.TaskRequest) (string, error) {
	return e.SubmitWithCallback(ctx, req, nil)
}

// SubmitWithCallback is Submit with a callback invoked once with the task's
// terminal result.
func (e *Engine) SubmitWithCallback(ctx context.Context, req model.TaskRequest, cb Callback) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return "", ErrShutdown
	}

	accepted, err := e.accept(req, cb)
	if err != nil {
		return "", err
	}
	e.queue.push(accepted)

	e.broker.Publish(Event{
		TaskID: accepted.TaskID,
		Type:   EventQueued,
		Status: model.StatusRunning,
		Time:   accepted.CreatedAt,
	})
	e.logger.Info("task submitted",
		"task_id", accepted.TaskID,
		"target", accepted.TargetName,
		"timeout_s", accepted.Timeout.Seconds(),
	)
	return accepted.TaskID, nil
}

// Execute runs req synchronously in the caller's goroutine, outside the
// pool, and returns its terminal result. An error is returned only when the
// request is not accepted; once accepted every failure is reported in the
// result.
func (e *Engine) Execute(ctx context.Context, req model.TaskRequest) (*model.TaskResult, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrShutdown
	}
	accepted, err := e.accept(req, nil)
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	tasksInflight.Inc()
	defer tasksInflight.Dec()
	return e.execute(ctx, accepted), nil
}

// accept validates req, fills in defaults, and registers it as active.
func (e *Engine) accept(req model.TaskRequest, cb Callback) (model.TaskRequest, error) {
	if req.TargetName == "" {
		return model.TaskRequest{}, fmt.Errorf("%w: target name is required", ErrInvalidRequest)
	}
	if req.Timeout < 0 {
		return model.TaskRequest{}, fmt.Errorf("%w: timeout must not be negative", ErrInvalidRequest)
	}

	r := req.Clone()
	if r.TaskID == "" {
		r.TaskID = e.ids.Next()
	}
	if r.Timeout == 0 {
		r.Timeout = e.defaultTimeout
	}
	r.CreatedAt = time.Now().UTC()

	if err := e.ledger.PutActive(r); err != nil {
		return model.TaskRequest{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	// The task is not queued yet, so nothing can finish it before the
	// callback is in place.
	if cb != nil {
		e.cbMu.Lock()
		e.callbacks[r.TaskID] = cb
		e.cbMu.Unlock()
	}

	tasksSubmitted.Inc()
	return r, nil
}

// drain hands queued requests to the executor, one pool slot each.
func (e *Engine) drain() {
	defer close(e.drained)

	for {
		// Take the slot first so requests stay queued while the pool is full.
		if err := e.pool.Acquire(context.Background(), 1); err != nil {
			e.logger.Error("acquire pool slot", "error", err)
			return
		}
		req, ok := e.queue.pop()
		if !ok {
			e.pool.Release(1)
			return
		}

		tasksInflight.Inc()
		e.wg.Go(func() {
			defer e.pool.Release(1)
			defer tasksInflight.Dec()
			e.execute(e.baseCtx, req)
		})
	}
}

// execute runs one accepted request to a terminal result and records it.
func (e *Engine) execute(ctx context.Context, req model.TaskRequest) *model.TaskResult {
	e.broker.Publish(Event{
		TaskID: req.TaskID,
		Type:   EventRunning,
		Status: model.StatusRunning,
		Time:   time.Now().UTC(),
	})

	start := time.Now()
	res := e.run(ctx, req)
	res.TaskID = req.TaskID
	res.TargetName = req.TargetName
	res.ExecutionTime = time.Since(start).Seconds()
	res.CompletedAt = time.Now().UTC()

	return e.finish(res)
}

// run performs target resolution, startup and invocation. It always returns
// a result; the caller stamps identity and timing.
func (e *Engine) run(ctx context.Context, req model.TaskRequest) *model.TaskResult {
	if ctx.Err() != nil {
		return failed(model.StatusError, "engine shutting down")
	}

	endpoint, err := e.resolver.Resolve(req.TargetName)
	if err != nil {
		return failed(model.StatusError, resolveMessage(req.TargetName, err))
	}

	if !e.resolver.IsRunning(req.TargetName) {
		if err := e.resolver.Start(ctx, req.TargetName); err != nil {
			e.logger.Warn("failed to start target", "task_id", req.TaskID, "target", req.TargetName, "error", err)
			return failed(model.StatusError, fmt.Sprintf("failed to start target: %s", req.TargetName))
		}
		if endpoint, err = e.resolver.Resolve(req.TargetName); err != nil {
			return failed(model.StatusError, resolveMessage(req.TargetName, err))
		}
	}

	payload, err := e.invoke(ctx, endpoint, req)
	switch {
	case err == nil:
		return &model.TaskResult{Status: model.StatusSuccess, Result: payload}
	case errors.Is(err, invoker.ErrTimeout):
		return failed(model.StatusTimeout, invoker.ErrTimeout.Error())
	default:
		return failed(model.StatusError, err.Error())
	}
}

// invoke calls the invoker under req.Timeout. The deadline is enforced here
// even if the invoker ignores its context.
func (e *Engine) invoke(parent context.Context, endpoint string, req model.TaskRequest) (any, error) {
	ctx, cancel := context.WithTimeout(parent, req.Timeout)
	defer cancel()

	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("invoker panic: %v", r)}
			}
		}()
		payload, err := e.invoker.Invoke(ctx, endpoint, req.Instruction, req.Context)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, invoker.ErrTimeout
		}
		return o.payload, o.err
	case <-ctx.Done():
		select {
		case o := <-done:
			if o.err == nil {
				return o.payload, nil
			}
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, invoker.ErrTimeout
		}
		return nil, errors.New("execution canceled")
	}
}

// finish records res in the ledger, then archives, publishes and notifies.
// Only the first result for an id goes through; later ones are discarded.
func (e *Engine) finish(res *model.TaskResult) *model.TaskResult {
	if !e.ledger.Complete(res) {
		e.logger.Warn("duplicate result discarded", "task_id", res.TaskID, "status", res.Status)
		existing, _ := e.ledger.Result(res.TaskID)
		return existing
	}

	tasksCompleted.WithLabelValues(res.Status).Inc()
	taskExecutionSeconds.WithLabelValues(res.Status).Observe(res.ExecutionTime)

	attrs := []any{
		"task_id", res.TaskID,
		"target", res.TargetName,
		"status", res.Status,
		"execution_time_s", res.ExecutionTime,
	}
	if res.Error != "" {
		attrs = append(attrs, "error", res.Error)
	}
	e.logger.Info("task completed", attrs...)

	if e.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		if err := e.archive.SaveResult(ctx, res); err != nil {
			e.logger.Error("failed to archive result", "task_id", res.TaskID, "error", err)
		}
		cancel()
	}

	e.broker.Publish(Event{
		TaskID: res.TaskID,
		Type:   EventCompleted,
		Status: res.Status,
		Time:   res.CompletedAt,
		Result: res,
	})
	e.broker.Close(res.TaskID)

	if cb := e.takeCallback(res.TaskID); cb != nil {
		e.notify(cb, res)
	}
	return res
}

func (e *Engine) takeCallback(id string) Callback {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	cb := e.callbacks[id]
	delete(e.callbacks, id)
	return cb
}

// notify runs cb, isolating the engine from its errors and panics.
func (e *Engine) notify(cb Callback, res *model.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			callbackFailures.Inc()
			e.logger.Error("callback panicked", "task_id", res.TaskID, "panic", fmt.Sprint(r))
		}
	}()
	if err := cb(res); err != nil {
		callbackFailures.Inc()
		e.logger.Error("callback failed", "task_id", res.TaskID, "error", err)
	}
}

// Wait blocks until the task reaches a terminal result, timeout elapses, or
// ctx is done. When timeout elapses first the task is detached from the
// active set and a synthesized timeout result is returned; the execution
// still records its own result when it finishes.
func (e *Engine) Wait(ctx context.Context, id string, timeout time.Duration) (*model.TaskResult, error) {
	done, ok := e.ledger.Done(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		res, _ := e.ledger.Result(id)
		return res, nil
	case <-timer.C:
		select {
		case <-done:
			res, _ := e.ledger.Result(id)
			return res, nil
		default:
		}
		return e.abandon(id, timeout), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// abandon detaches a task whose waiter gave up. A result recorded between
// the timer firing and the detach is returned instead of a synthesized one.
func (e *Engine) abandon(id string, waited time.Duration) *model.TaskResult {
	st, _ := e.ledger.Status(id)
	if !e.ledger.Detach(id) {
		if res, ok := e.ledger.Result(id); ok {
			return res
		}
	}
	waitTimeouts.Inc()
	e.logger.Warn("wait timeout exceeded", "task_id", id, "waited_s", waited.Seconds())

	return &model.TaskResult{
		TaskID:        id,
		TargetName:    st.TargetName,
		Status:        model.StatusTimeout,
		Error:         "wait timeout exceeded",
		ExecutionTime: waited.Seconds(),
		CompletedAt:   time.Now().UTC(),
	}
}

// Status reports the current state of a task.
func (e *Engine) Status(id string) (model.TaskStatus, error) {
	st, ok := e.ledger.Status(id)
	if !ok {
		return model.TaskStatus{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return st, nil
}

// ListActive summarizes the active tasks, oldest first.
func (e *Engine) ListActive() []model.TaskSummary {
	active := e.ledger.Active()
	slices.SortFunc(active, func(a, b model.TaskRequest) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.TaskID, b.TaskID)
	})

	out := make([]model.TaskSummary, len(active))
	for i, r := range active {
		out[i] = model.Summarize(r)
	}
	return out
}

// History returns up to limit terminal results, most recently completed
// first.
func (e *Engine) History(limit int) []*model.TaskResult {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return e.ledger.History(limit)
}

// Counts summarizes the ledger.
func (e *Engine) Counts() ledger.Counts {
	return e.ledger.Counts()
}

// QueueDepth returns the number of accepted tasks waiting for a pool slot.
func (e *Engine) QueueDepth() int {
	return e.queue.len()
}

// Shutdown stops intake and waits for queued and running tasks to finish.
// If ctx ends first, outstanding executions are canceled and recorded as
// errors before Shutdown returns ctx's error.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.queue.close()
	e.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		<-e.drained
		e.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		<-finished
		return ctx.Err()
	}
}

func failed(status, msg string) *model.TaskResult {
	return &model.TaskResult{Status: status, Error: msg}
}

func resolveMessage(name string, err error) string {
	if errors.Is(err, target.ErrNotFound) {
		return fmt.Sprintf("target not found: %s", name)
	}
	return err.Error()
}
