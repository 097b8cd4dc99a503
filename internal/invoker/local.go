package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// localScheme prefixes endpoints served by in-process handlers.
const localScheme = "local://"

// LocalEndpoint returns the in-process endpoint for name.
func LocalEndpoint(name string) string {
	return localScheme + name
}

// Handler executes an instruction in-process.
type Handler func(ctx context.Context, instruction string, taskCtx map[string]any) (any, error)

// Compile-time interface satisfaction check.
var _ Invoker = (*LocalInvoker)(nil)

// LocalInvoker dispatches local://<name> endpoints to registered handlers.
type LocalInvoker struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewLocalInvoker creates an invoker with no handlers.
func NewLocalInvoker() *LocalInvoker {
	return &LocalInvoker{handlers: make(map[string]Handler)}
}

// Handle registers h under name, replacing any previous handler.
func (l *LocalInvoker) Handle(name string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[name] = h
}

// Invoke implements Invoker. Handler errors that are not already typed are
// wrapped as InvocationError.
func (l *LocalInvoker) Invoke(ctx context.Context, endpoint, instruction string, taskCtx map[string]any) (any, error) {
	name := strings.TrimPrefix(endpoint, localScheme)

	l.mu.RLock()
	h, ok := l.handlers[name]
	l.mu.RUnlock()
	if !ok {
		return nil, &InvocationError{Endpoint: endpoint, Message: fmt.Sprintf("no local handler for %q", name)}
	}

	result, err := h(ctx, instruction, taskCtx)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, contextErr(ctx)
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) {
		return nil, err
	}
	return nil, &InvocationError{Endpoint: endpoint, Message: err.Error(), Err: err}
}
