package invoker

import (
	"context"
	"fmt"
	"strings"
)

// Compile-time interface satisfaction check.
var _ Invoker = (*Mux)(nil)

// Mux routes an endpoint to the invoker registered for its scheme.
type Mux struct {
	schemes map[string]Invoker
}

// NewMux builds a mux serving local:// with local and http(s):// with remote.
// Either may be nil to leave that scheme unrouted.
func NewMux(local *LocalInvoker, remote Invoker) *Mux {
	m := &Mux{schemes: make(map[string]Invoker)}
	if local != nil {
		m.schemes["local"] = local
	}
	if remote != nil {
		m.schemes["http"] = remote
		m.schemes["https"] = remote
	}
	return m
}

// Route registers inv for scheme.
func (m *Mux) Route(scheme string, inv Invoker) {
	m.schemes[scheme] = inv
}

// Invoke implements Invoker.
func (m *Mux) Invoke(ctx context.Context, endpoint, instruction string, taskCtx map[string]any) (any, error) {
	scheme, _, ok := strings.Cut(endpoint, "://")
	if !ok {
		return nil, &InvocationError{Endpoint: endpoint, Message: fmt.Sprintf("endpoint %q has no scheme", endpoint)}
	}
	inv, ok := m.schemes[strings.ToLower(scheme)]
	if !ok {
		return nil, &InvocationError{Endpoint: endpoint, Message: fmt.Sprintf("unsupported endpoint scheme %q", scheme)}
	}
	return inv.Invoke(ctx, endpoint, instruction, taskCtx)
}
