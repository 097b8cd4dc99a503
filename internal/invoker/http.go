package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseSize bounds the body read from a target (16 MiB).
const maxResponseSize = 16 << 20

// Compile-time interface satisfaction check.
var _ Invoker = (*HTTPInvoker)(nil)

// HTTPInvoker invokes targets over HTTP+JSON.
type HTTPInvoker struct {
	client *http.Client
}

// NewHTTPInvoker creates an invoker using client, or a default client when nil.
// The per-call deadline comes from the context, not the client.
func NewHTTPInvoker(client *http.Client) *HTTPInvoker {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPInvoker{client: client}
}

// Invoke implements Invoker.
func (h *HTTPInvoker) Invoke(ctx context.Context, endpoint, instruction string, taskCtx map[string]any) (any, error) {
	if taskCtx == nil {
		taskCtx = map[string]any{}
	}
	body, err := json.Marshal(ExecuteRequest{
		Instruction: instruction,
		Context:     taskCtx,
		Timeout:     timeoutFromContext(ctx),
	})
	if err != nil {
		return nil, &InvocationError{Endpoint: endpoint, Message: fmt.Sprintf("encode request: %v", err), Err: err}
	}

	url := strings.TrimRight(endpoint, "/") + "/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &InvocationError{Endpoint: endpoint, Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextErr(ctx)
		}
		return nil, &InvocationError{Endpoint: endpoint, Message: fmt.Sprintf("call %s: %v", url, err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextErr(ctx)
		}
		return nil, &InvocationError{Endpoint: endpoint, Message: fmt.Sprintf("read response: %v", err), Err: err}
	}

	var out ExecuteResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &InvocationError{Endpoint: endpoint, Message: fmt.Sprintf("target returned status %d", resp.StatusCode)}
		}
		return nil, &InvocationError{Endpoint: endpoint, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}

	if out.Status == ResponseSuccess && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return out.Result, nil
	}

	msg := out.Error
	if msg == "" {
		msg = fmt.Sprintf("target returned status %d", resp.StatusCode)
	}
	return nil, &InvocationError{Endpoint: endpoint, Message: msg}
}
