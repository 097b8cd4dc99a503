package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/dispatch/internal/engine"
)

// handleStreamEvents streams a task's lifecycle events as SSE. Every event
// is named after its type ("queued", "running", "completed") and carries the
// JSON-encoded engine.Event. The stream always ends with a "done" event once
// the task has a terminal result.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := s.engine.Status(id)
	if errors.Is(err, engine.ErrTaskNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("get task for events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribing after the task finished yields a closed channel, so the
	// loop below falls through to the terminal status check.
	var ch <-chan engine.Event
	if !st.Completed {
		var unsub func()
		ch, unsub = s.engine.Broker().Subscribe(id)
		defer unsub()
	}

	eventStreams.Inc()
	defer eventStreams.Dec()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}
	flush()

	sawTerminal := false
	send := func(ev engine.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if ev.Type == engine.EventCompleted {
			sawTerminal = true
		}
		if err := writeSSEEvent(w, ev.Type, string(data)); err != nil {
			return err
		}
		flush()
		return nil
	}

	finish := func() {
		if !sawTerminal {
			if st, err := s.engine.Status(id); err == nil && st.Result != nil {
				_ = send(engine.Event{
					TaskID: id,
					Type:   engine.EventCompleted,
					Status: st.Result.Status,
					Time:   st.Result.CompletedAt,
					Result: st.Result,
				})
			}
		}
		_ = writeSSEEvent(w, "done", "stream complete")
		flush()
	}

	if ch == nil {
		finish()
		return
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				finish()
				return
			}
			if err := send(ev); err != nil {
				return // Write failed (e.g. client gone).
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}
