package engine

import (
	"context"
	"testing"
	"time"

	"github.com/seantiz/dispatch/internal/model"
)

func TestAbandonPrefersRecordedResult(t *testing.T) {
	e := New(nil, nil, 1)
	t.Cleanup(func() { e.Shutdown(context.Background()) })

	if err := e.ledger.PutActive(model.TaskRequest{TaskID: "t1", TargetName: "echo"}); err != nil {
		t.Fatalf("PutActive: %v", err)
	}
	// The executor finishes after the waiter's timer fired but before it
	// detaches the task.
	e.ledger.Complete(&model.TaskResult{TaskID: "t1", TargetName: "echo", Status: model.StatusSuccess, Result: "pong"})

	res := e.abandon("t1", 10*time.Millisecond)
	if res.Status != model.StatusSuccess || res.Result != "pong" {
		t.Errorf("abandon = %+v, want the recorded success", res)
	}
}

func TestAbandonDetachesRunningTask(t *testing.T) {
	e := New(nil, nil, 1)
	t.Cleanup(func() { e.Shutdown(context.Background()) })

	if err := e.ledger.PutActive(model.TaskRequest{TaskID: "t1", TargetName: "echo"}); err != nil {
		t.Fatalf("PutActive: %v", err)
	}

	res := e.abandon("t1", 10*time.Millisecond)
	if res.Status != model.StatusTimeout || res.Error != "wait timeout exceeded" {
		t.Errorf("abandon = %+v, want synthesized wait timeout", res)
	}
	st, _ := e.ledger.Status("t1")
	if !st.Detached {
		t.Errorf("status = %+v, want detached", st)
	}

	// A second waiter giving up on a detached task still gets a timeout.
	if again := e.abandon("t1", 10*time.Millisecond); again.Status != model.StatusTimeout {
		t.Errorf("second abandon = %+v, want timeout", again)
	}
}
