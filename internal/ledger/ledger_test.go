package ledger_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/seantiz/dispatch/internal/ledger"
	"github.com/seantiz/dispatch/internal/model"
)

func req(id string) model.TaskRequest {
	return model.TaskRequest{TaskID: id, TargetName: "echo", Instruction: "ping", CreatedAt: time.Now()}
}

func result(id, status string) *model.TaskResult {
	return &model.TaskResult{TaskID: id, TargetName: "echo", Status: status, CompletedAt: time.Now()}
}

func TestPutActiveAndStatus(t *testing.T) {
	l := ledger.New()
	if err := l.PutActive(req("t1")); err != nil {
		t.Fatalf("PutActive: %v", err)
	}

	st, ok := l.Status("t1")
	if !ok {
		t.Fatal("expected t1 to be known")
	}
	if st.Status != model.StatusRunning || st.Completed || st.CreatedAt == nil {
		t.Errorf("unexpected status: %+v", st)
	}

	if err := l.PutActive(req("t1")); !errors.Is(err, ledger.ErrDuplicate) {
		t.Errorf("duplicate PutActive err = %v, want ErrDuplicate", err)
	}
}

func TestStatusUnknown(t *testing.T) {
	l := ledger.New()
	if _, ok := l.Status("nope"); ok {
		t.Error("unknown id reported as known")
	}
	if _, ok := l.Done("nope"); ok {
		t.Error("Done returned ok for unknown id")
	}
}

func TestCompleteFirstWriterWins(t *testing.T) {
	l := ledger.New()
	l.PutActive(req("t1"))

	if !l.Complete(result("t1", model.StatusSuccess)) {
		t.Fatal("first Complete should record")
	}
	if l.Complete(result("t1", model.StatusError)) {
		t.Fatal("second Complete should be ignored")
	}

	res, ok := l.Result("t1")
	if !ok || res.Status != model.StatusSuccess {
		t.Errorf("result = %+v, want success", res)
	}
	if got := len(l.Active()); got != 0 {
		t.Errorf("active = %d, want 0", got)
	}
}

func TestDoneClosesOnComplete(t *testing.T) {
	l := ledger.New()
	l.PutActive(req("t1"))

	ch, ok := l.Done("t1")
	if !ok {
		t.Fatal("Done not ok")
	}
	select {
	case <-ch:
		t.Fatal("done closed before completion")
	default:
	}

	l.Complete(result("t1", model.StatusSuccess))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("done not closed after completion")
	}

	again, ok := l.Done("t1")
	if !ok {
		t.Fatal("Done not ok after completion")
	}
	select {
	case <-again:
	default:
		t.Fatal("Done for completed task should be closed")
	}
}

func TestDetachThenLateComplete(t *testing.T) {
	l := ledger.New()
	l.PutActive(req("t1"))

	if !l.Detach("t1") {
		t.Fatal("Detach should succeed for active task")
	}
	if l.Detach("t1") {
		t.Error("Detach twice should report false")
	}

	st, ok := l.Status("t1")
	if !ok || !st.Detached || st.Status != model.StatusRunning {
		t.Errorf("detached status = %+v", st)
	}
	if got := len(l.Active()); got != 0 {
		t.Errorf("active = %d, want 0", got)
	}

	l.Complete(result("t1", model.StatusSuccess))
	st, _ = l.Status("t1")
	if !st.Completed || st.Detached || st.Status != model.StatusSuccess {
		t.Errorf("late completion status = %+v", st)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	l := ledger.New()
	for i := range 5 {
		id := fmt.Sprintf("t%d", i)
		l.PutActive(req(id))
		l.Complete(result(id, model.StatusSuccess))
	}

	h := l.History(3)
	if len(h) != 3 {
		t.Fatalf("history len = %d, want 3", len(h))
	}
	for i, want := range []string{"t4", "t3", "t2"} {
		if h[i].TaskID != want {
			t.Errorf("history[%d] = %s, want %s", i, h[i].TaskID, want)
		}
	}
	if got := len(l.History(0)); got != 5 {
		t.Errorf("History(0) len = %d, want 5", got)
	}
}

func TestCounts(t *testing.T) {
	l := ledger.New()
	l.PutActive(req("a"))
	l.PutActive(req("b"))
	l.PutActive(req("c"))
	l.Detach("b")
	r := result("c", model.StatusError)
	r.ExecutionTime = 2
	l.Complete(r)

	c := l.Counts()
	if c.Active != 1 || c.Detached != 1 || c.Completed != 1 {
		t.Errorf("counts = %+v", c)
	}
	if c.ByStatus[model.StatusError] != 1 || c.AvgExecS != 2 {
		t.Errorf("counts = %+v", c)
	}
}

func TestConcurrentComplete(t *testing.T) {
	l := ledger.New()
	l.PutActive(req("t1"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 50 {
		wg.Go(func() {
			if l.Complete(result("t1", model.StatusSuccess)) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
	if got := len(l.History(0)); got != 1 {
		t.Errorf("history len = %d, want 1", got)
	}
}

// Every accepted id is either running or completed, never both and never
// neither, under any interleaving of operations.
func TestExactlyOnePlaceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := ledger.New()
		ids := []string{"a", "b", "c", "d"}
		accepted := map[string]bool{}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for range steps {
			id := rapid.SampledFrom(ids).Draw(t, "id")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				if err := l.PutActive(req(id)); err == nil {
					accepted[id] = true
				}
			case 1:
				if accepted[id] {
					l.Complete(result(id, model.StatusSuccess))
				}
			case 2:
				l.Detach(id)
			}
		}

		active := map[string]bool{}
		for _, r := range l.Active() {
			active[r.TaskID] = true
		}
		for _, id := range ids {
			st, known := l.Status(id)
			if known != accepted[id] {
				t.Fatalf("%s: known=%v accepted=%v", id, known, accepted[id])
			}
			if !known {
				continue
			}
			_, hasResult := l.Result(id)
			if hasResult == (st.Status == model.StatusRunning) {
				t.Fatalf("%s: result=%v status=%s", id, hasResult, st.Status)
			}
			if hasResult && active[id] {
				t.Fatalf("%s: both active and completed", id)
			}
			if !hasResult && !active[id] && !st.Detached {
				t.Fatalf("%s: neither running nor completed", id)
			}
		}
	})
}
