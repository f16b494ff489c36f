package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"marketwire/internal/core"
)

type stubProcessor struct {
	calls      atomic.Int64
	concurrent atomic.Int64
	peak       atomic.Int64
	delay      time.Duration
}

func (p *stubProcessor) Process(ctx context.Context, source string, ts time.Time) (*core.Article, error) {
	p.calls.Add(1)
	cur := p.concurrent.Add(1)
	defer p.concurrent.Add(-1)
	for {
		old := p.peak.Load()
		if cur <= old || p.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if strings.Contains(source, "bad") {
		return nil, errors.New("page blocked")
	}
	if strings.Contains(source, "panic") {
		panic("bad pipeline state")
	}
	return &core.Article{Title: "ok", Source: source, Timestamp: ts, Score: 10}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitDone(t *testing.T, m *Manager, id string) core.BatchTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := m.Status(id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if task.Status == core.TaskCompleted || task.Status == core.TaskFailed {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not finish in time")
	return core.BatchTask{}
}

func items(sources ...string) []core.BatchItem {
	out := make([]core.BatchItem, len(sources))
	for i, s := range sources {
		out[i] = core.BatchItem{Source: s, Timestamp: time.Now()}
	}
	return out
}

func TestSubmitAndComplete(t *testing.T) {
	proc := &stubProcessor{}
	m := NewManager(proc, 2, 10, testLogger())

	id, err := m.Submit(items("https://a.example/1", "https://a.example/2", "https://a.example/3"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	task := waitDone(t, m, id)
	if task.Status != core.TaskCompleted {
		t.Errorf("status = %s, want completed", task.Status)
	}
	if len(task.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(task.Results))
	}
	for i := 0; i < 3; i++ {
		if task.Results[i].Article == nil || task.Results[i].Error != "" {
			t.Errorf("item %d should have succeeded: %+v", i, task.Results[i])
		}
	}
	if task.CompletedAt == nil {
		t.Error("completed task must carry a completion time")
	}
}

func TestPartialFailureStillCompletes(t *testing.T) {
	m := NewManager(&stubProcessor{}, 2, 10, testLogger())

	id, _ := m.Submit(items("https://a.example/ok", "https://a.example/bad", "https://a.example/ok2"))
	task := waitDone(t, m, id)

	if task.Status != core.TaskCompleted {
		t.Errorf("item failures must not fail the task, status = %s", task.Status)
	}
	if task.Results[1].Error != "page blocked" || task.Results[1].Article != nil {
		t.Errorf("item 1 should carry its error: %+v", task.Results[1])
	}
	if task.Results[0].Article == nil || task.Results[2].Article == nil {
		t.Error("other items should still succeed")
	}
}

func TestPanicBecomesItemError(t *testing.T) {
	m := NewManager(&stubProcessor{}, 1, 10, testLogger())

	id, _ := m.Submit(items("https://a.example/panic", "https://a.example/ok"))
	task := waitDone(t, m, id)

	if task.Status != core.TaskCompleted {
		t.Errorf("status = %s, want completed", task.Status)
	}
	if !strings.Contains(task.Results[0].Error, "panic") {
		t.Errorf("panic should surface as the item error: %+v", task.Results[0])
	}
	if task.Results[1].Article == nil {
		t.Error("items after a panic should still run")
	}
}

func TestConcurrencyBound(t *testing.T) {
	proc := &stubProcessor{delay: 30 * time.Millisecond}
	m := NewManager(proc, 2, 10, testLogger())

	var srcs []string
	for i := 0; i < 8; i++ {
		srcs = append(srcs, fmt.Sprintf("https://a.example/%d", i))
	}
	id, _ := m.Submit(items(srcs...))
	waitDone(t, m, id)

	if peak := proc.peak.Load(); peak > 2 {
		t.Errorf("worker pool exceeded its bound: peak concurrency %d", peak)
	}
	if proc.calls.Load() != 8 {
		t.Errorf("expected 8 processed items, got %d", proc.calls.Load())
	}
}

func TestSubmitValidation(t *testing.T) {
	m := NewManager(&stubProcessor{}, 2, 10, testLogger())

	if _, err := m.Submit(nil); err == nil {
		t.Error("empty batch should be rejected")
	}
	if _, err := m.Submit([]core.BatchItem{{Source: ""}}); err == nil {
		t.Error("item without a source should be rejected")
	}
}

func TestStatusUnknownTask(t *testing.T) {
	m := NewManager(&stubProcessor{}, 2, 10, testLogger())
	if _, err := m.Status("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
	if err := m.Cancel("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	proc := &stubProcessor{delay: 200 * time.Millisecond}
	m := NewManager(proc, 1, 10, testLogger())

	id, _ := m.Submit(items("https://a.example/1", "https://a.example/2", "https://a.example/3"))
	time.Sleep(20 * time.Millisecond)
	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	task := waitDone(t, m, id)
	if task.Status != core.TaskFailed {
		t.Errorf("canceled task status = %s, want failed", task.Status)
	}
	succeeded, errored := 0, 0
	for _, r := range task.Results {
		if r.Error != "" {
			errored++
		} else {
			succeeded++
		}
	}
	// The item in flight at cancel time finishes naturally; the rest are
	// never dispatched.
	if succeeded != 1 || errored != 2 {
		t.Errorf("got %d succeeded / %d errored, want 1 / 2", succeeded, errored)
	}
}

func TestRetentionEvictsOldestFinished(t *testing.T) {
	m := NewManager(&stubProcessor{}, 2, 2, testLogger())

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := m.Submit(items(fmt.Sprintf("https://a.example/%d", i)))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		waitDone(t, m, id)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	if _, err := m.Status(ids[0]); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("oldest finished task should be evicted, got %v", err)
	}
	if _, err := m.Status(ids[3]); err != nil {
		t.Errorf("newest task should survive: %v", err)
	}
}

func TestStatusSnapshotIsDetached(t *testing.T) {
	m := NewManager(&stubProcessor{}, 2, 10, testLogger())

	id, _ := m.Submit(items("https://a.example/1"))
	task := waitDone(t, m, id)

	task.Results[0] = core.BatchItemResult{Index: 0, Error: "mutated"}
	again, _ := m.Status(id)
	if again.Results[0].Error == "mutated" {
		t.Error("snapshot mutation leaked into the manager")
	}
}
