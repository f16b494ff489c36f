// Package batch runs grouped article submissions asynchronously. A batch is
// accepted immediately with a task ID, processed by a bounded worker pool,
// and polled for status until every item has an outcome. One failed item
// never aborts the rest of its batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketwire/internal/core"
)

// ErrTaskNotFound is returned by Status and Cancel for unknown task IDs.
var ErrTaskNotFound = errors.New("batch task not found")

// Defaults applied when the manager is built with zero values.
const (
	DefaultConcurrency = 4
	DefaultMaxRetained = 100
)

// Processor runs the article pipeline for one batch item.
type Processor interface {
	Process(ctx context.Context, source string, timestamp time.Time) (*core.Article, error)
}

type task struct {
	core.BatchTask
	cancel context.CancelFunc
}

// Manager owns batch task lifecycle and the shared worker pool.
type Manager struct {
	mu          sync.Mutex
	tasks       map[string]*task
	proc        Processor
	concurrency int
	maxRetained int
	log         *slog.Logger
}

func NewManager(proc Processor, concurrency, maxRetained int, log *slog.Logger) *Manager {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if maxRetained <= 0 {
		maxRetained = DefaultMaxRetained
	}
	return &Manager{
		tasks:       make(map[string]*task),
		proc:        proc,
		concurrency: concurrency,
		maxRetained: maxRetained,
		log:         log,
	}
}

// Submit validates the batch, registers a task, and starts processing in the
// background. It returns the task ID without waiting for any item.
func (m *Manager) Submit(items []core.BatchItem) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("empty batch")
	}
	for i, item := range items {
		if item.Source == "" {
			return "", fmt.Errorf("item %d: missing source URL", i)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		BatchTask: core.BatchTask{
			ID:        uuid.NewString(),
			Items:     items,
			Status:    core.TaskPending,
			Results:   make(map[int]core.BatchItemResult, len(items)),
			CreatedAt: time.Now(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.evictFinishedLocked()
	m.mu.Unlock()

	m.log.Info("batch submitted", "task_id", t.ID, "items", len(items))
	go m.run(ctx, t)
	return t.ID, nil
}

// Status returns a snapshot of the task. The snapshot is detached from the
// running task, so callers may inspect it while items are still completing.
func (m *Manager) Status(id string) (core.BatchTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return core.BatchTask{}, ErrTaskNotFound
	}
	return snapshot(t), nil
}

// Cancel stops dispatching a task's remaining items. Items already started
// finish naturally and keep their results; the task finishes as failed.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.cancel()
	return nil
}

func (m *Manager) run(ctx context.Context, t *task) {
	defer t.cancel()

	m.mu.Lock()
	t.Status = core.TaskRunning
	items := t.Items
	m.mu.Unlock()

	sem := make(chan struct{}, m.concurrency)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item core.BatchItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			m.recordResult(t, m.processItem(ctx, i, item))
		}(i, item)
	}
	wg.Wait()

	now := time.Now()
	m.mu.Lock()
	if ctx.Err() != nil {
		t.Status = core.TaskFailed
	} else {
		t.Status = core.TaskCompleted
	}
	t.CompletedAt = &now
	status := t.Status
	m.mu.Unlock()

	m.log.Info("batch finished", "task_id", t.ID, "status", status, "items", len(items))
}

// processItem runs one item and converts every kind of failure, panics
// included, into a per-item result.
func (m *Manager) processItem(ctx context.Context, index int, item core.BatchItem) (res core.BatchItemResult) {
	res = core.BatchItemResult{Index: index}
	defer func() {
		if r := recover(); r != nil {
			res.Article = nil
			res.Error = fmt.Sprintf("panic: %v", r)
			m.log.Error("batch item panicked", "index", index, "url", item.Source, "panic", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Error = "canceled before processing"
		return res
	}

	// Cancelation only stops dispatch; an item that already started is
	// allowed to finish and keep its result.
	article, err := m.proc.Process(context.WithoutCancel(ctx), item.Source, item.Timestamp)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Article = article
	return res
}

func (m *Manager) recordResult(t *task, res core.BatchItemResult) {
	m.mu.Lock()
	t.Results[res.Index] = res
	m.mu.Unlock()
}

// evictFinishedLocked drops the oldest finished tasks beyond the retention
// cap. Running tasks are never evicted.
func (m *Manager) evictFinishedLocked() {
	var finished []*task
	for _, t := range m.tasks {
		if t.Status == core.TaskCompleted || t.Status == core.TaskFailed {
			finished = append(finished, t)
		}
	}
	if len(finished) <= m.maxRetained {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})
	for _, t := range finished[:len(finished)-m.maxRetained] {
		delete(m.tasks, t.ID)
	}
}

func snapshot(t *task) core.BatchTask {
	out := t.BatchTask
	out.Items = append([]core.BatchItem(nil), t.Items...)
	out.Results = make(map[int]core.BatchItemResult, len(t.Results))
	for k, v := range t.Results {
		out.Results[k] = v
	}
	if t.CompletedAt != nil {
		done := *t.CompletedAt
		out.CompletedAt = &done
	}
	return out
}
