package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mcpframe/mcp-frame-go/mcp"
)

func TestTaskLifecycleCompleted(t *testing.T) {
	var mu sync.Mutex
	var notified []mcp.Task

	m := NewManager(func(sessionID string, task mcp.Task) {
		mu.Lock()
		notified = append(notified, task)
		mu.Unlock()
	})

	task := m.Create("sess-1", "slow_tool", "42", nil)
	if task.Status() != mcp.TaskStatusWorking {
		t.Fatalf("expected working, got %s", task.Status())
	}

	if _, err := m.Result(task.ID); !errors.Is(err, ErrNotTerminal) {
		t.Fatalf("expected ErrNotTerminal before completion, got %v", err)
	}

	if err := m.SetResult(task.ID, map[string]any{"ok": true}); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}
	if task.Status() != mcp.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", task.Status())
	}

	w, err := m.Result(task.ID)
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if w.Status != mcp.TaskStatusCompleted {
		t.Fatalf("unexpected wire status: %s", w.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 1 || notified[0].Status != mcp.TaskStatusCompleted {
		t.Fatalf("expected one completion notification, got %v", notified)
	}
}

func TestTaskTerminalityIsFinal(t *testing.T) {
	m := NewManager(nil)
	task := m.Create("sess-1", "tool", "1", nil)

	if err := m.SetResult(task.ID, "done"); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}

	if err := m.SetError(task.ID, "boom"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal on completed->failed transition, got %v", err)
	}
	if _, err := m.Cancel(task.ID); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal on cancel of completed task, got %v", err)
	}
	if task.Status() != mcp.TaskStatusCompleted {
		t.Fatalf("status regressed to %s", task.Status())
	}
}

func TestTaskCancelSignalsInFlight(t *testing.T) {
	m := NewManager(nil)

	ctx, cancel := context.WithCancelCause(context.Background())
	task := m.Create("sess-1", "tool", "1", cancel)

	w, err := m.Cancel(task.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if w.Status != mcp.TaskStatusCancelled {
		t.Fatalf("expected cancelled, got %s", w.Status)
	}

	select {
	case <-ctx.Done():
	default:
		t.Fatal("cancel did not signal the in-flight context")
	}
}

func TestTaskGetUnknown(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Get("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskListPerSession(t *testing.T) {
	m := NewManager(nil)
	a1 := m.Create("sess-a", "t1", "1", nil)
	m.Create("sess-b", "t2", "2", nil)
	a2 := m.Create("sess-a", "t3", "3", nil)

	list := m.List("sess-a")
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks for sess-a, got %d", len(list))
	}
	if list[0].ID != a1.ID || list[1].ID != a2.ID {
		t.Fatalf("list not in creation order: %v", list)
	}
}

func TestPurgeSession(t *testing.T) {
	m := NewManager(nil)
	task := m.Create("sess-a", "t", "1", nil)
	m.Create("sess-b", "t", "2", nil)

	m.PurgeSession("sess-a")

	if _, err := m.Get(task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatal("expected task purged with its session")
	}
	if len(m.List("sess-b")) != 1 {
		t.Fatal("unrelated session lost its task")
	}
}
