package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcpframe/mcp-frame-go/mcp"
)

var (
	// ErrTaskNotFound indicates the task id is unknown.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNotTerminal indicates a result was requested before completion.
	ErrNotTerminal = errors.New("task is not yet complete")
	// ErrTerminal indicates a transition was attempted on a finished task.
	ErrTerminal = errors.New("task is already in terminal state")
)

// retention keeps terminal tasks queryable for polling clients.
const retention = 30 * time.Minute

// Task is one durable long-running tool invocation. Status transitions are
// monotonic: working -> completed | failed | cancelled.
type Task struct {
	ID        string
	SessionID string
	ToolName  string
	RequestID string

	mu         sync.Mutex
	status     mcp.TaskStatus
	createdAt  time.Time
	updatedAt  time.Time
	message    string
	result     any
	errVal     any
	cancelFunc context.CancelCauseFunc
}

// Status returns the current task status.
func (t *Task) Status() mcp.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Wire returns the task's wire representation.
func (t *Task) Wire() mcp.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return mcp.Task{
		ID:        t.ID,
		Status:    t.status,
		ToolName:  t.ToolName,
		CreatedAt: float64(t.createdAt.UnixMilli()) / 1000,
		UpdatedAt: float64(t.updatedAt.UnixMilli()) / 1000,
		Message:   t.message,
		Result:    t.result,
		Error:     t.errVal,
	}
}

// Notifier delivers notifications/tasks/status for a session.
type Notifier func(sessionID string, task mcp.Task)

// Manager maintains the task store and lifecycle operations.
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string

	notify Notifier
}

// NewManager constructs a Manager. The notifier may be nil.
func NewManager(notify Notifier) *Manager {
	return &Manager{tasks: make(map[string]*Task), notify: notify}
}

// SetNotifier installs the status notification sink.
func (m *Manager) SetNotifier(notify Notifier) {
	m.mu.Lock()
	m.notify = notify
	m.mu.Unlock()
}

// Create registers a working task for a tool invocation. The cancel function,
// when non-nil, is invoked to signal the in-flight call on tasks/cancel.
func (m *Manager) Create(sessionID, toolName, requestID string, cancel context.CancelCauseFunc) *Task {
	now := time.Now()
	t := &Task{
		ID:         strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		SessionID:  sessionID,
		ToolName:   toolName,
		RequestID:  requestID,
		status:     mcp.TaskStatusWorking,
		createdAt:  now,
		updatedAt:  now,
		cancelFunc: cancel,
	}

	m.mu.Lock()
	m.sweepLocked(now)
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
	m.mu.Unlock()
	return t
}

// Get returns the task by id.
func (m *Manager) Get(id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	return t, nil
}

// Result returns the wire form of a terminal task.
func (m *Manager) Result(id string) (mcp.Task, error) {
	t, err := m.Get(id)
	if err != nil {
		return mcp.Task{}, err
	}
	w := t.Wire()
	if !w.Status.Terminal() {
		return mcp.Task{}, fmt.Errorf("%w: %q (status: %s)", ErrNotTerminal, id, w.Status)
	}
	return w, nil
}

// List returns the wire forms of all tasks belonging to the session, in
// creation order.
func (m *Manager) List(sessionID string) []mcp.Task {
	m.mu.Lock()
	ts := make([]*Task, 0, len(m.order))
	for _, id := range m.order {
		if t, ok := m.tasks[id]; ok && t.SessionID == sessionID {
			ts = append(ts, t)
		}
	}
	m.mu.Unlock()

	out := make([]mcp.Task, len(ts))
	for i, t := range ts {
		out[i] = t.Wire()
	}
	return out
}

// SetResult transitions a working task to completed and emits the status
// notification.
func (m *Manager) SetResult(id string, result any) error {
	return m.transition(id, mcp.TaskStatusCompleted, result, nil, "")
}

// SetError transitions a working task to failed and emits the status
// notification.
func (m *Manager) SetError(id string, errVal any) error {
	return m.transition(id, mcp.TaskStatusFailed, nil, errVal, "")
}

// Cancel signals the in-flight invocation and transitions the task to
// cancelled.
func (m *Manager) Cancel(id string) (mcp.Task, error) {
	t, err := m.Get(id)
	if err != nil {
		return mcp.Task{}, err
	}

	t.mu.Lock()
	if t.status.Terminal() {
		status := t.status
		t.mu.Unlock()
		return mcp.Task{}, fmt.Errorf("%w: %q (status: %s)", ErrTerminal, id, status)
	}
	cancel := t.cancelFunc
	t.mu.Unlock()

	if cancel != nil {
		cancel(context.Canceled)
	}
	if err := m.transition(id, mcp.TaskStatusCancelled, nil, nil, "cancelled by client"); err != nil {
		return mcp.Task{}, err
	}
	return t.Wire(), nil
}

func (m *Manager) transition(id string, status mcp.TaskStatus, result, errVal any, message string) error {
	t, err := m.Get(id)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.status.Terminal() {
		cur := t.status
		t.mu.Unlock()
		return fmt.Errorf("%w: %q (status: %s)", ErrTerminal, id, cur)
	}
	t.status = status
	t.updatedAt = time.Now()
	if result != nil {
		t.result = result
	}
	if errVal != nil {
		t.errVal = errVal
	}
	if message != "" {
		t.message = message
	}
	sessionID := t.SessionID
	t.mu.Unlock()

	m.mu.Lock()
	notify := m.notify
	m.mu.Unlock()
	if notify != nil {
		notify(sessionID, t.Wire())
	}
	return nil
}

// PurgeSession drops every task belonging to an evicted session.
func (m *Manager) PurgeSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		if t.SessionID == sessionID {
			delete(m.tasks, id)
		}
	}
	m.compactOrderLocked()
}

// Len returns the number of retained tasks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Clear drops every task; used during shutdown.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.tasks = make(map[string]*Task)
	m.order = nil
	m.mu.Unlock()
}

// sweepLocked removes terminal tasks past the retention window.
func (m *Manager) sweepLocked(now time.Time) {
	for id, t := range m.tasks {
		t.mu.Lock()
		stale := t.status.Terminal() && now.Sub(t.updatedAt) > retention
		t.mu.Unlock()
		if stale {
			delete(m.tasks, id)
		}
	}
	m.compactOrderLocked()
}

func (m *Manager) compactOrderLocked() {
	n := 0
	for _, id := range m.order {
		if _, ok := m.tasks[id]; ok {
			m.order[n] = id
			n++
		}
	}
	m.order = m.order[:n]
}
