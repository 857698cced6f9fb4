package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/registry"
)

// NotifyResourceUpdated fans notifications/resources/updated out to every
// session subscribed to the URI and invalidates any cached content for it.
// Sessions without a live stream receive the frame from their replay buffer
// on reconnect.
func (e *Engine) NotifyResourceUpdated(uri string) {
	if res, err := e.reg.Resource(uri); err == nil {
		res.InvalidateContent()
	}

	for _, sess := range e.sessions.Snapshot() {
		if !sess.Subscribed(uri) {
			continue
		}
		e.notifySession(context.Background(), sess, string(mcp.ResourcesUpdatedNotificationMethod), mcp.ResourceUpdatedNotification{URI: uri})
	}
}

// NotifyToolsListChanged broadcasts notifications/tools/list_changed.
func (e *Engine) NotifyToolsListChanged() {
	e.broadcast(string(mcp.ToolsListChangedNotificationMethod))
}

// NotifyResourcesListChanged broadcasts notifications/resources/list_changed.
func (e *Engine) NotifyResourcesListChanged() {
	e.broadcast(string(mcp.ResourcesListChangedNotificationMethod))
}

// NotifyPromptsListChanged broadcasts notifications/prompts/list_changed.
func (e *Engine) NotifyPromptsListChanged() {
	e.broadcast(string(mcp.PromptsListChangedNotificationMethod))
}

func (e *Engine) broadcast(method string) {
	for _, sess := range e.sessions.Snapshot() {
		e.notifySession(context.Background(), sess, method, struct{}{})
	}
}

// Invalidate recomputes a handler's cached schema and wire bytes.
func (e *Engine) Invalidate(kind registry.Kind, name string) error {
	return e.reg.Invalidate(kind, name)
}

// Shutdown drains the engine: new requests are refused immediately, in-flight
// request tasks get the drain window to finish, survivors are cancelled,
// pending server-request futures fail, and all per-session state is cleared.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.log.Info("engine.shutdown.start", slog.Duration("drain", e.shutdownDrain))

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	drain := time.NewTimer(e.shutdownDrain)
	defer drain.Stop()

	select {
	case <-done:
	case <-drain.C:
		// Best-effort cancellation of survivors.
		e.mu.Lock()
		cancels := make([]context.CancelCauseFunc, 0, len(e.inflight))
		for _, c := range e.inflight {
			cancels = append(cancels, c)
		}
		e.mu.Unlock()
		for _, c := range cancels {
			c(ErrShutdown)
		}

		select {
		case <-done:
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	case <-ctx.Done():
	}

	e.mu.Lock()
	entries := make([]*dispatcherEntry, 0, len(e.dispatchers))
	for id, entry := range e.dispatchers {
		entries = append(entries, entry)
		delete(e.dispatchers, id)
	}
	e.writers = make(map[string]MessageWriter)
	e.inflight = make(map[string]context.CancelCauseFunc)
	e.roots = make(map[string][]mcp.Root)
	e.toolBuckets = nil
	e.mu.Unlock()

	for _, entry := range entries {
		entry.d.Close(ErrShutdown)
	}

	if e.tasks != nil {
		e.tasks.Clear()
	}
	e.sessions.Clear()

	e.log.Info("engine.shutdown.ok")
	return nil
}
