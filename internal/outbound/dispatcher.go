package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
)

// Transport abstracts how server-initiated requests reach the client.
// Implementations route the message onto whatever stream is live for the
// session (POST SSE stream, GET push stream, or stdout line).
type Transport interface {
	// SendRequest emits the request with its pre-allocated id.
	SendRequest(ctx context.Context, req *jsonrpc.Request) error
	// SendCancelled emits notifications/cancelled for the given id string.
	SendCancelled(ctx context.Context, requestID string) error
}

var (
	// ErrDispatcherClosed indicates the dispatcher is closed.
	ErrDispatcherClosed = errors.New("dispatcher closed")
	// ErrTimeout indicates the client did not respond before the deadline.
	ErrTimeout = errors.New("server request timed out")
	// ErrBackpressure indicates too many server requests are already pending.
	ErrBackpressure = errors.New("too many pending server requests")
)

const (
	// DefaultTimeout bounds how long a server->client RPC may remain pending.
	DefaultTimeout = 120 * time.Second
	// MaxPending caps the pending future map; overflow fails fast.
	MaxPending = 100
)

// requestIDPrefix keeps server-initiated ids disjoint from client ids.
const requestIDPrefix = "s-"

type pendingCall struct {
	respCh chan *jsonrpc.Response
	errCh  chan error
}

// Dispatcher correlates server-initiated JSON-RPC requests with their
// eventual client responses. One dispatcher exists per session.
type Dispatcher struct {
	t Transport

	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCall // id string -> call

	nextID uint64

	closed   atomic.Bool
	closeErr error
}

// New constructs a Dispatcher using the provided transport.
func New(t Transport) *Dispatcher {
	return &Dispatcher{t: t, timeout: DefaultTimeout, pending: make(map[string]*pendingCall)}
}

// NewWithTimeout constructs a Dispatcher with a custom pending deadline.
func NewWithTimeout(t Transport, timeout time.Duration) *Dispatcher {
	d := New(t)
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

// PendingCount returns the number of unresolved server requests.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Call sends a server-initiated JSON-RPC request and waits for the client's
// response, the deadline, or context cancellation.
func (d *Dispatcher) Call(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	if d.closed.Load() {
		if d.closeErr != nil {
			return nil, d.closeErr
		}
		return nil, ErrDispatcherClosed
	}

	idNum := atomic.AddUint64(&d.nextID, 1)
	key := fmt.Sprintf("%s%d", requestIDPrefix, idNum)
	id := jsonrpc.NewRequestID(key)

	var paramsRaw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		paramsRaw = b
	}

	pc := &pendingCall{respCh: make(chan *jsonrpc.Response, 1), errCh: make(chan error, 1)}
	d.mu.Lock()
	if d.closed.Load() {
		d.mu.Unlock()
		if d.closeErr != nil {
			return nil, d.closeErr
		}
		return nil, ErrDispatcherClosed
	}
	if len(d.pending) >= MaxPending {
		d.mu.Unlock()
		return nil, ErrBackpressure
	}
	d.pending[key] = pc
	d.mu.Unlock()

	req := &jsonrpc.Request{JSONRPCVersion: jsonrpc.ProtocolVersion, Method: method, Params: paramsRaw, ID: id}
	if err := d.t.SendRequest(ctx, req); err != nil {
		d.drop(key)
		return nil, err
	}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case resp := <-pc.respCh:
		return resp, nil
	case err := <-pc.errCh:
		if err != nil {
			return nil, err
		}
		return nil, ErrDispatcherClosed
	case <-timer.C:
		d.drop(key)
		_ = d.t.SendCancelled(context.WithoutCancel(ctx), key)
		return nil, ErrTimeout
	case <-ctx.Done():
		d.drop(key)
		_ = d.t.SendCancelled(context.WithoutCancel(ctx), key)
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) drop(key string) {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
}

// OnResponse delivers an incoming client response to its waiting call.
// It reports whether a pending call matched the response id.
func (d *Dispatcher) OnResponse(resp *jsonrpc.Response) bool {
	if resp == nil || resp.ID.IsNil() {
		return false
	}
	key := resp.ID.String()
	d.mu.Lock()
	pc, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()
	if ok {
		pc.respCh <- resp
	}
	return ok
}

// Close fails all pending calls with the provided error and prevents new calls.
func (d *Dispatcher) Close(err error) {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	if err == nil {
		err = ErrDispatcherClosed
	}
	d.closeErr = err
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, pc := range d.pending {
		delete(d.pending, key)
		pc.errCh <- err
	}
}
