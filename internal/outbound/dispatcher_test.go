package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
)

// chanTransport records sent requests for the test to answer.
type chanTransport struct {
	mu        sync.Mutex
	sent      []*jsonrpc.Request
	cancelled []string
	sendErr   error
}

func (t *chanTransport) SendRequest(ctx context.Context, req *jsonrpc.Request) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.mu.Lock()
	t.sent = append(t.sent, req)
	t.mu.Unlock()
	return nil
}

func (t *chanTransport) SendCancelled(ctx context.Context, requestID string) error {
	t.mu.Lock()
	t.cancelled = append(t.cancelled, requestID)
	t.mu.Unlock()
	return nil
}

func (t *chanTransport) lastSent() *jsonrpc.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return nil
	}
	return t.sent[len(t.sent)-1]
}

func TestCallResolvesOnResponse(t *testing.T) {
	tr := &chanTransport{}
	d := New(tr)

	type result struct {
		resp *jsonrpc.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := d.Call(context.Background(), "sampling/createMessage", map[string]any{"maxTokens": 10})
		done <- result{resp, err}
	}()

	// Wait for the request to be emitted, then answer it.
	var req *jsonrpc.Request
	deadline := time.Now().Add(time.Second)
	for req == nil {
		if time.Now().After(deadline) {
			t.Fatal("request never sent")
		}
		req = tr.lastSent()
		time.Sleep(time.Millisecond)
	}

	if !strings.HasPrefix(req.ID.String(), "s-") {
		t.Fatalf("server request id not in the server namespace: %q", req.ID.String())
	}

	resp, err := jsonrpc.NewResultResponse(req.ID, map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("NewResultResponse failed: %v", err)
	}
	if !d.OnResponse(resp) {
		t.Fatal("OnResponse did not match the pending call")
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Call failed: %v", r.err)
		}
		var body map[string]any
		if err := json.Unmarshal(r.resp.Result, &body); err != nil || body["ok"] != true {
			t.Fatalf("unexpected result: %s", r.resp.Result)
		}
	case <-time.After(time.Second):
		t.Fatal("Call did not resolve")
	}

	if d.PendingCount() != 0 {
		t.Fatalf("pending map leaked: %d", d.PendingCount())
	}
}

func TestCallTimeout(t *testing.T) {
	tr := &chanTransport{}
	d := NewWithTimeout(tr, 20*time.Millisecond)

	_, err := d.Call(context.Background(), "roots/list", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.cancelled) != 1 {
		t.Fatalf("expected a cancellation notice, got %d", len(tr.cancelled))
	}
	if d.PendingCount() != 0 {
		t.Fatal("pending map leaked after timeout")
	}
}

func TestCallContextCancel(t *testing.T) {
	tr := &chanTransport{}
	d := New(tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.Call(ctx, "roots/list", nil)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Call did not observe cancellation")
	}
}

func TestBackpressureCap(t *testing.T) {
	tr := &chanTransport{}
	d := New(tr)

	var wg sync.WaitGroup
	errs := make(chan error, MaxPending+1)
	for i := 0; i < MaxPending+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Call(context.Background(), "elicitation/create", nil)
			errs <- err
		}()
	}

	// One of the calls must fail fast with backpressure.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-errs:
			if errors.Is(err, ErrBackpressure) {
				d.Close(nil)
				wg.Wait()
				return
			}
		case <-deadline:
			t.Fatal("no backpressure failure observed")
		}
	}
}

func TestCloseFailsPending(t *testing.T) {
	tr := &chanTransport{}
	d := New(tr)

	done := make(chan error, 1)
	go func() {
		_, err := d.Call(context.Background(), "sampling/createMessage", nil)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	shutdownErr := errors.New("shutdown")
	d.Close(shutdownErr)

	select {
	case err := <-done:
		if !errors.Is(err, shutdownErr) {
			t.Fatalf("expected shutdown error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending call not failed by Close")
	}

	if _, err := d.Call(context.Background(), "roots/list", nil); !errors.Is(err, shutdownErr) {
		t.Fatalf("expected closed dispatcher to fail new calls, got %v", err)
	}
}

func TestSendFailureDropsPending(t *testing.T) {
	tr := &chanTransport{sendErr: errors.New("no stream")}
	d := New(tr)

	if _, err := d.Call(context.Background(), "roots/list", nil); err == nil {
		t.Fatal("expected send failure to surface")
	}
	if d.PendingCount() != 0 {
		t.Fatal("pending map leaked after send failure")
	}
}
