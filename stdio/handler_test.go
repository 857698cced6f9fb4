package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mcpframe/mcp-frame-go/engine"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/registry"
)

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

type harness struct {
	stdin  io.WriteCloser
	stdout *bufio.Reader
	eng    *engine.Engine
	done   chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	eng := engine.NewWithSessions(registry.New(), nil)

	add, err := registry.NewTool("add", func(ctx context.Context, args addArgs) (any, error) {
		return args.A + args.B, nil
	})
	if err != nil {
		t.Fatalf("NewTool failed: %v", err)
	}
	if err := eng.Registry().RegisterTool(add); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	sampler, err := registry.NewTool("ask_model", func(ctx context.Context, args struct{}) (any, error) {
		res, err := engine.CreateMessage(ctx, &mcp.CreateMessageRequest{
			Messages:  []mcp.SamplingMessage{{Role: mcp.RoleUser, Content: mcp.TextContent("hi")}},
			MaxTokens: 16,
		})
		if err != nil {
			return nil, err
		}
		return res.Content.Text, nil
	})
	if err != nil {
		t.Fatalf("NewTool failed: %v", err)
	}
	if err := eng.Registry().RegisterTool(sampler); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	h := New(eng, WithIO(inR, outW))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		inW.Close()
		outW.Close()
	})

	return &harness{stdin: inW, stdout: bufio.NewReader(outR), eng: eng, done: done}
}

func (h *harness) send(t *testing.T, line string) {
	t.Helper()
	if _, err := io.WriteString(h.stdin, line+"\n"); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
}

func (h *harness) readLine(t *testing.T) []byte {
	t.Helper()
	type read struct {
		line string
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		line, err := h.stdout.ReadString('\n')
		ch <- read{line, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("read stdout: %v", r.err)
		}
		return []byte(strings.TrimRight(r.line, "\n"))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stdout line")
		return nil
	}
}

func (h *harness) initialize(t *testing.T) string {
	t.Helper()
	h.send(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25","capabilities":{"sampling":{}},"clientInfo":{"name":"t","version":"1"}}}`)

	var rpc struct {
		Result mcp.InitializeResult `json:"result"`
	}
	if err := json.Unmarshal(h.readLine(t), &rpc); err != nil {
		t.Fatalf("decode initialize response: %v", err)
	}
	if rpc.Result.SessionID == "" {
		t.Fatal("missing sessionId in initialize result")
	}
	h.send(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	return rpc.Result.SessionID
}

func TestInitializeOverStdio(t *testing.T) {
	h := newHarness(t)
	sessID := h.initialize(t)

	if _, err := h.eng.LookupSession(sessID); err != nil {
		t.Fatalf("session not registered: %v", err)
	}
}

func TestToolCallOverStdio(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	h.send(t, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"add","arguments":{"a":2,"b":3}}}`)

	var rpc struct {
		ID     int                `json:"id"`
		Result mcp.CallToolResult `json:"result"`
	}
	if err := json.Unmarshal(h.readLine(t), &rpc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rpc.ID != 2 || rpc.Result.Content[0].Text != "5" {
		t.Fatalf("unexpected response: %+v", rpc)
	}
}

func TestRequestBeforeInitializeRejected(t *testing.T) {
	h := newHarness(t)

	h.send(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	var rpc struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(h.readLine(t), &rpc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rpc.Error == nil || rpc.Error.Code != -32600 {
		t.Fatalf("expected -32600 before initialize, got %+v", rpc)
	}
}

func TestParseErrorOverStdio(t *testing.T) {
	h := newHarness(t)

	h.send(t, `{not json`)

	var rpc struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(h.readLine(t), &rpc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rpc.Error == nil || rpc.Error.Code != -32700 {
		t.Fatalf("expected -32700, got %+v", rpc)
	}
}

func TestSamplingOverStdio(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	h.send(t, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"ask_model","arguments":{}}}`)

	// First line out is the server-initiated sampling request.
	var serverReq struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(h.readLine(t), &serverReq); err != nil {
		t.Fatalf("decode server request: %v", err)
	}
	if serverReq.Method != "sampling/createMessage" {
		t.Fatalf("expected sampling request, got %q", serverReq.Method)
	}

	// Answer it; the client's response is a bare line with the matching id.
	h.send(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":{"role":"assistant","content":{"type":"text","text":"ok"},"model":"m","stopReason":"end_turn"}}`, serverReq.ID))

	var rpc struct {
		ID     int                `json:"id"`
		Result mcp.CallToolResult `json:"result"`
	}
	if err := json.Unmarshal(h.readLine(t), &rpc); err != nil {
		t.Fatalf("decode final response: %v", err)
	}
	if rpc.ID != 3 || rpc.Result.Content[0].Text != "ok" {
		t.Fatalf("unexpected final response: %+v", rpc)
	}
}

func TestConcurrentToolCallsOverStdio(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	h.send(t, `{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{"name":"add","arguments":{"a":1,"b":1}}}`)
	h.send(t, `{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"add","arguments":{"a":2,"b":2}}}`)

	got := map[int]string{}
	for i := 0; i < 2; i++ {
		var rpc struct {
			ID     int                `json:"id"`
			Result mcp.CallToolResult `json:"result"`
		}
		if err := json.Unmarshal(h.readLine(t), &rpc); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		got[rpc.ID] = rpc.Result.Content[0].Text
	}
	if got[10] != "2" || got[11] != "4" {
		t.Fatalf("unexpected results: %v", got)
	}
}
