package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mcpframe/mcp-frame-go/mcp"
)

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func newAddTool(t *testing.T, name string) *Tool {
	t.Helper()
	tool, err := NewTool(name, func(ctx context.Context, args addArgs) (any, error) {
		return args.A + args.B, nil
	}, WithDescription("adds two integers"))
	if err != nil {
		t.Fatalf("NewTool failed: %v", err)
	}
	return tool
}

func TestRegisterToolAndLookup(t *testing.T) {
	r := New()
	if err := r.RegisterTool(newAddTool(t, "add")); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	tool, err := r.Tool("add")
	if err != nil {
		t.Fatalf("Tool lookup failed: %v", err)
	}
	if tool.Name != "add" {
		t.Fatalf("expected tool name add, got %q", tool.Name)
	}

	if _, err := r.Tool("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterToolDuplicateName(t *testing.T) {
	r := New()
	if err := r.RegisterTool(newAddTool(t, "add")); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}
	if err := r.RegisterTool(newAddTool(t, "add")); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestRegisterToolInvalidName(t *testing.T) {
	r := New()
	for _, name := range []string{"", "has space", "bad/slash", string(make([]byte, 129))} {
		tool := newAddTool(t, "placeholder")
		tool.Name = name
		if err := r.RegisterTool(tool); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestToolSchemaReflection(t *testing.T) {
	tool := newAddTool(t, "add")

	if tool.InputSchema.Type != "object" {
		t.Fatalf("expected object schema, got %q", tool.InputSchema.Type)
	}
	for _, param := range []string{"a", "b"} {
		prop, ok := tool.InputSchema.Properties[param]
		if !ok {
			t.Fatalf("schema missing property %q", param)
		}
		if prop.Type != "integer" {
			t.Fatalf("property %q: expected integer, got %q", param, prop.Type)
		}
	}
	if len(tool.InputSchema.Required) != 2 {
		t.Fatalf("expected both parameters required, got %v", tool.InputSchema.Required)
	}
}

func TestWireBytesStableUntilInvalidate(t *testing.T) {
	r := New()
	tool := newAddTool(t, "add")
	if err := r.RegisterTool(tool); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	first := tool.Wire()
	second := tool.Wire()
	if !bytes.Equal(first, second) {
		t.Fatal("expected byte-equal wire output across reads")
	}

	tool.Description = "changed"
	// Cached bytes must not change until explicit invalidation.
	if !bytes.Equal(first, tool.Wire()) {
		t.Fatal("wire bytes changed without invalidation")
	}

	if err := r.Invalidate(KindTool, "add"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	after := tool.Wire()
	if bytes.Equal(first, after) {
		t.Fatal("expected recomputed wire bytes after invalidation")
	}
	if !bytes.Contains(after, []byte("changed")) {
		t.Fatalf("expected new description in wire bytes, got %s", after)
	}
}

func TestToWireDictDeepCopy(t *testing.T) {
	tool := newAddTool(t, "add")

	d1 := tool.ToWireDict()
	d1["name"] = "mutated"
	if schema, ok := d1["inputSchema"].(map[string]any); ok {
		schema["type"] = "mutated"
	}

	d2 := tool.ToWireDict()
	if d2["name"] != "add" {
		t.Fatalf("mutation leaked into cached dict: %v", d2["name"])
	}
	if schema, ok := d2["inputSchema"].(map[string]any); !ok || schema["type"] != "object" {
		t.Fatal("nested mutation leaked into cached dict")
	}
}

func TestListWirePagination(t *testing.T) {
	r := New()
	names := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for _, name := range names {
		if err := r.RegisterTool(newAddTool(t, name)); err != nil {
			t.Fatalf("RegisterTool %q failed: %v", name, err)
		}
	}

	frags, next, err := r.ListWire(KindTool, "", 2)
	if err != nil {
		t.Fatalf("ListWire failed: %v", err)
	}
	if len(frags) != 2 || next == "" {
		t.Fatalf("expected 2 fragments and a cursor, got %d, %q", len(frags), next)
	}

	var got []string
	collect := func(frags []json.RawMessage) {
		for _, f := range frags {
			var tool mcp.Tool
			if err := json.Unmarshal(f, &tool); err != nil {
				t.Fatalf("invalid fragment: %v", err)
			}
			got = append(got, tool.Name)
		}
	}
	collect(frags)

	for next != "" {
		frags, next, err = r.ListWire(KindTool, next, 2)
		if err != nil {
			t.Fatalf("ListWire failed: %v", err)
		}
		collect(frags)
	}

	if len(got) != len(names) {
		t.Fatalf("expected %d tools, got %d", len(names), len(got))
	}
	for i, name := range names {
		if got[i] != name {
			t.Fatalf("ordering not insertion-stable: got %v", got)
		}
	}
}

func TestListWireInvalidCursor(t *testing.T) {
	r := New()
	if _, _, err := r.ListWire(KindTool, "not-base64!!", 10); err == nil {
		t.Fatal("expected error for invalid cursor")
	}
}

func TestConcatWire(t *testing.T) {
	frags := []json.RawMessage{
		json.RawMessage(`{"name":"a"}`),
		json.RawMessage(`{"name":"b"}`),
	}
	out := ConcatWire(frags)
	var decoded []map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("concatenated output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0]["name"] != "a" || decoded[1]["name"] != "b" {
		t.Fatalf("unexpected concat result: %s", out)
	}

	if string(ConcatWire(nil)) != "[]" {
		t.Fatalf("empty concat should be [], got %s", ConcatWire(nil))
	}
}

func TestSuggest(t *testing.T) {
	r := New()
	if err := r.RegisterTool(newAddTool(t, "add_numbers")); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}
	if err := r.RegisterTool(newAddTool(t, "list_files")); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	got, ok := r.Suggest(KindTool, "add_numers")
	if !ok || got != "add_numbers" {
		t.Fatalf("expected suggestion add_numbers, got %q (ok=%v)", got, ok)
	}

	if _, ok := r.Suggest(KindTool, "zzzzzz"); ok {
		t.Fatal("expected no suggestion for dissimilar name")
	}
}

func TestResourceTemplateMatch(t *testing.T) {
	tmpl, err := NewResourceTemplate("config://{section}", func(ctx context.Context, uri string, vars map[string]string) (*mcp.ResourceContents, error) {
		return &mcp.ResourceContents{URI: uri, Text: vars["section"]}, nil
	})
	if err != nil {
		t.Fatalf("NewResourceTemplate failed: %v", err)
	}

	vars, ok := tmpl.Match("config://database")
	if !ok {
		t.Fatal("expected template to match")
	}
	if vars["section"] != "database" {
		t.Fatalf("expected section=database, got %v", vars)
	}

	if _, ok := tmpl.Match("other://database"); ok {
		t.Fatal("expected no match for different scheme")
	}
}

func TestResourceContentCache(t *testing.T) {
	reads := 0
	res, err := NewResource("config://x", func(ctx context.Context) (*mcp.ResourceContents, error) {
		reads++
		return &mcp.ResourceContents{URI: "config://x", Text: "v"}, nil
	}, WithCacheTTL(time.Minute))
	if err != nil {
		t.Fatalf("NewResource failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := res.Read(context.Background()); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}
	if reads != 1 {
		t.Fatalf("expected 1 backing read, got %d", reads)
	}

	res.InvalidateContent()
	if _, err := res.Read(context.Background()); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if reads != 2 {
		t.Fatalf("expected re-read after invalidation, got %d reads", reads)
	}
}
