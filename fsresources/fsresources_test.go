package fsresources

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mcpframe/mcp-frame-go/engine"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/registry"
)

func TestRegisterAndRead(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.md"), []byte("# hello"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "data.txt"), []byte("content"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	eng := engine.NewWithSessions(registry.New(), nil)
	p, err := New(eng, dir, WithBaseURI("fs://test/"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, resources, _, _ := eng.Registry().Counts()
	if resources != 2 {
		t.Fatalf("expected 2 resources, got %d", resources)
	}

	res, err := eng.Registry().Resource("fs://test/sub/data.txt")
	if err != nil {
		t.Fatalf("resource lookup failed: %v", err)
	}
	contents, err := res.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if contents.Text != "content" {
		t.Fatalf("unexpected contents: %+v", contents)
	}

	// The descriptor wire bytes must be valid listing fragments.
	var desc mcp.Resource
	if err := json.Unmarshal(res.Wire(), &desc); err != nil {
		t.Fatalf("invalid wire fragment: %v", err)
	}
	if desc.Name != "sub/data.txt" && desc.Name != filepath.Join("sub", "data.txt") {
		t.Fatalf("unexpected resource name %q", desc.Name)
	}
}

func TestURIForUsesSlashes(t *testing.T) {
	eng := engine.NewWithSessions(registry.New(), nil)
	p, err := New(eng, t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	uri := p.uriFor(filepath.Join("a", "b.txt"))
	if uri != "fs://workspace/a/b.txt" {
		t.Fatalf("unexpected uri %q", uri)
	}
}
