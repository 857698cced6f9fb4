package mcpframe

import (
	"context"
	"testing"

	"github.com/mcpframe/mcp-frame-go/config"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/registry"
)

func TestServerAssemblyAndRegistration(t *testing.T) {
	srv, err := New(WithConfig(&config.Config{Transport: "http", ServerName: "test", ServerVersion: "1.0.0", Port: 0}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	type echoArgs struct {
		Text string `json:"text"`
	}
	if err := AddTool(srv, "echo", func(ctx context.Context, args echoArgs) (any, error) {
		return args.Text, nil
	}, registry.WithDescription("echoes text back")); err != nil {
		t.Fatalf("AddTool failed: %v", err)
	}

	if err := srv.RegisterResource("config://version", func(ctx context.Context) (*mcp.ResourceContents, error) {
		return &mcp.ResourceContents{URI: "config://version", Text: "1.0.0"}, nil
	}); err != nil {
		t.Fatalf("RegisterResource failed: %v", err)
	}

	if err := srv.RegisterResourceTemplate("user://{id}", func(ctx context.Context, uri string, vars map[string]string) (*mcp.ResourceContents, error) {
		return &mcp.ResourceContents{URI: uri, Text: vars["id"]}, nil
	}); err != nil {
		t.Fatalf("RegisterResourceTemplate failed: %v", err)
	}

	if err := srv.RegisterPrompt("greet", func(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{Messages: []mcp.PromptMessage{{Role: mcp.RoleUser, Content: mcp.TextContent("hello " + args["name"])}}}, nil
	}); err != nil {
		t.Fatalf("RegisterPrompt failed: %v", err)
	}

	tools, resources, templates, prompts := srv.Registry().Counts()
	if tools != 1 || resources != 1 || templates != 1 || prompts != 1 {
		t.Fatalf("unexpected registry counts: %d %d %d %d", tools, resources, templates, prompts)
	}

	// Duplicate registration is rejected at call time.
	if err := AddTool(srv, "echo", func(ctx context.Context, args echoArgs) (any, error) {
		return nil, nil
	}); err == nil {
		t.Fatal("expected duplicate tool registration to fail")
	}
}

func TestServerInfoFromConfig(t *testing.T) {
	srv, err := New(WithConfig(&config.Config{Transport: "http", ServerName: "named", ServerVersion: "2.0.0", Port: 0}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	sess, res, err := srv.Engine().InitializeSession(context.Background(), &mcp.InitializeRequest{
		ProtocolVersion: mcp.LatestProtocolVersion,
		ClientInfo:      mcp.ImplementationInfo{Name: "t", Version: "1"},
	})
	if err != nil {
		t.Fatalf("InitializeSession failed: %v", err)
	}
	if res.ServerInfo.Name != "named" || res.ServerInfo.Version != "2.0.0" {
		t.Fatalf("unexpected server info: %+v", res.ServerInfo)
	}
	if sess.ID() == "" {
		t.Fatal("missing session id")
	}
}
