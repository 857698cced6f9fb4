package engine

import (
	"errors"
	"testing"

	"github.com/mcpframe/mcp-frame-go/mcp"
)

func TestCoerceArrayItems(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]mcp.SchemaProperty{
			"nums": {Type: "array", Items: &mcp.SchemaProperty{Type: "integer"}},
		},
	}

	out, err := coerceArguments(schema, map[string]any{"nums": []any{float64(1), "2", float64(3)}})
	if err != nil {
		t.Fatalf("coerce failed: %v", err)
	}
	nums := out["nums"].([]any)
	if nums[0] != int64(1) || nums[1] != int64(2) || nums[2] != int64(3) {
		t.Fatalf("unexpected coerced array: %v", nums)
	}

	if _, err := coerceArguments(schema, map[string]any{"nums": []any{"x"}}); err == nil {
		t.Fatal("expected item type mismatch to fail")
	}
}

func TestCoerceBooleanAndNumber(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]mcp.SchemaProperty{
			"flag":  {Type: "boolean"},
			"ratio": {Type: "number"},
		},
	}

	out, err := coerceArguments(schema, map[string]any{"flag": "true", "ratio": "0.5"})
	if err != nil {
		t.Fatalf("coerce failed: %v", err)
	}
	if out["flag"] != true || out["ratio"] != 0.5 {
		t.Fatalf("unexpected coercion: %v", out)
	}
}

func TestCoerceEnum(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]mcp.SchemaProperty{
			"mode": {Type: "string", Enum: []any{"fast", "slow"}},
		},
	}

	if _, err := coerceArguments(schema, map[string]any{"mode": "fast"}); err != nil {
		t.Fatalf("valid enum member rejected: %v", err)
	}
	if _, err := coerceArguments(schema, map[string]any{"mode": "warp"}); err == nil {
		t.Fatal("expected enum violation to fail")
	}
}

func TestCoerceNestedObject(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]mcp.SchemaProperty{
			"opts": {
				Type: "object",
				Properties: map[string]mcp.SchemaProperty{
					"depth": {Type: "integer"},
				},
				Required: []string{"depth"},
			},
		},
	}

	if _, err := coerceArguments(schema, map[string]any{"opts": map[string]any{"depth": float64(2)}}); err != nil {
		t.Fatalf("nested coerce failed: %v", err)
	}

	_, err := coerceArguments(schema, map[string]any{"opts": map[string]any{}})
	var re *RPCError
	if !errors.As(err, &re) {
		t.Fatalf("expected RPCError for missing nested required, got %v", err)
	}
}

func TestSerializeResult(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{5, "5"},
		{"plain", "plain"},
		{nil, "null"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
		{[]int{1, 2}, "[1,2]"},
	}
	for _, c := range cases {
		if got := serializeResult(c.in); got != c.want {
			t.Fatalf("serializeResult(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
