package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpframe/mcp-frame-go/mcp"
)

// ToolFunc is the runtime shape of a tool handler after argument decoding has
// been folded in by the constructor.
type ToolFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is a registered tool handler with its pre-computed descriptor.
type Tool struct {
	Name        string
	Description string

	InputSchema  mcp.ToolInputSchema
	OutputSchema *mcp.ToolOutputSchema
	Annotations  *mcp.ToolAnnotations
	Icons        []mcp.Icon
	Meta         map[string]any

	RequiresAuth bool
	AuthScopes   []string
	LongRunning  bool
	RateLimitRPS float64

	fn ToolFunc

	wire wireCache
}

// ToolOption configures tool construction.
type ToolOption func(*Tool)

// WithDescription sets the tool description used in listings.
func WithDescription(desc string) ToolOption {
	return func(t *Tool) { t.Description = desc }
}

// WithAnnotations attaches behavioral hints to the descriptor.
func WithAnnotations(a mcp.ToolAnnotations) ToolOption {
	return func(t *Tool) { cp := a; t.Annotations = &cp }
}

// WithIcons attaches icon references to the descriptor.
func WithIcons(icons ...mcp.Icon) ToolOption {
	return func(t *Tool) { t.Icons = icons }
}

// WithMeta attaches free-form _meta passthrough (e.g. ui.resourceUri).
func WithMeta(meta map[string]any) ToolOption {
	return func(t *Tool) { t.Meta = meta }
}

// WithAuth marks the tool as requiring a validated access token carrying the
// given scopes.
func WithAuth(scopes ...string) ToolOption {
	return func(t *Tool) {
		t.RequiresAuth = true
		t.AuthScopes = scopes
	}
}

// WithLongRunning marks calls to this tool as durable tasks.
func WithLongRunning() ToolOption {
	return func(t *Tool) { t.LongRunning = true }
}

// WithRateLimit enables per-session token-bucket limiting for this tool.
func WithRateLimit(rps float64) ToolOption {
	return func(t *Tool) { t.RateLimitRPS = rps }
}

// WithOutputSchema declares the structuredContent shape explicitly.
func WithOutputSchema(s mcp.ToolOutputSchema) ToolOption {
	return func(t *Tool) { cp := s; t.OutputSchema = &cp }
}

// NewTool constructs a tool whose input schema is derived once from the typed
// argument struct A. The handler receives decoded arguments; unknown fields
// are rejected at decode time.
func NewTool[A any](name string, fn func(ctx context.Context, args A) (any, error), opts ...ToolOption) (*Tool, error) {
	schema, err := reflectInputSchema[A]()
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}

	t := &Tool{
		Name:        name,
		InputSchema: schema,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a A
			if len(raw) > 0 {
				dec := json.NewDecoder(bytes.NewReader(raw))
				dec.DisallowUnknownFields()
				if err := dec.Decode(&a); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
			}
			return fn(ctx, a)
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.recomputeWire(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewToolWithOutput constructs a typed-input, typed-output tool. The output
// schema is derived from O and the result surfaces as structuredContent.
func NewToolWithOutput[A, O any](name string, fn func(ctx context.Context, args A) (O, error), opts ...ToolOption) (*Tool, error) {
	outSchema, err := reflectOutputSchema[O]()
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	wrapped := func(ctx context.Context, args A) (any, error) {
		return fn(ctx, args)
	}
	opts = append([]ToolOption{WithOutputSchema(outSchema)}, opts...)
	return NewTool(name, wrapped, opts...)
}

// NewRawTool constructs a tool from an explicit schema and a raw-arguments
// handler. Used by hosts that synthesize tools dynamically (e.g. proxies).
func NewRawTool(name string, schema mcp.ToolInputSchema, fn ToolFunc, opts ...ToolOption) (*Tool, error) {
	if fn == nil {
		return nil, fmt.Errorf("tool %q: nil handler", name)
	}
	t := &Tool{Name: name, InputSchema: schema, fn: fn}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.recomputeWire(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustTool is NewTool that panics on error; intended for startup registration.
func MustTool[A any](name string, fn func(ctx context.Context, args A) (any, error), opts ...ToolOption) *Tool {
	t, err := NewTool(name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Invoke runs the tool handler against raw JSON arguments.
func (t *Tool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	return t.fn(ctx, args)
}

// Wire returns the cached serialized descriptor bytes.
func (t *Tool) Wire() json.RawMessage { return t.wire.bytes() }

// ToWireDict returns a deep copy of the descriptor dict; callers may mutate it
// freely without affecting future reads.
func (t *Tool) ToWireDict() map[string]any { return t.wire.dict() }

func (t *Tool) recomputeWire() error {
	desc := mcp.Tool{
		Name:         t.Name,
		Description:  t.Description,
		InputSchema:  t.InputSchema,
		OutputSchema: t.OutputSchema,
		Annotations:  t.Annotations,
		Icons:        t.Icons,
		Meta:         t.Meta,
	}
	return t.wire.compute(desc)
}
