package engine

import "context"

// Tracer is a minimal tracing seam. Each tool call is wrapped in a span named
// "mcp.tool.<name>". The default is a no-op so no tracing dependency is
// required; hosts with OpenTelemetry adapt their tracer to this interface.
type Tracer interface {
	// StartSpan begins a span and returns the derived context plus a finish
	// function receiving the call's terminal error (nil on success).
	StartSpan(ctx context.Context, name string) (context.Context, func(err error))
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
