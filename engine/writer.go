package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/sessions"
)

// SSE event names used on the streamable HTTP transport. The stdio transport
// ignores event names and writes bare lines.
const (
	// EventMessage carries the terminal JSON-RPC response of a request stream.
	EventMessage = "message"
	// EventServerRequest carries a server-initiated JSON-RPC request.
	EventServerRequest = "server_request"
	// EventServerNotification carries a server-initiated notification.
	EventServerNotification = "server_notification"
)

// ErrStreamConflict indicates a second push stream was opened for a session.
var ErrStreamConflict = errors.New("session already has an active stream")

// MessageWriter delivers one framed message to the client. Implementations
// are transport-specific: SSE frames for HTTP, bare lines for stdio.
type MessageWriter interface {
	WriteEvent(ctx context.Context, eventID uint64, event string, payload []byte) error
}

// MessageWriterFunc adapts a function to the MessageWriter interface.
type MessageWriterFunc func(ctx context.Context, eventID uint64, event string, payload []byte) error

func (f MessageWriterFunc) WriteEvent(ctx context.Context, eventID uint64, event string, payload []byte) error {
	return f(ctx, eventID, event, payload)
}

// send frames a server->client message: the frame is buffered in the session
// replay ring, then written to the request-scoped stream when one is live,
// falling back to the session's push stream.
func (e *Engine) send(ctx context.Context, sess *sessions.Session, event string, payload []byte) error {
	id := sess.Events().Append(event, payload)

	var w MessageWriter
	if rs, ok := requestStateFrom(ctx); ok && rs.writer != nil && rs.sess == sess {
		w = rs.writer
	} else {
		w = e.sessionWriter(sess.ID())
	}
	if w == nil {
		return ErrNoActiveStream
	}
	return w.WriteEvent(ctx, id, event, payload)
}

// sessionTransport adapts the engine's send path to the outbound dispatcher.
type sessionTransport struct {
	eng  *Engine
	sess *sessions.Session
}

func (t sessionTransport) SendRequest(ctx context.Context, req *jsonrpc.Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return t.eng.send(ctx, t.sess, EventServerRequest, b)
}

func (t sessionTransport) SendCancelled(ctx context.Context, requestID string) error {
	note, err := jsonrpc.NewRequest(nil, string(mcp.CancelledNotificationMethod), mcp.CancelledNotification{RequestID: requestID})
	if err != nil {
		return err
	}
	b, err := json.Marshal(note)
	if err != nil {
		return err
	}
	return t.eng.send(ctx, t.sess, EventServerNotification, b)
}
