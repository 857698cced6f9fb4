package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mcpframe/mcp-frame-go/engine"
	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
	"github.com/mcpframe/mcp-frame-go/internal/logctx"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/sessions"
)

// maxLineBytes bounds one line-delimited JSON-RPC message.
const maxLineBytes = 10 << 20

// Handler is the line-delimited stdio transport. Each line on stdin is one
// complete JSON-RPC message; responses and server-initiated messages are
// written as single lines on stdout. Logging goes to stderr.
type Handler struct {
	eng *engine.Engine
	log *slog.Logger

	in  io.Reader
	out io.Writer

	writeMu sync.Mutex

	sessMu sync.Mutex
	sess   *sessions.Session

	wg sync.WaitGroup
}

// Option configures the Handler.
type Option func(*Handler)

// WithIO overrides stdin/stdout; used by tests driving the transport over
// pipes.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(h *Handler) {
		h.in = in
		h.out = out
	}
}

// WithLogger sets the logger. The default logs to stderr so stdout stays a
// clean protocol channel.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = slog.New(logctx.Handler{Handler: l.Handler()})
		}
	}
}

// New constructs the stdio transport over a protocol engine.
func New(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{
		eng: eng,
		log: slog.New(logctx.Handler{Handler: slog.NewTextHandler(os.Stderr, nil)}),
		in:  os.Stdin,
		out: os.Stdout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve reads stdin until EOF or context cancellation, dispatching each line.
// Requests are serviced concurrently; output lines are serialized by a write
// mutex.
func (h *Handler) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(h.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg jsonrpc.AnyMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			h.log.WarnContext(ctx, "stdio.message.invalid", slog.String("err", err.Error()))
			h.writeLine(jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "parse error", nil))
			continue
		}

		h.dispatch(ctx, &msg)
	}

	h.wg.Wait()

	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("stdin read: %w", err)
	}
	return ctx.Err()
}

func (h *Handler) dispatch(ctx context.Context, msg *jsonrpc.AnyMessage) {
	// Client responses to server-initiated requests have an id but no method.
	if resp := msg.AsResponse(); resp != nil {
		sess := h.session()
		if sess == nil {
			h.log.WarnContext(ctx, "stdio.response.no_session")
			return
		}
		if err := h.eng.HandleClientResponse(sess, resp); err != nil {
			h.log.DebugContext(ctx, "stdio.response.miss", slog.String("id", resp.ID.String()))
		}
		return
	}

	req := msg.AsRequest()
	if req == nil {
		return
	}

	if req.Method == string(mcp.InitializeMethod) {
		h.handleInitialize(ctx, req)
		return
	}

	sess := h.session()
	if sess == nil {
		if !req.IsNotification() {
			h.writeLine(jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "initialize required", nil))
		}
		return
	}

	// Service requests concurrently; ordering across concurrent calls is not
	// preserved and clients correlate by id.
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		reqCtx := h.eng.WithRequestStream(ctx, sess, h.writer(), "")
		resp, err := h.eng.HandleRequest(reqCtx, sess, req)
		if err != nil {
			resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal server error", nil)
		}
		if resp != nil {
			h.writeLine(resp)
		}
	}()
}

func (h *Handler) handleInitialize(ctx context.Context, req *jsonrpc.Request) {
	var initReq mcp.InitializeRequest
	if err := json.Unmarshal(req.Params, &initReq); err != nil {
		h.writeLine(jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid initialize params", nil))
		return
	}

	sess, initRes, err := h.eng.InitializeSession(ctx, &initReq)
	if err != nil {
		h.writeLine(jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "failed to initialize session", nil))
		return
	}

	h.sessMu.Lock()
	h.sess = sess
	h.sessMu.Unlock()

	// The stdout line stream doubles as the session's push stream.
	if err := h.eng.SetSessionWriter(sess, h.writer()); err != nil {
		h.log.WarnContext(ctx, "stdio.writer.conflict", slog.String("err", err.Error()))
	}

	resp, err := jsonrpc.NewResultResponse(req.ID, initRes)
	if err != nil {
		h.writeLine(jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "failed to encode initialize response", nil))
		return
	}
	h.writeLine(resp)
}

func (h *Handler) session() *sessions.Session {
	h.sessMu.Lock()
	defer h.sessMu.Unlock()
	return h.sess
}

// writer adapts the stdout line stream to the engine's MessageWriter. Event
// names and ids are SSE concepts; stdio writes bare message lines.
func (h *Handler) writer() engine.MessageWriter {
	return engine.MessageWriterFunc(func(_ context.Context, _ uint64, _ string, payload []byte) error {
		return h.writeRaw(payload)
	})
}

func (h *Handler) writeLine(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Error("stdio.encode.fail", slog.String("err", err.Error()))
		return
	}
	_ = h.writeRaw(b)
}

func (h *Handler) writeRaw(payload []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if _, err := h.out.Write(payload); err != nil {
		return err
	}
	_, err := h.out.Write([]byte("\n"))
	return err
}
