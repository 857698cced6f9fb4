package streaminghttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
	"github.com/mcpframe/mcp-frame-go/engine"
	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
	"github.com/mcpframe/mcp-frame-go/internal/logctx"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/sessions"
)

var _ http.Handler = (*Handler)(nil)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

const (
	lastEventIDHeader        = "Last-Event-ID"
	mcpSessionIDHeader       = "Mcp-Session-Id"
	mcpProtocolVersionHeader = "MCP-Protocol-Version"
	authorizationHeader      = "Authorization"

	// maxBodyBytes bounds inbound request bodies.
	maxBodyBytes = 10 << 20
)

// Handler implements the streamable HTTP transport: a single MCP endpoint
// (POST + GET + DELETE) with SSE streaming, a /mcp/respond endpoint for
// client responses to server-initiated requests, and health/openapi surfaces.
type Handler struct {
	mux      *http.ServeMux
	log      *slog.Logger
	eng      *engine.Engine
	endpoint string
	started  time.Time
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the slog logger used by the transport.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = slog.New(logctx.Handler{Handler: l.Handler()})
		}
	}
}

// WithEndpoint overrides the MCP endpoint path (default "/mcp").
func WithEndpoint(path string) Option {
	return func(h *Handler) {
		if path != "" {
			h.endpoint = path
		}
	}
}

// New constructs the transport over a protocol engine.
func New(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{
		log:      slog.New(logctx.Handler{Handler: slog.Default().Handler()}),
		eng:      eng,
		endpoint: "/mcp",
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("POST %s", h.endpoint), h.handlePostMCP)
	mux.HandleFunc(fmt.Sprintf("GET %s", h.endpoint), h.handleGetMCP)
	mux.HandleFunc(fmt.Sprintf("DELETE %s", h.endpoint), h.handleDeleteMCP)
	mux.HandleFunc(fmt.Sprintf("OPTIONS %s", h.endpoint), h.handlePreflight)
	mux.HandleFunc(fmt.Sprintf("POST %s/respond", h.endpoint), h.handlePostRespond)
	mux.HandleFunc(fmt.Sprintf("OPTIONS %s/respond", h.endpoint), h.handlePreflight)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /health/ready", h.handleHealthReady)
	mux.HandleFunc("GET /health/detailed", h.handleHealthDetailed)
	mux.HandleFunc("GET /openapi.json", h.handleOpenAPI)
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	applyCORS(w)
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

func applyCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Expose-Headers", mcpSessionIDHeader)
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, Mcp-Session-Id, MCP-Protocol-Version, Last-Event-ID")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// writeRPCError writes a JSON-RPC error body for transport-level rejections.
func writeRPCError(w http.ResponseWriter, status int, id *jsonrpc.RequestID, code jsonrpc.ErrorCode, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonrpc.NewErrorResponse(id, code, msg, nil))
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get(authorizationHeader)
	if strings.HasPrefix(v, prefix) {
		return strings.TrimSpace(v[len(prefix):])
	}
	return ""
}

// lockedWriteFlusher serializes concurrent writes/flushes and refuses writes
// after the request context is canceled.
type lockedWriteFlusher struct {
	io.Writer
	http.Flusher
	mu  sync.Mutex
	ctx context.Context
}

func (l *lockedWriteFlusher) Write(p []byte) (int, error) {
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	return l.Writer.Write(p)
}

func (l *lockedWriteFlusher) Flush() {
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.Flusher.Flush()
}

// writeSSEEvent frames one event. Event ids come from the session's replay
// buffer so reconnecting clients can resume with Last-Event-ID.
func writeSSEEvent(wf *lockedWriteFlusher, id uint64, event string, payload []byte) error {
	if id > 0 {
		if _, err := fmt.Fprintf(wf, "id: %d\n", id); err != nil {
			return fmt.Errorf("failed to write SSE event id: %w", err)
		}
	}
	if event != "" {
		if _, err := fmt.Fprintf(wf, "event: %s\n", event); err != nil {
			return fmt.Errorf("failed to write SSE event name: %w", err)
		}
	}
	if _, err := wf.Write([]byte("data: ")); err != nil {
		return fmt.Errorf("failed to write SSE data prefix: %w", err)
	}
	if _, err := wf.Write(payload); err != nil {
		return fmt.Errorf("failed to write SSE payload: %w", err)
	}
	if _, err := wf.Write([]byte("\n\n")); err != nil {
		return fmt.Errorf("failed to write SSE frame terminator: %w", err)
	}
	wf.Flush()
	return nil
}

// handlePostMCP accepts client requests, notifications, and batches on the
// single MCP endpoint. Tool calls stream their response over SSE so
// server-initiated requests can interleave before the terminal message.
func (h *Handler) handlePostMCP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.post.start")

	if h.eng.ShuttingDown() {
		writeRPCError(w, http.StatusServiceUnavailable, nil, jsonrpc.ErrorCodeInternalError, "server shutting down")
		return
	}

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeRPCError(w, http.StatusUnsupportedMediaType, nil, jsonrpc.ErrorCodeInvalidRequest, "content-type must be application/json")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeRPCError(w, http.StatusRequestEntityTooLarge, nil, jsonrpc.ErrorCodeInvalidRequest, "request body too large")
		h.log.WarnContext(ctx, "body.read.fail", slog.String("err", err.Error()))
		return
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeParseError, "empty request body")
		return
	}

	if trimmed[0] == '[' {
		h.handleBatch(w, r, []byte(trimmed))
		return
	}

	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeParseError, "invalid JSON-RPC message")
		h.log.WarnContext(ctx, "jsonrpc.message.invalid", slog.String("err", err.Error()))
		return
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})

	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		h.handleSessionless(ctx, w, r, &msg)
		return
	}

	sess, err := h.eng.LookupSession(sessID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			writeRPCError(w, http.StatusNotFound, msg.ID, jsonrpc.ErrorCodeInvalidRequest, "session not found")
			h.log.InfoContext(ctx, "session.load.miss")
			return
		}
		writeRPCError(w, http.StatusInternalServerError, msg.ID, jsonrpc.ErrorCodeInternalError, "failed to load session")
		return
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.ID(), ProtocolVersion: sess.ProtocolVersion()})
	w.Header().Set(mcpSessionIDHeader, sess.ID())
	w.Header().Set(mcpProtocolVersionHeader, sess.ProtocolVersion())

	if res := msg.AsResponse(); res != nil {
		if err := h.eng.HandleClientResponse(sess, res); err != nil {
			writeRPCError(w, http.StatusNotFound, nil, jsonrpc.ErrorCodeInvalidRequest, "no matching pending request")
			h.log.InfoContext(ctx, "response.forward.miss")
			return
		}
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "response.inbound.ok", slog.Duration("dur", time.Since(start)))
		return
	}

	req := msg.AsRequest()
	if req == nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "unrecognized message shape")
		return
	}

	if req.Method == string(mcp.InitializeMethod) {
		writeRPCError(w, http.StatusConflict, req.ID, jsonrpc.ErrorCodeInvalidRequest, "session already initialized")
		return
	}

	if req.IsNotification() {
		if _, err := h.eng.HandleRequest(ctx, sess, req); err != nil {
			writeRPCError(w, http.StatusInternalServerError, nil, jsonrpc.ErrorCodeInternalError, "Internal server error")
			return
		}
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "notification.inbound.ok", slog.Duration("dur", time.Since(start)))
		return
	}

	bearer := bearerToken(r)

	if req.Method == string(mcp.ToolsCallMethod) {
		h.streamToolCall(w, r, sess, req, bearer)
		return
	}

	ctx = h.eng.WithRequestStream(ctx, sess, nil, bearer)
	resp, err := h.eng.HandleRequest(ctx, sess, req)
	if err != nil {
		resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal server error", nil)
	}
	h.writeJSONResponse(w, resp)
	h.log.InfoContext(ctx, "rpc.inbound.ok", slog.Duration("dur", time.Since(start)))
}

// handleSessionless serves the always-allowed methods that may arrive before
// a session exists: initialize and ping.
func (h *Handler) handleSessionless(ctx context.Context, w http.ResponseWriter, r *http.Request, msg *jsonrpc.AnyMessage) {
	req := msg.AsRequest()
	if req == nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "missing Mcp-Session-Id header")
		return
	}

	switch req.Method {
	case string(mcp.InitializeMethod):
		var initReq mcp.InitializeRequest
		if err := json.Unmarshal(req.Params, &initReq); err != nil {
			writeRPCError(w, http.StatusBadRequest, req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid initialize params")
			return
		}
		sess, initRes, err := h.eng.InitializeSession(r.Context(), &initReq)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, engine.ErrShutdown) {
				status = http.StatusServiceUnavailable
			}
			writeRPCError(w, status, req.ID, jsonrpc.ErrorCodeInternalError, "failed to initialize session")
			return
		}
		w.Header().Set(mcpSessionIDHeader, sess.ID())
		w.Header().Set(mcpProtocolVersionHeader, initRes.ProtocolVersion)
		resp, err := jsonrpc.NewResultResponse(req.ID, initRes)
		if err != nil {
			writeRPCError(w, http.StatusInternalServerError, req.ID, jsonrpc.ErrorCodeInternalError, "failed to encode initialize response")
			return
		}
		h.writeJSONResponse(w, resp)
		return

	case string(mcp.PingMethod):
		resp, _ := jsonrpc.NewResultResponse(req.ID, &mcp.EmptyResult{})
		h.writeJSONResponse(w, resp)
		return
	}

	writeRPCError(w, http.StatusBadRequest, req.ID, jsonrpc.ErrorCodeInvalidRequest, "missing Mcp-Session-Id header")
}

// handleBatch services a JSON-RPC batch synchronously and answers with a JSON
// array. Server-initiated RPCs are unavailable inside batches.
func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	ctx := r.Context()

	var msgs []jsonrpc.AnyMessage
	if err := json.Unmarshal(body, &msgs); err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeParseError, "invalid JSON-RPC batch")
		return
	}
	if len(msgs) == 0 {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "empty batch")
		return
	}

	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "missing Mcp-Session-Id header")
		return
	}
	sess, err := h.eng.LookupSession(sessID)
	if err != nil {
		writeRPCError(w, http.StatusNotFound, nil, jsonrpc.ErrorCodeInvalidRequest, "session not found")
		return
	}
	w.Header().Set(mcpSessionIDHeader, sess.ID())
	w.Header().Set(mcpProtocolVersionHeader, sess.ProtocolVersion())

	bearer := bearerToken(r)
	reqCtx := h.eng.WithRequestStream(ctx, sess, nil, bearer)

	responses := make([]*jsonrpc.Response, 0, len(msgs))
	for i := range msgs {
		req := msgs[i].AsRequest()
		if req == nil {
			if res := msgs[i].AsResponse(); res != nil {
				_ = h.eng.HandleClientResponse(sess, res)
			}
			continue
		}
		resp, err := h.eng.HandleRequest(reqCtx, sess, req)
		if err != nil {
			resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal server error", nil)
		}
		if resp != nil {
			responses = append(responses, resp)
		}
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(responses)
}

// streamToolCall answers a tools/call over SSE: server_request and
// server_notification frames first, then the terminal message event.
func (h *Handler) streamToolCall(w http.ResponseWriter, r *http.Request, sess *sessions.Session, req *jsonrpc.Request, bearer string) {
	start := time.Now()
	ctx := r.Context()

	f, ok := w.(http.Flusher)
	if !ok {
		writeRPCError(w, http.StatusInternalServerError, req.ID, jsonrpc.ErrorCodeInternalError, "streaming unsupported")
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}

	if acc := r.Header.Get("Accept"); acc != "" && acc != "*/*" {
		if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
			w.WriteHeader(http.StatusNotAcceptable)
			h.log.WarnContext(ctx, "accept.unsupported", slog.String("accept", acc))
			return
		}
	}

	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}
	wf.Flush()

	writer := engine.MessageWriterFunc(func(_ context.Context, id uint64, event string, payload []byte) error {
		return writeSSEEvent(wf, id, event, payload)
	})

	reqCtx := h.eng.WithRequestStream(ctx, sess, writer, bearer)

	resp, err := h.eng.HandleRequest(reqCtx, sess, req)
	if err != nil {
		resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal server error", nil)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.response.marshal.fail", slog.String("err", err.Error()))
		return
	}
	id := sess.Events().Append(engine.EventMessage, b)
	if err := writeSSEEvent(wf, id, engine.EventMessage, b); err != nil {
		h.log.ErrorContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "rpc.inbound.ok", slog.Duration("dur", time.Since(start)))
}

// handleGetMCP opens the long-lived server-push SSE stream, replaying
// buffered frames past Last-Event-ID before going live. One stream per
// session; extra GETs receive 409.
func (h *Handler) handleGetMCP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		w.WriteHeader(http.StatusNotAcceptable)
		h.log.WarnContext(ctx, "http.get.unsupported_media_type")
		return
	}

	f, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}

	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		w.WriteHeader(http.StatusBadRequest)
		h.log.WarnContext(ctx, "session.id.missing")
		return
	}
	sess, err := h.eng.LookupSession(sessID)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		h.log.InfoContext(ctx, "session.load.miss")
		return
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.ID(), ProtocolVersion: sess.ProtocolVersion()})

	var lastEventID uint64
	if v := r.Header.Get(lastEventIDHeader); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			lastEventID = n
		}
	}

	wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}
	writer := engine.MessageWriterFunc(func(_ context.Context, id uint64, event string, payload []byte) error {
		sess.Touch()
		return writeSSEEvent(wf, id, event, payload)
	})

	if err := h.eng.SetSessionWriter(sess, writer); err != nil {
		w.WriteHeader(http.StatusConflict)
		h.log.InfoContext(ctx, "sse.stream.conflict")
		return
	}
	defer h.eng.ClearSessionWriter(sess, writer)

	w.Header().Set(mcpSessionIDHeader, sess.ID())
	w.Header().Set(mcpProtocolVersionHeader, sess.ProtocolVersion())
	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	wf.Flush()

	h.log.InfoContext(ctx, "sse.stream.start")

	for _, ev := range sess.Events().Since(lastEventID) {
		if err := writeSSEEvent(wf, ev.ID, ev.Name, ev.Payload); err != nil {
			h.log.ErrorContext(ctx, "sse.replay.fail", slog.String("err", err.Error()))
			return
		}
	}

	<-ctx.Done()
	h.log.InfoContext(ctx, "sse.stream.end", slog.Duration("dur", time.Since(start)))
}

// handleDeleteMCP terminates a session and frees all associated state.
func (h *Handler) handleDeleteMCP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		w.WriteHeader(http.StatusBadRequest)
		h.log.WarnContext(ctx, "delete.missing_session_id")
		return
	}

	if !h.eng.DeleteSession(sessID) {
		w.WriteHeader(http.StatusNotFound)
		h.log.InfoContext(ctx, "session.delete.miss")
		return
	}

	w.WriteHeader(http.StatusNoContent)
	h.log.InfoContext(ctx, "session.delete.ok")
}

// handlePostRespond accepts a client's JSON-RPC response to a pending
// server-initiated request and resolves the matching future.
func (h *Handler) handlePostRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeRPCError(w, http.StatusUnsupportedMediaType, nil, jsonrpc.ErrorCodeInvalidRequest, "content-type must be application/json")
		return
	}

	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "missing Mcp-Session-Id header")
		return
	}
	sess, err := h.eng.LookupSession(sessID)
	if err != nil {
		writeRPCError(w, http.StatusNotFound, nil, jsonrpc.ErrorCodeInvalidRequest, "session not found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeRPCError(w, http.StatusRequestEntityTooLarge, nil, jsonrpc.ErrorCodeInvalidRequest, "request body too large")
		return
	}

	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeParseError, "invalid JSON-RPC message")
		return
	}
	resp := msg.AsResponse()
	if resp == nil {
		writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.ErrorCodeInvalidRequest, "expected a JSON-RPC response")
		return
	}

	if err := h.eng.HandleClientResponse(sess, resp); err != nil {
		writeRPCError(w, http.StatusNotFound, nil, jsonrpc.ErrorCodeInvalidRequest, "no matching pending request")
		h.log.InfoContext(ctx, "respond.miss", slog.String("id", resp.ID.String()))
		return
	}

	w.Header().Set(mcpSessionIDHeader, sess.ID())
	w.Header().Set(mcpProtocolVersionHeader, sess.ProtocolVersion())
	w.WriteHeader(http.StatusAccepted)
	h.log.InfoContext(ctx, "respond.ok", slog.String("id", resp.ID.String()))
}

func (h *Handler) writeJSONResponse(w http.ResponseWriter, resp *jsonrpc.Response) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("response.write.fail", slog.String("err", err.Error()))
	}
}
