package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcpframe/mcp-frame-go/auth"
	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
	"github.com/mcpframe/mcp-frame-go/internal/logctx"
	"github.com/mcpframe/mcp-frame-go/internal/outbound"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/registry"
	"github.com/mcpframe/mcp-frame-go/sessions"
	"github.com/mcpframe/mcp-frame-go/tasks"
)

const (
	defaultShutdownDrain = 5 * time.Second
	// maxCompletionValues bounds completion/complete responses.
	maxCompletionValues = 100
)

// CompletionProvider produces argument completions for one reference type
// ("ref/resource" or "ref/prompt").
type CompletionProvider func(ctx context.Context, req *mcp.CompleteRequest) ([]string, bool, error)

// Engine is the protocol dispatch core: it validates inbound JSON-RPC
// envelopes, routes methods to registered handlers, propagates per-request
// context, correlates server-initiated RPCs, and encodes responses.
type Engine struct {
	reg      *registry.Registry
	sessions *sessions.Manager
	tasks    *tasks.Manager
	log      *slog.Logger
	tracer   Tracer

	serverInfo   mcp.ImplementationInfo
	instructions string
	strict       bool
	validator    auth.TokenValidator

	serverReqTimeout time.Duration
	shutdownDrain    time.Duration

	logLevel *slog.LevelVar

	mu          sync.Mutex
	writers     map[string]MessageWriter
	dispatchers map[string]*dispatcherEntry
	inflight    map[string]context.CancelCauseFunc
	roots       map[string][]mcp.Root
	inflightN   int
	completions map[string]CompletionProvider
	toolBuckets map[string]*sessions.TokenBucket

	wg     sync.WaitGroup
	closed atomic.Bool
}

type dispatcherEntry struct {
	d *outbound.Dispatcher
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; it is wrapped with the context-enriching
// handler so records carry request/session attributes.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = slog.New(logctx.Handler{Handler: l.Handler()})
		}
	}
}

// WithServerInfo sets the server identity returned from initialize.
func WithServerInfo(info mcp.ImplementationInfo) Option {
	return func(e *Engine) { e.serverInfo = info }
}

// WithInstructions sets the instructions string returned from initialize.
func WithInstructions(s string) Option {
	return func(e *Engine) { e.instructions = s }
}

// WithStrictInitialize rejects every method but initialize and ping until the
// client sends notifications/initialized.
func WithStrictInitialize() Option {
	return func(e *Engine) { e.strict = true }
}

// WithTokenValidator installs the validator consulted for auth-required tools.
func WithTokenValidator(v auth.TokenValidator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithServerRequestTimeout overrides the 120s deadline on server->client RPCs.
func WithServerRequestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.serverReqTimeout = d
		}
	}
}

// WithShutdownDrain overrides the default 5s graceful shutdown drain.
func WithShutdownDrain(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.shutdownDrain = d
		}
	}
}

// WithTracer installs a tracer wrapping each tool call in an mcp.tool.<name>
// span. Defaults to a no-op.
func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithCompletionProvider registers the completion provider for a reference
// type ("ref/resource" or "ref/prompt").
func WithCompletionProvider(refType string, p CompletionProvider) Option {
	return func(e *Engine) { e.completions[refType] = p }
}

// New constructs an Engine over the given registry and engine options. It
// creates no session or task manager; attach them with AttachSessions and
// AttachTasks, or use NewWithSessions, which wires eviction cleanup before any
// session exists.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		reg:              reg,
		log:              slog.New(logctx.Handler{Handler: slog.Default().Handler()}),
		tracer:           noopTracer{},
		serverInfo:       mcp.ImplementationInfo{Name: "mcp-frame", Version: "0.0.0"},
		serverReqTimeout: 0,
		shutdownDrain:    defaultShutdownDrain,
		logLevel:         new(slog.LevelVar),
		writers:          make(map[string]MessageWriter),
		dispatchers:      make(map[string]*dispatcherEntry),
		inflight:         make(map[string]context.CancelCauseFunc),
		roots:            make(map[string][]mcp.Root),
		completions:      make(map[string]CompletionProvider),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// AttachSessions installs the session manager. The manager must be built with
// the engine's eviction callback; NewWithSessions does this in one step.
func (e *Engine) AttachSessions(m *sessions.Manager) { e.sessions = m }

// AttachTasks installs the task manager and wires status notifications.
func (e *Engine) AttachTasks(m *tasks.Manager) {
	e.tasks = m
	m.SetNotifier(func(sessionID string, task mcp.Task) {
		sess, err := e.sessions.Get(sessionID)
		if err != nil {
			return
		}
		e.notifySession(context.Background(), sess, string(mcp.TasksStatusNotificationMethod), task)
	})
}

// NewWithSessions builds the engine, session manager, and task manager as one
// wired unit.
func NewWithSessions(reg *registry.Registry, sessionOpts []sessions.ManagerOption, opts ...Option) *Engine {
	e := New(reg, opts...)
	sessionOpts = append(sessionOpts, sessions.WithOnEvict(e.onSessionEvict))
	e.AttachSessions(sessions.NewManager(sessionOpts...))
	e.AttachTasks(tasks.NewManager(nil))
	return e
}

// Registry exposes the handler registry.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Sessions exposes the session manager.
func (e *Engine) Sessions() *sessions.Manager { return e.sessions }

// Tasks exposes the task manager.
func (e *Engine) Tasks() *tasks.Manager { return e.tasks }

// LogLevel exposes the host logging threshold driven by logging/setLevel.
func (e *Engine) LogLevel() *slog.LevelVar { return e.logLevel }

// InFlight returns the number of requests currently dispatched.
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflightN
}

// ShuttingDown reports whether new requests are being refused.
func (e *Engine) ShuttingDown() bool { return e.closed.Load() }

// onSessionEvict purges everything attached to an evicted session.
func (e *Engine) onSessionEvict(sess *sessions.Session) {
	id := sess.ID()
	if e.tasks != nil {
		e.tasks.PurgeSession(id)
	}
	e.mu.Lock()
	delete(e.writers, id)
	delete(e.roots, id)
	for key := range e.toolBuckets {
		if strings.HasPrefix(key, id+"/") {
			delete(e.toolBuckets, key)
		}
	}
	entry := e.dispatchers[id]
	delete(e.dispatchers, id)
	e.mu.Unlock()
	if entry != nil {
		entry.d.Close(sessions.ErrSessionNotFound)
	}
	e.log.Debug("session.evict.cleanup", slog.String("session_id", id))
}

// InitializeSession negotiates the protocol version, records client
// capabilities, and mints a session.
func (e *Engine) InitializeSession(ctx context.Context, req *mcp.InitializeRequest) (*sessions.Session, *mcp.InitializeResult, error) {
	if req == nil {
		return nil, nil, fmt.Errorf("initialize request required")
	}
	if e.closed.Load() {
		return nil, nil, ErrShutdown
	}

	negotiated := req.ProtocolVersion
	if !mcp.IsSupportedProtocolVersion(negotiated) {
		negotiated = mcp.LatestProtocolVersion
	}

	sess := e.sessions.Create(req.ClientInfo, negotiated, req.Capabilities)

	res := &mcp.InitializeResult{
		ProtocolVersion: negotiated,
		ServerInfo:      e.serverInfo,
		Instructions:    e.instructions,
		SessionID:       sess.ID(),
	}
	res.Capabilities.Tools = &struct {
		ListChanged bool `json:"listChanged"`
	}{ListChanged: true}
	res.Capabilities.Resources = &struct {
		ListChanged bool `json:"listChanged"`
		Subscribe   bool `json:"subscribe"`
	}{ListChanged: true, Subscribe: true}
	res.Capabilities.Prompts = &struct {
		ListChanged bool `json:"listChanged"`
	}{ListChanged: true}
	res.Capabilities.Logging = &struct{}{}
	res.Capabilities.Completions = &struct{}{}

	e.log.InfoContext(ctx, "session.initialize.ok",
		slog.String("session_id", sess.ID()),
		slog.String("protocol_version", negotiated),
		slog.String("client", req.ClientInfo.Name))

	return sess, res, nil
}

// LookupSession resolves a session id.
func (e *Engine) LookupSession(id string) (*sessions.Session, error) {
	return e.sessions.Get(id)
}

// DeleteSession terminates the session and frees all associated state.
func (e *Engine) DeleteSession(id string) bool {
	return e.sessions.Delete(id)
}

// SetSessionWriter installs the push-stream writer for the session. At most
// one is allowed; a second registration reports ErrStreamConflict.
func (e *Engine) SetSessionWriter(sess *sessions.Session, w MessageWriter) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.writers[sess.ID()]; exists {
		return ErrStreamConflict
	}
	e.writers[sess.ID()] = w
	sess.SetProtected(true)
	return nil
}

// ClearSessionWriter removes the push-stream writer if w is still current.
func (e *Engine) ClearSessionWriter(sess *sessions.Session, w MessageWriter) {
	e.mu.Lock()
	if cur, ok := e.writers[sess.ID()]; ok && equalWriters(cur, w) {
		delete(e.writers, sess.ID())
		sess.SetProtected(false)
	}
	e.mu.Unlock()
}

func equalWriters(a, b MessageWriter) bool {
	return fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b)
}

func (e *Engine) sessionWriter(id string) MessageWriter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writers[id]
}

// WithRequestStream builds the per-request scope: session, response stream,
// bearer token, and link accumulator. Transports call this before dispatch.
func (e *Engine) WithRequestStream(ctx context.Context, sess *sessions.Session, w MessageWriter, bearer string) context.Context {
	return withRequestState(ctx, &requestState{eng: e, sess: sess, writer: w, bearer: bearer})
}

// dispatcher returns the session's outbound dispatcher, creating it on first
// use.
func (e *Engine) dispatcher(sess *sessions.Session) *outbound.Dispatcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.dispatchers[sess.ID()]; ok {
		return entry.d
	}
	d := outbound.NewWithTimeout(sessionTransport{eng: e, sess: sess}, e.serverReqTimeout)
	e.dispatchers[sess.ID()] = &dispatcherEntry{d: d}
	return d
}

// HandleClientResponse routes a client's response to a pending
// server-initiated request.
func (e *Engine) HandleClientResponse(sess *sessions.Session, resp *jsonrpc.Response) error {
	sess.Touch()
	d := e.dispatcher(sess)
	if !d.OnResponse(resp) {
		return fmt.Errorf("no pending server request with id %q", resp.ID.String())
	}
	return nil
}

func (e *Engine) cachedRoots(sessionID string) ([]mcp.Root, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	roots, ok := e.roots[sessionID]
	return roots, ok
}

func (e *Engine) storeRoots(sessionID string, roots []mcp.Root) {
	e.mu.Lock()
	e.roots[sessionID] = roots
	e.mu.Unlock()
}

// alwaysAllowed lists the methods accepted before notifications/initialized.
func alwaysAllowed(method string) bool {
	switch method {
	case string(mcp.InitializeMethod), string(mcp.PingMethod), string(mcp.InitializedNotificationMethod):
		return true
	}
	return false
}

// HandleRequest dispatches one inbound request or notification. Notifications
// yield a nil response.
func (e *Engine) HandleRequest(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	if e.closed.Load() {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "server shutting down", nil), nil
	}

	sess.Touch()
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: "request"})

	if e.strict && !sess.Initialized() && !alwaysAllowed(req.Method) {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "session not initialized", nil), nil
	}

	// One token per client->server request; server->client responses are not
	// metered.
	if !sess.Allow() {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeRateLimited, "Rate limit exceeded", map[string]any{"retryAfter": 1.0}), nil
	}

	if req.IsNotification() {
		return nil, e.handleNotification(ctx, sess, req)
	}

	e.mu.Lock()
	e.inflightN++
	e.mu.Unlock()
	e.wg.Add(1)
	defer func() {
		e.mu.Lock()
		e.inflightN--
		e.mu.Unlock()
		e.wg.Done()
	}()

	start := time.Now()
	log := e.log.With(slog.String("method", req.Method))

	resp, err := e.dispatch(ctx, sess, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.InfoContext(ctx, "engine.handle_request.cancelled", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Request cancelled", nil), nil
		}
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal server error", nil), nil
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return resp, nil
}

func (e *Engine) dispatch(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	switch req.Method {
	case string(mcp.PingMethod):
		return jsonrpc.NewResultResponse(req.ID, &mcp.EmptyResult{})
	case string(mcp.ToolsListMethod):
		return e.handleToolsList(ctx, sess, req)
	case string(mcp.ToolsCallMethod):
		return e.handleToolCall(ctx, sess, req)
	case string(mcp.ResourcesListMethod):
		return e.handleList(ctx, req, registry.KindResource, "resources")
	case string(mcp.ResourcesTemplatesListMethod):
		return e.handleList(ctx, req, registry.KindResourceTemplate, "resourceTemplates")
	case string(mcp.ResourcesReadMethod):
		return e.handleResourcesRead(ctx, sess, req)
	case string(mcp.ResourcesSubscribeMethod):
		return e.handleResourcesSubscribe(ctx, sess, req)
	case string(mcp.ResourcesUnsubscribeMethod):
		return e.handleResourcesUnsubscribe(ctx, sess, req)
	case string(mcp.PromptsListMethod):
		return e.handleList(ctx, req, registry.KindPrompt, "prompts")
	case string(mcp.PromptsGetMethod):
		return e.handlePromptsGet(ctx, sess, req)
	case string(mcp.CompletionCompleteMethod):
		return e.handleCompletionsComplete(ctx, sess, req)
	case string(mcp.LoggingSetLevelMethod):
		return e.handleSetLoggingLevel(ctx, sess, req)
	case string(mcp.TasksGetMethod):
		return e.handleTasksGet(ctx, sess, req)
	case string(mcp.TasksResultMethod):
		return e.handleTasksResult(ctx, sess, req)
	case string(mcp.TasksListMethod):
		return e.handleTasksList(ctx, sess, req)
	case string(mcp.TasksCancelMethod):
		return e.handleTasksCancel(ctx, sess, req)
	}

	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil), nil
}

func (e *Engine) handleNotification(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) error {
	switch req.Method {
	case string(mcp.InitializedNotificationMethod):
		sess.MarkInitialized()
		e.log.InfoContext(ctx, "session.initialized", slog.String("session_id", sess.ID()))
		return nil

	case string(mcp.CancelledNotificationMethod):
		var params mcp.CancelledNotification
		if err := json.Unmarshal(req.Params, &params); err != nil || params.RequestID == "" {
			return nil
		}
		e.cancelInFlight(sess.ID(), params.RequestID)
		return nil

	case string(mcp.RootsListChangedNotificationMethod):
		e.mu.Lock()
		delete(e.roots, sess.ID())
		e.mu.Unlock()
		return nil
	}

	e.log.DebugContext(ctx, "notification.unhandled", slog.String("method", req.Method))
	return nil
}

func (e *Engine) trackInFlight(sessionID, requestID string, cancel context.CancelCauseFunc) func() {
	key := sessionID + "/" + requestID
	e.mu.Lock()
	e.inflight[key] = cancel
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.inflight, key)
		e.mu.Unlock()
	}
}

func (e *Engine) cancelInFlight(sessionID, requestID string) {
	key := sessionID + "/" + requestID
	e.mu.Lock()
	cancel, ok := e.inflight[key]
	if ok {
		delete(e.inflight, key)
	}
	e.mu.Unlock()
	if ok {
		cancel(context.Canceled)
		e.log.Debug("request.cancelled", slog.String("request_id", requestID))
	}
}

// handleList serves the paginated list methods whose payloads are assembled
// by concatenating pre-serialized descriptor fragments.
func (e *Engine) handleList(ctx context.Context, req *jsonrpc.Request, kind registry.Kind, field string) (*jsonrpc.Response, error) {
	var params mcp.PaginatedRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
		}
	}

	frags, next, err := e.reg.ListWire(kind, params.Cursor, 0)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid cursor", nil), nil
	}

	var sb strings.Builder
	sb.WriteString(`{"`)
	sb.WriteString(field)
	sb.WriteString(`":`)
	sb.Write(registry.ConcatWire(frags))
	if next != "" {
		sb.WriteString(`,"nextCursor":`)
		nb, _ := json.Marshal(next)
		sb.Write(nb)
	}
	sb.WriteString("}")

	return &jsonrpc.Response{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		Result:         json.RawMessage(sb.String()),
		ID:             req.ID,
	}, nil
}

func (e *Engine) handleToolsList(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	return e.handleList(ctx, req, registry.KindTool, "tools")
}

func (e *Engine) handleResourcesRead(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.ReadResourceRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	if res, err := e.reg.Resource(params.URI); err == nil {
		contents, err := res.Read(ctx)
		if err != nil {
			return e.errorResponseFor(ctx, req, err), nil
		}
		return jsonrpc.NewResultResponse(req.ID, &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{*contents}})
	}

	if tmpl, vars, ok := e.reg.MatchTemplate(params.URI); ok {
		contents, err := tmpl.Read(ctx, params.URI, vars)
		if err != nil {
			return e.errorResponseFor(ctx, req, err), nil
		}
		return jsonrpc.NewResultResponse(req.ID, &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{*contents}})
	}

	msg := fmt.Sprintf("Unknown resource: %q", params.URI)
	if suggestion, ok := e.reg.Suggest(registry.KindResource, params.URI); ok {
		msg = fmt.Sprintf("%s. Did you mean %q?", msg, suggestion)
	}
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, msg, nil), nil
}

func (e *Engine) handleResourcesSubscribe(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.SubscribeRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}
	sess.Subscribe(params.URI)
	return jsonrpc.NewResultResponse(req.ID, &mcp.EmptyResult{})
}

func (e *Engine) handleResourcesUnsubscribe(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.UnsubscribeRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}
	sess.Unsubscribe(params.URI)
	return jsonrpc.NewResultResponse(req.ID, &mcp.EmptyResult{})
}

func (e *Engine) handlePromptsGet(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.GetPromptRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	prompt, err := e.reg.Prompt(params.Name)
	if err != nil {
		msg := fmt.Sprintf("Unknown prompt: %q", params.Name)
		if suggestion, ok := e.reg.Suggest(registry.KindPrompt, params.Name); ok {
			msg = fmt.Sprintf("%s. Did you mean %q?", msg, suggestion)
		}
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, msg, nil), nil
	}

	result, err := prompt.Render(ctx, params.Arguments)
	if err != nil {
		return e.errorResponseFor(ctx, req, err), nil
	}
	return jsonrpc.NewResultResponse(req.ID, result)
}

func (e *Engine) handleCompletionsComplete(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.CompleteRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	e.mu.Lock()
	provider := e.completions[params.Ref.Type]
	e.mu.Unlock()

	values := []string{}
	hasMore := false
	if provider != nil {
		v, more, err := provider(ctx, &params)
		if err != nil {
			return e.errorResponseFor(ctx, req, err), nil
		}
		values, hasMore = v, more
	}
	if len(values) > maxCompletionValues {
		values = values[:maxCompletionValues]
		hasMore = true
	}

	return jsonrpc.NewResultResponse(req.ID, &mcp.CompleteResult{Completion: mcp.Completion{Values: values, HasMore: hasMore}})
}

func (e *Engine) handleSetLoggingLevel(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.SetLevelRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}
	if !mcp.IsValidLoggingLevel(params.Level) {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, fmt.Sprintf("invalid logging level: %q", params.Level), nil), nil
	}
	sess.SetLogLevel(params.Level)
	e.logLevel.Set(slogLevelFor(params.Level))
	return jsonrpc.NewResultResponse(req.ID, &mcp.EmptyResult{})
}

// slogLevelFor maps the eight MCP severities onto the host logger threshold.
func slogLevelFor(level mcp.LoggingLevel) slog.Level {
	switch level {
	case mcp.LoggingLevelDebug:
		return slog.LevelDebug
	case mcp.LoggingLevelInfo:
		return slog.LevelInfo
	case mcp.LoggingLevelNotice:
		return slog.LevelInfo + 1
	case mcp.LoggingLevelWarning:
		return slog.LevelWarn
	case mcp.LoggingLevelError:
		return slog.LevelError
	case mcp.LoggingLevelCritical:
		return slog.LevelError + 1
	case mcp.LoggingLevelAlert:
		return slog.LevelError + 2
	case mcp.LoggingLevelEmergency:
		return slog.LevelError + 3
	}
	return slog.LevelInfo
}

// errorResponseFor converts a handler error into its wire response. Tagged
// RPC errors surface as-is; decode-shaped errors become invalid params;
// anything else is sanitized to a generic internal error and logged.
func (e *Engine) errorResponseFor(ctx context.Context, req *jsonrpc.Request, err error) *jsonrpc.Response {
	if re, ok := AsRPCError(err); ok {
		return jsonrpc.NewErrorResponse(req.ID, re.Code, re.Message, re.Data)
	}
	if errors.Is(err, ErrCapabilityUnavailable) {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "capability_required", map[string]any{"detail": err.Error()})
	}
	if isArgumentError(err) {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error(), nil)
	}
	e.log.ErrorContext(ctx, "handler.fail", slog.String("err", err.Error()))
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal server error", nil)
}

// isArgumentError classifies decode/validation failures raised from handler
// argument handling (the Go analog of ValueError/TypeError in handler code).
func isArgumentError(err error) bool {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return true
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return true
	}
	return strings.Contains(err.Error(), "invalid arguments")
}
