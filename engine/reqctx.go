package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/sessions"
)

// requestState is the per-request scope injected into handler contexts. It
// travels in context.Context values, surviving suspension across await points
// without leaking across concurrent requests.
type requestState struct {
	eng    *Engine
	sess   *sessions.Session
	writer MessageWriter // stream carrying this request's response, if any

	bearer        string
	userID        string
	progressToken mcp.ProgressToken

	mu    sync.Mutex
	links []mcp.ResourceLink
}

type requestStateKey struct{}

func withRequestState(ctx context.Context, rs *requestState) context.Context {
	return context.WithValue(ctx, requestStateKey{}, rs)
}

func requestStateFrom(ctx context.Context) (*requestState, bool) {
	rs, ok := ctx.Value(requestStateKey{}).(*requestState)
	return rs, ok
}

// SessionFromContext returns the session servicing the current request.
func SessionFromContext(ctx context.Context) (*sessions.Session, bool) {
	rs, ok := requestStateFrom(ctx)
	if !ok {
		return nil, false
	}
	return rs.sess, true
}

// UserIDFromContext returns the authenticated user for the current request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	rs, ok := requestStateFrom(ctx)
	if !ok || rs.userID == "" {
		return "", false
	}
	return rs.userID, true
}

// CreateMessage issues a sampling request to the client and waits for its
// response. Fails with ErrCapabilityUnavailable when the client did not
// declare sampling at initialize.
func CreateMessage(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error) {
	rs, ok := requestStateFrom(ctx)
	if !ok {
		return nil, ErrNoRequestContext
	}
	if !rs.sess.SupportsSampling() {
		return nil, fmt.Errorf("%w: sampling", ErrCapabilityUnavailable)
	}

	resp, err := rs.eng.callClient(ctx, rs.sess, string(mcp.SamplingCreateMessageMethod), req)
	if err != nil {
		return nil, err
	}
	var res mcp.CreateMessageResult
	if err := json.Unmarshal(resp, &res); err != nil {
		return nil, fmt.Errorf("invalid sampling response: %w", err)
	}
	return &res, nil
}

// CreateElicitation asks the client to collect structured user input. The
// schema may be nil for free-form confirmation prompts.
func CreateElicitation(ctx context.Context, message string, schema *mcp.ElicitationSchema) (*mcp.ElicitResult, error) {
	rs, ok := requestStateFrom(ctx)
	if !ok {
		return nil, ErrNoRequestContext
	}
	if !rs.sess.SupportsElicitation() {
		return nil, fmt.Errorf("%w: elicitation", ErrCapabilityUnavailable)
	}

	req := &mcp.ElicitRequest{Message: message, RequestedSchema: schema}
	resp, err := rs.eng.callClient(ctx, rs.sess, string(mcp.ElicitationCreateMethod), req)
	if err != nil {
		return nil, err
	}
	var res mcp.ElicitResult
	if err := json.Unmarshal(resp, &res); err != nil {
		return nil, fmt.Errorf("invalid elicitation response: %w", err)
	}
	return &res, nil
}

// ListRoots fetches the client's filesystem roots, serving them from the
// session cache until the client signals notifications/roots/list_changed.
func ListRoots(ctx context.Context) ([]mcp.Root, error) {
	rs, ok := requestStateFrom(ctx)
	if !ok {
		return nil, ErrNoRequestContext
	}
	if !rs.sess.SupportsRoots() {
		return nil, fmt.Errorf("%w: roots", ErrCapabilityUnavailable)
	}

	if roots, ok := rs.eng.cachedRoots(rs.sess.ID()); ok {
		return roots, nil
	}

	resp, err := rs.eng.callClient(ctx, rs.sess, string(mcp.RootsListMethod), &mcp.EmptyResult{})
	if err != nil {
		return nil, err
	}
	var res mcp.ListRootsResult
	if err := json.Unmarshal(resp, &res); err != nil {
		return nil, fmt.Errorf("invalid roots response: %w", err)
	}
	rs.eng.storeRoots(rs.sess.ID(), res.Roots)
	return res.Roots, nil
}

// SendProgress emits a fire-and-forget notifications/progress for the current
// request. Without a live stream (or a client progress token) it is a silent
// no-op.
func SendProgress(ctx context.Context, progress, total float64) {
	rs, ok := requestStateFrom(ctx)
	if !ok || rs.progressToken == nil {
		return
	}
	params := mcp.ProgressNotificationParams{
		ProgressToken: rs.progressToken,
		Progress:      progress,
	}
	if total > 0 {
		params.Total = total
	}
	rs.eng.notifySession(ctx, rs.sess, string(mcp.ProgressNotificationMethod), params)
}

// SendLog emits a notifications/message record for the current session.
// Without a live stream it is a silent no-op.
func SendLog(ctx context.Context, level mcp.LoggingLevel, data any) {
	rs, ok := requestStateFrom(ctx)
	if !ok {
		return
	}
	if !mcp.IsValidLoggingLevel(level) {
		level = mcp.LoggingLevelInfo
	}
	rs.eng.notifySession(ctx, rs.sess, string(mcp.LoggingMessageNotificationMethod), mcp.LoggingMessageNotification{
		Level: level,
		Data:  data,
	})
}

// AddResourceLink accumulates a resource link for the current tool call; links
// surface under _meta.links of the result.
func AddResourceLink(ctx context.Context, link mcp.ResourceLink) {
	rs, ok := requestStateFrom(ctx)
	if !ok {
		return
	}
	rs.mu.Lock()
	rs.links = append(rs.links, link)
	rs.mu.Unlock()
}

func (rs *requestState) takeLinks() []mcp.ResourceLink {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	links := rs.links
	rs.links = nil
	return links
}

// callClient routes a server-initiated request through the session dispatcher
// and unwraps the JSON-RPC response.
func (e *Engine) callClient(ctx context.Context, sess *sessions.Session, method string, params any) (json.RawMessage, error) {
	d := e.dispatcher(sess)
	resp, err := d.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("client error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// notifySession emits a notification on the session's live stream, buffering
// the frame for replay. Missing streams make this a silent no-op.
func (e *Engine) notifySession(ctx context.Context, sess *sessions.Session, method string, params any) {
	req, err := jsonrpc.NewRequest(nil, method, params)
	if err != nil {
		return
	}
	b, err := json.Marshal(req)
	if err != nil {
		return
	}
	_ = e.send(ctx, sess, EventServerNotification, b)
}
