package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcpframe/mcp-frame-go/auth"
	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
	"github.com/mcpframe/mcp-frame-go/internal/logctx"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/registry"
	"github.com/mcpframe/mcp-frame-go/sessions"
)

// Argument keys injected for auth-required tools.
const (
	paramExternalAccessToken = "_external_access_token"
	paramUserID              = "_user_id"
)

func (e *Engine) handleToolCall(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()

	var rawParams struct {
		Name      json.RawMessage  `json:"name"`
		Arguments json.RawMessage  `json:"arguments"`
		Meta      *mcp.RequestMeta `json:"_meta"`
	}
	if err := json.Unmarshal(req.Params, &rawParams); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	var name string
	if err := json.Unmarshal(rawParams.Name, &name); err != nil || name == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "tool name must be a string", nil), nil
	}

	args := map[string]any{}
	if len(rawParams.Arguments) > 0 {
		if err := json.Unmarshal(rawParams.Arguments, &args); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "arguments must be an object", nil), nil
		}
	}
	if len(args) > maxArgumentKeys {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams,
			fmt.Sprintf("Too many argument keys (%d, max %d)", len(args), maxArgumentKeys), nil), nil
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: name})
	log := e.log.With(slog.String("tool", name))

	tool, err := e.reg.Tool(name)
	if err != nil {
		msg := fmt.Sprintf("Unknown tool: %q", name)
		if suggestion, ok := e.reg.Suggest(registry.KindTool, name); ok {
			msg = fmt.Sprintf("%s. Did you mean %q?", msg, suggestion)
		}
		log.InfoContext(ctx, "tool.call.unknown", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, msg, nil), nil
	}

	if tool.RateLimitRPS > 0 && !e.allowToolCall(sess.ID(), tool) {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeRateLimited, "Rate limit exceeded",
			map[string]any{"retryAfter": 1 / tool.RateLimitRPS}), nil
	}

	rs, _ := requestStateFrom(ctx)

	if tool.RequiresAuth {
		info, errResp := e.authorizeToolCall(ctx, tool, rs, req)
		if errResp != nil {
			return errResp, nil
		}
		args[paramExternalAccessToken] = info.ExternalAccessToken
		if info.UserID != "" {
			args[paramUserID] = info.UserID
			sess.SetUserID(info.UserID)
			if rs != nil {
				rs.userID = info.UserID
			}
		}
	}

	coerced, err := coerceArguments(tool.InputSchema, args)
	if err != nil {
		return e.errorResponseFor(ctx, req, err), nil
	}
	rawArgs, err := json.Marshal(coerced)
	if err != nil {
		return nil, fmt.Errorf("encode coerced arguments: %w", err)
	}

	if rs != nil && rawParams.Meta != nil {
		rs.progressToken = rawParams.Meta.ProgressToken
	}

	if tool.LongRunning || (rawParams.Meta != nil && rawParams.Meta.Task) {
		return e.startToolTask(ctx, sess, tool, req, rawArgs)
	}

	result, err := e.invokeTool(ctx, sess, tool, req.ID.String(), rawArgs)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return e.errorResponseFor(ctx, req, err), nil
	}

	var links []mcp.ResourceLink
	if rs != nil {
		links = rs.takeLinks()
	}
	normalized, err := normalizeToolResult(tool, result, links)
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "tool.call.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return jsonrpc.NewResultResponse(req.ID, normalized)
}

// invokeTool runs the handler with cancellation tracking and tracing.
func (e *Engine) invokeTool(ctx context.Context, sess *sessions.Session, tool *registry.Tool, requestID string, rawArgs json.RawMessage) (any, error) {
	toolCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)

	if requestID != "" {
		untrack := e.trackInFlight(sess.ID(), requestID, cancel)
		defer untrack()
	}

	spanCtx, finish := e.tracer.StartSpan(toolCtx, "mcp.tool."+tool.Name)
	result, err := tool.Invoke(spanCtx, rawArgs)
	finish(err)
	return result, err
}

// startToolTask runs the handler as a durable task and answers immediately
// with the task reference.
func (e *Engine) startToolTask(ctx context.Context, sess *sessions.Session, tool *registry.Tool, req *jsonrpc.Request, rawArgs json.RawMessage) (*jsonrpc.Response, error) {
	// The task outlives the originating request; keep context values (request
	// scope, log attrs) but detach from the request's cancellation.
	taskCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	t := e.tasks.Create(sess.ID(), tool.Name, req.ID.String(), cancel)

	rs, _ := requestStateFrom(taskCtx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel(context.Canceled)

		spanCtx, finish := e.tracer.StartSpan(taskCtx, "mcp.tool."+tool.Name)
		result, err := tool.Invoke(spanCtx, rawArgs)
		finish(err)

		if err != nil {
			if errors.Is(err, context.Canceled) {
				// tasks/cancel already transitioned the task.
				return
			}
			errVal := map[string]any{"message": "Internal server error"}
			if re, ok := AsRPCError(err); ok {
				errVal = map[string]any{"code": int(re.Code), "message": re.Message}
			} else {
				e.log.Error("task.fail", slog.String("task_id", t.ID), slog.String("err", err.Error()))
			}
			_ = e.tasks.SetError(t.ID, errVal)
			return
		}

		var links []mcp.ResourceLink
		if rs != nil {
			links = rs.takeLinks()
		}
		normalized, nErr := normalizeToolResult(tool, result, links)
		if nErr != nil {
			_ = e.tasks.SetError(t.ID, map[string]any{"message": "Internal server error"})
			return
		}
		_ = e.tasks.SetResult(t.ID, normalized)
	}()

	return jsonrpc.NewResultResponse(req.ID, &mcp.CallToolTaskResult{TaskID: t.ID, Status: mcp.TaskStatusWorking})
}

// authorizeToolCall validates the request's bearer token against the token
// validator and the tool's scope requirements.
func (e *Engine) authorizeToolCall(ctx context.Context, tool *registry.Tool, rs *requestState, req *jsonrpc.Request) (*auth.TokenInfo, *jsonrpc.Response) {
	if e.validator == nil {
		e.log.ErrorContext(ctx, "tool.auth.unconfigured", slog.String("tool", tool.Name))
		return nil, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError,
			fmt.Sprintf("Tool %q requires authorization but no token validator is configured", tool.Name), nil)
	}

	var bearer string
	if rs != nil {
		bearer = rs.bearer
	}
	if bearer == "" {
		return nil, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeUnauthorized, "unauthorized", nil)
	}

	info, err := e.validator.Validate(ctx, bearer)
	if err != nil {
		if errors.Is(err, auth.ErrInsufficientScope) {
			return nil, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeForbiddenScope, "forbidden_scope", nil)
		}
		e.log.InfoContext(ctx, "tool.auth.fail", slog.String("err", err.Error()))
		return nil, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeUnauthorized, "unauthorized", nil)
	}

	for _, scope := range tool.AuthScopes {
		if !info.HasScope(scope) {
			return nil, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeForbiddenScope, "forbidden_scope", nil)
		}
	}

	return info, nil
}

// allowToolCall consumes a token from the per-tool bucket for the session.
func (e *Engine) allowToolCall(sessionID string, tool *registry.Tool) bool {
	key := sessionID + "/" + tool.Name

	e.mu.Lock()
	if e.toolBuckets == nil {
		e.toolBuckets = make(map[string]*sessions.TokenBucket)
	}
	bucket, ok := e.toolBuckets[key]
	if !ok {
		bucket = sessions.NewTokenBucket(tool.RateLimitRPS, 0)
		e.toolBuckets[key] = bucket
	}
	e.mu.Unlock()

	return bucket.Allow()
}
