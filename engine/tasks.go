package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/sessions"
	"github.com/mcpframe/mcp-frame-go/tasks"
)

func (e *Engine) handleTasksGet(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.TaskGetRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	t, err := e.tasks.Get(params.ID)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, fmt.Sprintf("Unknown task: %s", params.ID), nil), nil
	}
	return jsonrpc.NewResultResponse(req.ID, t.Wire())
}

func (e *Engine) handleTasksResult(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.TaskGetRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	w, err := e.tasks.Result(params.ID)
	if err != nil {
		if errors.Is(err, tasks.ErrNotTerminal) {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams,
				fmt.Sprintf("Task %s is not yet complete", params.ID), nil), nil
		}
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, fmt.Sprintf("Unknown task: %s", params.ID), nil), nil
	}
	return jsonrpc.NewResultResponse(req.ID, w)
}

func (e *Engine) handleTasksList(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	list := e.tasks.List(sess.ID())
	return jsonrpc.NewResultResponse(req.ID, &mcp.TaskListResult{Tasks: list})
}

func (e *Engine) handleTasksCancel(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.TaskGetRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	w, err := e.tasks.Cancel(params.ID)
	if err != nil {
		if errors.Is(err, tasks.ErrTerminal) {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error(), nil), nil
		}
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, fmt.Sprintf("Unknown task: %s", params.ID), nil), nil
	}
	return jsonrpc.NewResultResponse(req.ID, w)
}
