package engine

import (
	"errors"
	"fmt"

	"github.com/mcpframe/mcp-frame-go/internal/jsonrpc"
)

var (
	// ErrShutdown indicates the server is draining; pending work fails fast.
	ErrShutdown = errors.New("server shutting down")
	// ErrCapabilityUnavailable indicates the client did not declare the
	// capability required by a server-initiated RPC.
	ErrCapabilityUnavailable = errors.New("capability not supported by client")
	// ErrNoRequestContext indicates a context API call outside a handler.
	ErrNoRequestContext = errors.New("no active request context")
	// ErrNoActiveStream indicates no stream is live to carry a
	// server-initiated request for the session.
	ErrNoActiveStream = errors.New("no active stream for session")
)

// RPCError is a tagged protocol error carrying its JSON-RPC surfacing. Handler
// code may return one directly to control the wire response.
type RPCError struct {
	Code    jsonrpc.ErrorCode
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// AsRPCError extracts an *RPCError from an error chain.
func AsRPCError(err error) (*RPCError, bool) {
	var re *RPCError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// InvalidParams builds a -32602 error.
func InvalidParams(format string, a ...any) *RPCError {
	return &RPCError{Code: jsonrpc.ErrorCodeInvalidParams, Message: fmt.Sprintf(format, a...)}
}

// MethodNotFound builds a -32601 error.
func MethodNotFound(method string) *RPCError {
	return &RPCError{Code: jsonrpc.ErrorCodeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", method)}
}

// RateLimited builds a -32000 error with informational retry-after seconds.
func RateLimited(retryAfter float64) *RPCError {
	return &RPCError{
		Code:    jsonrpc.ErrorCodeRateLimited,
		Message: "Rate limit exceeded",
		Data:    map[string]any{"retryAfter": retryAfter},
	}
}

// Unauthorized builds a -32001 error with a sanitized message.
func Unauthorized() *RPCError {
	return &RPCError{Code: jsonrpc.ErrorCodeUnauthorized, Message: "unauthorized"}
}

// ForbiddenScope builds a -32003 error.
func ForbiddenScope() *RPCError {
	return &RPCError{Code: jsonrpc.ErrorCodeForbiddenScope, Message: "forbidden_scope"}
}

// URLElicitationRequired builds a -32042 error instructing the client to send
// the user to an external URL. Handlers raise it from arbitrary depth; the
// dispatch layer surfaces it untouched.
func URLElicitationRequired(url, description string) *RPCError {
	data := map[string]any{"url": url}
	if description != "" {
		data["description"] = description
	}
	return &RPCError{
		Code:    jsonrpc.ErrorCodeURLElicitationRequired,
		Message: "URL elicitation required",
		Data:    data,
	}
}

// paramValidationError builds the -32602 shape for a failed argument check,
// naming the parameter so clients can self-correct.
func paramValidationError(param, expected string, actual any) *RPCError {
	return &RPCError{
		Code:    jsonrpc.ErrorCodeInvalidParams,
		Message: fmt.Sprintf("Invalid type for parameter %q: expected %s, got %T", param, expected, actual),
		Data:    map[string]any{"parameter": param, "expected": expected},
	}
}

// missingParamError reports an absent required parameter along with its schema
// fragment.
func missingParamError(param string, fragment any) *RPCError {
	return &RPCError{
		Code:    jsonrpc.ErrorCodeInvalidParams,
		Message: fmt.Sprintf("Missing required parameter %q", param),
		Data:    map[string]any{"parameter": param, "schema": fragment},
	}
}
