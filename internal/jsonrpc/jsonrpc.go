// Package jsonrpc implements the JSON-RPC 2.0 envelope the gateway
// speaks on the wire. Dispatch itself is delegated to a Caller; this
// package only decodes requests, encodes responses and maps errors.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/inkwell-cms/remote-gateway/internal/remote"
)

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is the wire error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a wire error.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Request is a single JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

// Response is a single JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id,omitempty"`
}

// Caller dispatches one decoded call.
type Caller interface {
	Call(ctx context.Context, method string, args []any) (any, error)
}

// Process decodes a request body (single or batch), dispatches each call
// through the caller and returns the encoded response body. A nil return
// means every request was a notification and no body is owed.
func Process(ctx context.Context, body []byte, caller Caller) []byte {
	var raws []json.RawMessage
	single := true

	trimmed := firstByte(body)
	if trimmed == '[' {
		if err := json.Unmarshal(body, &raws); err != nil {
			return encode(Response{JSONRPC: "2.0", Error: NewError(CodeParseError, "parse error")})
		}
		single = false
	} else {
		raws = []json.RawMessage{body}
	}

	if len(raws) == 0 {
		return encode(Response{JSONRPC: "2.0", Error: NewError(CodeInvalidRequest, "invalid request")})
	}

	responses := make([]Response, 0, len(raws))
	for _, raw := range raws {
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			responses = append(responses, Response{
				JSONRPC: "2.0",
				Error:   NewError(CodeParseError, "parse error"),
			})
			continue
		}

		if req.JSONRPC != "2.0" {
			responses = append(responses, Response{
				JSONRPC: "2.0",
				Error:   NewError(CodeInvalidRequest, "invalid request"),
				ID:      req.ID,
			})
			continue
		}
		if req.Method == "" {
			responses = append(responses, Response{
				JSONRPC: "2.0",
				Error:   NewError(CodeInvalidRequest, "method required"),
				ID:      req.ID,
			})
			continue
		}

		// Notification: no id means no response expected.
		if req.ID == nil {
			dispatch(ctx, caller, req)
			continue
		}

		result, err := dispatch(ctx, caller, req)
		resp := Response{JSONRPC: "2.0", ID: req.ID}
		if err != nil {
			resp.Error = FromError(err)
		} else {
			resp.Result = result
		}
		responses = append(responses, resp)
	}

	// All requests were notifications.
	if len(responses) == 0 {
		return nil
	}

	if single {
		return encode(responses[0])
	}
	return encode(responses)
}

// dispatch decodes the positional parameters and calls the dispatcher.
func dispatch(ctx context.Context, caller Caller, req Request) (any, error) {
	args := []any{}
	if len(req.Params) > 0 && string(req.Params) != "null" {
		if err := json.Unmarshal(req.Params, &args); err != nil {
			return nil, NewError(CodeInvalidParams, "params must be a positional array")
		}
	}
	return caller.Call(ctx, req.Method, args)
}

// FromError maps a dispatch failure to the wire error object. The
// dispatcher's typed faults keep their codes; anything else becomes an
// internal error.
func FromError(err error) *Error {
	var wireErr *Error
	if errors.As(err, &wireErr) {
		return wireErr
	}
	var remoteErr *remote.RemoteError
	if errors.As(err, &remoteErr) {
		return &Error{Code: remoteErr.Code, Message: remoteErr.Message}
	}
	var accessErr *remote.AccessDeniedError
	if errors.As(err, &accessErr) {
		return &Error{Code: accessErr.Code, Message: accessErr.Message}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

func encode(v any) []byte {
	body, err := json.Marshal(v)
	if err != nil {
		fallback, _ := json.Marshal(Response{
			JSONRPC: "2.0",
			Error:   NewError(CodeInternalError, "failed to encode response"),
		})
		return fallback
	}
	return body
}

// firstByte returns the first non-whitespace byte of the body, or zero.
func firstByte(body []byte) byte {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
