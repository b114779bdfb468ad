package remote

import "errors"

// Error codes surfaced to the wire protocol layer. CodeInternalError is
// shared by "method does not exist", "wrong parameter count" and plugin
// contract violations; callers distinguish them by message only.
const (
	CodeInternalError = -32603
	CodeAccessDenied  = -32604
)

const (
	msgMethodNotFound      = "Method does not exist"
	msgWrongParameterCount = "Method does not exist - wrong parameter count."
)

// ErrMissingArgument marks an argument shortfall detected while a handler
// is running. Handlers signal it (usually via the Args accessors) and the
// invoker translates it into the uniform wrong-parameter-count fault.
var ErrMissingArgument = errors.New("missing required argument")

// RemoteError is the caller-facing fault for method resolution and
// invocation failures. It is terminal for the current call.
type RemoteError struct {
	Code    int
	Message string
	cause   error
}

// NewRemoteError creates a RemoteError with the given code and message.
func NewRemoteError(code int, message string) *RemoteError {
	return &RemoteError{Code: code, Message: message}
}

// WrapRemoteError creates a RemoteError that records the underlying cause.
func WrapRemoteError(code int, message string, cause error) *RemoteError {
	return &RemoteError{Code: code, Message: message, cause: cause}
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.cause }

// AccessDeniedError is returned when remote access is disabled globally or
// the caller lacks the required identity or group membership.
type AccessDeniedError struct {
	Code    int
	Message string
}

// NewAccessDeniedError creates an AccessDeniedError with code -32604.
func NewAccessDeniedError(message string) *AccessDeniedError {
	return &AccessDeniedError{Code: CodeAccessDenied, Message: message}
}

func (e *AccessDeniedError) Error() string { return e.Message }

func methodNotFound() *RemoteError {
	return NewRemoteError(CodeInternalError, msgMethodNotFound)
}

func wrongParameterCount() *RemoteError {
	return NewRemoteError(CodeInternalError, msgWrongParameterCount)
}
