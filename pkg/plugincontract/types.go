// Package plugincontract defines the contract types exchanged between
// the remote gateway and out-of-process plugin handlers.
package plugincontract

// ErrorKindMissingArgs marks an argument shortfall reported by a plugin
// handler. The gateway translates it into its uniform
// wrong-parameter-count fault.
const ErrorKindMissingArgs = "missingArgs"

// InvocationRequest is the payload sent from the gateway to a plugin
// handler.
type InvocationRequest struct {
	RequestID string   `json:"requestId"`
	Plugin    string   `json:"plugin"`
	Method    string   `json:"method"`
	Args      []any    `json:"args"`
	User      string   `json:"user,omitempty"`
	Groups    []string `json:"groups,omitempty"`
}

// InvocationResponse is the payload returned from a plugin handler.
// Exactly one of Result and Error is meaningful.
type InvocationResponse struct {
	Result any              `json:"result,omitempty"`
	Error  *InvocationError `json:"error,omitempty"`
}

// InvocationError is a structured plugin failure.
type InvocationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// FileRef identifies a stored file-kind value returned by a method. The
// gateway's file transformer turns it into a wire-ready download URL.
type FileRef struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType,omitempty"`
}
