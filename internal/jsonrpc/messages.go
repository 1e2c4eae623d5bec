// Package jsonrpc implements the subset of JSON-RPC 2.0 framing used by the
// MCP runtime: single (non-batch) messages, string-or-number request ids, and
// the error code space extended with the MCP lifecycle codes.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the supported JSON-RPC protocol version.
const Version = "2.0"

// AnyMessage is a decoded JSON-RPC message of any shape: request,
// notification, or response. Use Type or the As* accessors to discriminate.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request represents a JSON-RPC request (ID set) or notification (ID nil).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response represents a JSON-RPC response. The id is always emitted, null
// when the request's id was undecodable, per the JSON-RPC convention.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewNotification builds a server-originated notification frame. The params
// value is marshaled eagerly so encoding failures surface at build time.
func NewNotification(method string, params any) (*Request, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal notification params: %w", err)
	}
	return &Request{JSONRPCVersion: Version, Method: method, Params: b}, nil
}

// NewResultResponse builds a successful response carrying result.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPCVersion: Version, Result: b, ID: id}, nil
}

// NewErrorResponse builds an error response with the given code and message.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: Version,
		Error:          &Error{Code: code, Message: message, Data: data},
		ID:             id,
	}
}

// Decode parses raw bytes into an AnyMessage, enforcing version and shape
// validity. Transports translate a Decode failure into a -32700 parse error
// when the bytes are not JSON at all, and -32600 when they are JSON but not a
// valid JSON-RPC message.
func Decode(raw []byte) (*AnyMessage, error) {
	var m AnyMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UnmarshalJSON enforces JSON-RPC 2.0 structural rules: the version tag must
// be "2.0"; a message with a method must not carry result or error; a message
// without a method must carry exactly one of result or error.
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	type raw AnyMessage
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if r.JSONRPCVersion != Version {
		return fmt.Errorf("invalid JSON-RPC version: expected %q, got %q", Version, r.JSONRPCVersion)
	}

	hasMethod := r.Method != ""
	hasResult := len(r.Result) > 0
	hasError := r.Error != nil
	switch {
	case hasMethod && (hasResult || hasError):
		return fmt.Errorf("request message cannot carry result or error")
	case !hasMethod && hasResult && hasError:
		return fmt.Errorf("response message cannot carry both result and error")
	case !hasMethod && !hasResult && !hasError:
		return fmt.Errorf("message must carry a method, result, or error")
	}

	*m = AnyMessage(r)
	return nil
}

// Type returns "request", "notification", or "response". A message with a
// method but no id is a notification and must never be answered.
func (m *AnyMessage) Type() string {
	if m.Method != "" {
		if m.ID.IsNil() {
			return "notification"
		}
		return "request"
	}
	return "response"
}

// IsNotification reports whether the message is an id-less request.
func (m *AnyMessage) IsNotification() bool { return m.Method != "" && m.ID.IsNil() }

// AsRequest returns the message as a Request (request or notification), or
// nil if it is a response.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}
	return &Request{JSONRPCVersion: m.JSONRPCVersion, Method: m.Method, Params: m.Params, ID: m.ID}
}

// AsResponse returns the message as a Response, or nil if it carries a method.
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}
	return &Response{JSONRPCVersion: m.JSONRPCVersion, Result: m.Result, Error: m.Error, ID: m.ID}
}
