package capability

import (
	"errors"
	"fmt"
)

// Kind classifies a handler failure. The engine maps kinds onto JSON-RPC
// error codes; handlers never pick codes directly.
type Kind string

const (
	// KindNotFound signals a lookup miss inside the handler's own data.
	KindNotFound Kind = "not_found"
	// KindInvalidParams signals that the supplied parameters are unusable.
	KindInvalidParams Kind = "invalid_params"
	// KindInternal signals an unexpected handler failure.
	KindInternal Kind = "internal"
	// KindCustomMessage carries a handler-authored message verbatim to the
	// client as an internal error.
	KindCustomMessage Kind = "custom_message"
)

// Error is the typed failure a handler returns. Message is optional for
// every kind except KindCustomMessage.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// NotFound builds a KindNotFound failure.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// InvalidParams builds a KindInvalidParams failure.
func InvalidParams(msg string) *Error { return &Error{Kind: KindInvalidParams, Message: msg} }

// Internalf builds a KindInternal failure.
func Internalf(format string, a ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, a...)}
}

// Message builds a KindCustomMessage failure whose text reaches the client
// verbatim.
func Message(msg string) *Error { return &Error{Kind: KindCustomMessage, Message: msg} }

// AsError extracts a *Error from err, or wraps err as KindInternal.
func AsError(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Kind: KindInternal, Message: err.Error()}
}
