package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcprelay/mcprelay/capability"
	"github.com/mcprelay/mcprelay/internal/jsonrpc"
	"github.com/mcprelay/mcprelay/request"
)

// MethodCall is the view of an inbound request handed to a handler module.
// Method is canonical (the "mcp/" prefix already stripped).
type MethodCall struct {
	Method  string
	Params  json.RawMessage
	Context *request.Context
}

// MethodResult is a handler module's verdict on one call. Exactly one of
// Result, Stream, or Err is meaningful.
type MethodResult struct {
	// Result is the reply value for a synchronous method.
	Result any
	// Stream, when non-nil and the request context is flagged streaming,
	// directs the engine to run a streaming task with this function.
	Stream capability.StreamFunc
	// Err reports a handler-level failure.
	Err *capability.Error
}

// HandlerModule pre-empts the engine's default method handling. Returning a
// nil MethodResult falls through to the defaults. The state argument is the
// module's user state; the returned state replaces it. The engine serializes
// every callback, so the module may mutate its state without locking.
type HandlerModule interface {
	HandleMethod(ctx context.Context, call *MethodCall, state any) (*MethodResult, any, error)
}

// callModule runs the handler module under the engine lock and translates
// its verdict. The second return value reports whether the call was handled.
func (e *Engine) callModule(ctx context.Context, method string, req *jsonrpc.Request, rc *request.Context) (*jsonrpc.Response, bool) {
	call := &MethodCall{Method: method, Params: req.Params, Context: rc}

	e.mu.Lock()
	res, newState, err := e.module.HandleMethod(ctx, call, e.userState)
	e.userState = newState
	e.mu.Unlock()

	if err != nil {
		e.log.ErrorContext(ctx, "engine.module.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil), true
	}
	if res == nil {
		return nil, false
	}
	if res.Err != nil {
		return handlerError(req.ID, res.Err), true
	}
	if res.Stream != nil && rc.Streaming() && rc.Conn() != nil {
		var params map[string]any
		if len(req.Params) > 0 {
			// Best effort; a module that produced a stream directive has
			// already validated its own params.
			_ = json.Unmarshal(req.Params, &params)
		}
		return e.startStream(ctx, res.Stream, rc, params, req.ID), true
	}
	return mustResult(req.ID, res.Result), true
}
