package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcprelay/mcprelay/capability"
	"github.com/mcprelay/mcprelay/internal/jsonrpc"
	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/request"
)

// startStream acknowledges a streaming invocation and launches its task.
// The acknowledgement is written through the connection handle before the
// task starts, which is what guarantees the streaming_started frame precedes
// every progress frame. ProcessRequest then has nothing left to return.
func (e *Engine) startStream(ctx context.Context, fn capability.StreamFunc, rc *request.Context, params map[string]any, id *jsonrpc.RequestID) *jsonrpc.Response {
	ack := mustResult(id, map[string]any{"status": "streaming_started"})
	b, err := json.Marshal(ack)
	if err != nil {
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	if err := rc.Conn().Send(ctx, b); err != nil {
		// The client is already gone; there is nobody to stream to.
		e.log.WarnContext(ctx, "engine.stream.ack.fail", slog.String("err", err.Error()))
		return nil
	}
	e.spawnStream(ctx, fn, rc, params, id)
	return nil
}

// spawnStream launches the background task driving a streaming tool. The
// task owns the client's outbound stream for the duration of the invocation:
// it emits progress notifications and exactly one terminal frame, all through
// the connection handle captured from the request context. Connection loss
// surfaces as an emit failure, which aborts the handler.
func (e *Engine) spawnStream(ctx context.Context, fn capability.StreamFunc, rc *request.Context, params map[string]any, id *jsonrpc.RequestID) {
	// The task outlives the synchronous dispatch; detach from its
	// cancellation but keep the log attributes.
	sctx := context.WithoutCancel(ctx)
	taskID := e.ids.Next()

	e.streams.Add(1)
	go func() {
		defer e.streams.Done()
		log := e.log.With(slog.String("task_id", taskID))
		conn := rc.Conn()

		emit := func(progress any) error {
			note, err := jsonrpc.NewNotification(mcp.ProgressMethod, progress)
			if err != nil {
				return err
			}
			b, err := json.Marshal(note)
			if err != nil {
				return err
			}
			return conn.Send(sctx, b)
		}

		result, err := e.safeStream(sctx, fn, rc, params, emit)

		var terminal *jsonrpc.Response
		if err != nil {
			terminal = handlerError(id, err)
		} else {
			terminal = mustResult(id, map[string]any{"status": "complete", "data": result})
		}

		b, mErr := json.Marshal(terminal)
		if mErr != nil {
			log.ErrorContext(sctx, "engine.stream.terminal.encode_fail", slog.String("err", mErr.Error()))
			return
		}
		if sendErr := conn.Send(sctx, b); sendErr != nil {
			log.WarnContext(sctx, "engine.stream.terminal.drop", slog.String("err", sendErr.Error()))
			return
		}
		log.InfoContext(sctx, "engine.stream.done")
	}()
}

func (e *Engine) safeStream(ctx context.Context, fn capability.StreamFunc, rc *request.Context, params map[string]any, emit capability.EmitFunc) (result any, err error) {
	defer e.trapPanic(ctx, &err)
	return fn(ctx, rc, params, emit)
}
