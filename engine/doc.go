// Package engine is the JSON-RPC dispatcher at the center of the runtime.
// It holds the capability catalog copied from the registry, enforces the
// initialize-before-use gate per client, routes method calls to handlers,
// and orchestrates streaming tool executions as background tasks that write
// progress frames through the request's connection handle.
//
// The engine is transport-agnostic: every wire adapter decodes one message,
// builds a request.Context, and calls ProcessRequest. Non-streaming methods
// return their response synchronously; streaming dispatch writes an
// immediate acknowledgement through the connection handle, returns nil, and
// leaves a spawned task to drive the handler.
package engine
