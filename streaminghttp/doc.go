// Package streaminghttp implements the HTTP wire adapters sharing one
// handler: plain request/response JSON-RPC over POST, and chunked NDJSON
// streaming selected by content negotiation.
//
// Every POST carries exactly one JSON-RPC message. When the client's Accept
// header includes application/x-ndjson and the call is a streaming-capable
// tool execution, the response is a chunked application/x-ndjson body with
// one JSON object per line: a streaming_started acknowledgement, zero or
// more progress notifications, and a terminal complete or error frame.
// Otherwise the handler answers in single-response mode: engine-level errors
// travel as HTTP 200 with a JSON-RPC error body, per JSON-RPC convention.
package streaminghttp
