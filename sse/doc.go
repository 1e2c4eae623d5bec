// Package sse implements the Server-Sent Events transport pair: clients open
// a GET on the SSE path to receive the server-to-client stream, and POST
// JSON-RPC requests to the sibling message path. The first event on a new
// stream is "connected", carrying the assigned client id; every subsequent
// frame is a "message" event holding one JSON-RPC object.
//
// Responses, progress notifications and broadcasts all flow over the SSE
// channel; the POST side only acknowledges receipt.
package sse
