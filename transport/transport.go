// Package transport defines the contract shared by the wire adapters and the
// per-client connection bookkeeping they build on. A transport frames
// inbound JSON-RPC messages, hands them to the engine, and delivers outbound
// messages with per-client FIFO ordering.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrBroadcastUnsupported is returned by request/response transports
	// that have no server-push channel.
	ErrBroadcastUnsupported = errors.New("broadcast not supported")
	// ErrClientNotFound is returned when the client id is not attached.
	ErrClientNotFound = errors.New("client not found")
	// ErrClientGone is returned by sends after a client has been evicted.
	ErrClientGone = errors.New("client connection closed")
)

// Transport is the common contract every wire adapter exports.
type Transport interface {
	// Send delivers one message to one attached client.
	Send(clientID string, msg []byte) error
	// Broadcast delivers one message to every attached client.
	Broadcast(msg []byte) error
	// Close terminates one client's connection.
	Close(clientID string) error
	// Shutdown terminates all clients and stops the transport.
	Shutdown(ctx context.Context) error
}
