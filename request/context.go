// Package request carries the per-request value bundle handed to capability
// handlers and the identifier generator the engine uses to name streaming
// tasks.
package request

import (
	"context"
	"sync"

	"github.com/mcprelay/mcprelay/mcp"
)

// Conn is the outbound half of a client connection. Streaming emitters write
// progress and terminal frames through a Conn; they never mutate the Context
// that carried it. Send fails once the client is evicted, which is the signal
// for an emitter task to stop.
type Conn interface {
	Send(ctx context.Context, msg []byte) error
	Close() error
}

// Context is the immutable per-request value bundle. Identity fields are
// fixed at construction; only the auxiliary custom-data map is writable, and
// writes there are synchronized so a streaming task and its parent may share
// the value.
type Context struct {
	conn       Conn
	requestID  string
	clientID   string
	clientCaps mcp.ClientCapabilities
	streaming  bool

	mu   sync.RWMutex
	data map[string]any
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithConn attaches the connection handle used for streaming writes.
func WithConn(c Conn) Option { return func(rc *Context) { rc.conn = c } }

// WithRequestID records the JSON-RPC id of the originating request.
func WithRequestID(id string) Option { return func(rc *Context) { rc.requestID = id } }

// WithClientID records the stable transport-level client identifier.
func WithClientID(id string) Option { return func(rc *Context) { rc.clientID = id } }

// WithClientCapabilities snapshots the capabilities the client presented at
// initialize.
func WithClientCapabilities(caps mcp.ClientCapabilities) Option {
	return func(rc *Context) { rc.clientCaps = caps }
}

// WithStreaming flags the request as eligible for streaming dispatch.
func WithStreaming(streaming bool) Option { return func(rc *Context) { rc.streaming = streaming } }

// WithData seeds the custom-data map.
func WithData(key string, val any) Option {
	return func(rc *Context) { rc.data[key] = val }
}

// NewContext builds a Context. All fields default to empty.
func NewContext(opts ...Option) *Context {
	rc := &Context{data: make(map[string]any)}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Conn returns the connection handle, or nil for transports that do not
// support server-initiated writes.
func (rc *Context) Conn() Conn { return rc.conn }

// RequestID returns the id of the originating request ("" for notifications).
func (rc *Context) RequestID() string { return rc.requestID }

// ClientID returns the stable client identifier assigned by the transport.
func (rc *Context) ClientID() string { return rc.clientID }

// ClientCapabilities returns the capability snapshot taken at initialize.
// The map must be treated as read-only.
func (rc *Context) ClientCapabilities() mcp.ClientCapabilities { return rc.clientCaps }

// Streaming reports whether the transport flagged this request as streaming.
func (rc *Context) Streaming() bool { return rc.streaming }

// Put stores a custom-data value.
func (rc *Context) Put(key string, val any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.data[key] = val
}

// Get reads a custom-data value, returning def when the key is absent.
func (rc *Context) Get(key string, def any) any {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if v, ok := rc.data[key]; ok {
		return v
	}
	return def
}
