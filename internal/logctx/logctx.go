// Package logctx enriches slog records with request-scoped attributes carried
// in a context.Context. Transports attach HTTP/stdio framing data, the engine
// attaches RPC and capability data, and the Handler folds whatever is present
// into each record.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps another slog.Handler and appends context-carried groups.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if cd, ok := ctx.Value(connDataKey{}).(*ConnData); ok {
		r.AddAttrs(slog.Group("conn",
			slog.String("transport", cd.Transport),
			slog.String("client_id", cd.ClientID),
			slog.String("remote_addr", cd.RemoteAddr),
		))
	}

	if md, ok := ctx.Value(rpcDataKey{}).(*RPCData); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", md.Method),
			slog.String("id", md.ID),
			slog.String("type", md.Type),
		))
	}

	if cd, ok := ctx.Value(capDataKey{}).(*CapabilityData); ok {
		r.AddAttrs(slog.Group("capability",
			slog.String("kind", cd.Kind),
			slog.String("id", cd.ID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type connDataKey struct{}

// ConnData identifies the transport connection a record belongs to.
type ConnData struct {
	Transport  string
	ClientID   string
	RemoteAddr string
}

func WithConnData(ctx context.Context, data *ConnData) context.Context {
	return context.WithValue(ctx, connDataKey{}, data)
}

type rpcDataKey struct{}

// RPCData identifies the JSON-RPC message being processed.
type RPCData struct {
	Method string
	ID     string
	Type   string
}

func WithRPCData(ctx context.Context, data *RPCData) context.Context {
	return context.WithValue(ctx, rpcDataKey{}, data)
}

type capDataKey struct{}

// CapabilityData identifies the capability a dispatch resolved to.
type CapabilityData struct {
	Kind string // "tool", "resource", or "prompt"
	ID   string
}

func WithCapabilityData(ctx context.Context, data *CapabilityData) context.Context {
	return context.WithValue(ctx, capDataKey{}, data)
}
