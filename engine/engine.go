package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mcprelay/mcprelay/internal/jsonrpc"
	"github.com/mcprelay/mcprelay/internal/logctx"
	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/registry"
	"github.com/mcprelay/mcprelay/request"
)

// Engine dispatches JSON-RPC requests against the capability catalog. One
// engine serves every transport; per-client lifecycle state (the initialize
// gate and the capability snapshot) is keyed by client id, while the catalog
// and configuration are server-global.
type Engine struct {
	log          *slog.Logger
	info         mcp.ServerInfo
	modulePrefix string
	module       HandlerModule
	ids          *request.IDGenerator

	// catalog, copied from the registry at construction
	tools     map[string]registry.ToolEntry
	toolOrder []string
	resources map[string]registry.ResourceEntry
	resOrder  []string
	prompts   map[string]registry.PromptEntry
	prmOrder  []string

	// per-client lifecycle state and the handler-module user state, all
	// mutated under one lock so module callbacks stay single-threaded
	mu        sync.Mutex
	clients   map[string]*clientState
	userState any

	streams sync.WaitGroup
}

type clientState struct {
	initialized bool
	caps        mcp.ClientCapabilities
}

// Option configures an Engine.
type Option func(*Engine)

// WithServerInfo sets the identity advertised by initialize.
func WithServerInfo(name, version string) Option {
	return func(e *Engine) { e.info = mcp.ServerInfo{Name: name, Version: version} }
}

// WithModulePrefix sets the prefix reported to discovery callers. The engine
// itself only echoes it; filtering happens in the registry.
func WithModulePrefix(prefix string) Option {
	return func(e *Engine) { e.modulePrefix = prefix }
}

// WithHandlerModule installs a user module whose callbacks pre-empt the
// default method handling.
func WithHandlerModule(m HandlerModule, initialState any) Option {
	return func(e *Engine) {
		e.module = m
		e.userState = initialState
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New builds an Engine over a snapshot of the registry's current catalog.
// Capabilities registered after construction are not visible to the engine.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		log:       slog.Default(),
		info:      mcp.ServerInfo{Name: "mcprelay", Version: "0.0.0"},
		ids:       request.NewIDGenerator(),
		tools:     make(map[string]registry.ToolEntry),
		resources: make(map[string]registry.ResourceEntry),
		prompts:   make(map[string]registry.PromptEntry),
		clients:   make(map[string]*clientState),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = slog.New(logctx.Handler{Handler: e.log.Handler()})

	if reg != nil {
		for _, t := range reg.Tools() {
			e.tools[t.Descriptor.Name] = t
			e.toolOrder = append(e.toolOrder, t.Descriptor.Name)
		}
		for _, r := range reg.Resources() {
			e.resources[r.Descriptor.URI] = r
			e.resOrder = append(e.resOrder, r.Descriptor.URI)
		}
		for _, p := range reg.Prompts() {
			e.prompts[p.Descriptor.Name] = p
			e.prmOrder = append(e.prmOrder, p.Descriptor.Name)
		}
	}
	return e
}

// ServerInfo returns the advertised identity.
func (e *Engine) ServerInfo() mcp.ServerInfo { return e.info }

// ModulePrefix returns the discovery prefix this server was configured with.
func (e *Engine) ModulePrefix() string { return e.modulePrefix }

// ClientCapabilities returns the capability snapshot a client presented at
// initialize, or nil before then. Transports use it when building request
// contexts.
func (e *Engine) ClientCapabilities(clientID string) mcp.ClientCapabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cs, ok := e.clients[clientID]; ok {
		return cs.caps
	}
	return nil
}

// Initialized reports whether a client has completed initialize.
func (e *Engine) Initialized(clientID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.clients[clientID]
	return ok && cs.initialized
}

// Drain blocks until every in-flight streaming task has finished, or the
// context expires. Transports call it before tearing down a connection whose
// outbound side is still writable, so terminal frames are not lost.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForgetClient drops a client's lifecycle state. Transports call this when a
// connection is torn down for good.
func (e *Engine) ForgetClient(clientID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.clients, clientID)
}

// ProcessRequest dispatches one decoded message. It returns the response to
// write, or nil when nothing must be written (notifications, client
// responses, and streaming dispatch). Streaming dispatch writes the
// streaming_started acknowledgement through the request's connection handle
// itself and returns nil, while a spawned task continues on that handle.
func (e *Engine) ProcessRequest(ctx context.Context, msg *jsonrpc.AnyMessage, rc *request.Context) *jsonrpc.Response {
	if msg == nil {
		return nil
	}

	start := time.Now()
	ctx = logctx.WithRPCData(ctx, &logctx.RPCData{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})

	if msg.Method == "" {
		// A client-originated response; this runtime issues no client
		// requests, so there is nothing to correlate it with.
		e.log.DebugContext(ctx, "engine.response.ignored")
		return nil
	}

	if msg.IsNotification() {
		// Id-less messages are notifications: no response, ever.
		e.log.DebugContext(ctx, "engine.notification.drop", slog.String("method", msg.Method))
		return nil
	}

	req := msg.AsRequest()
	method := mcp.CanonicalMethod(req.Method)

	if method != mcp.InitializeMethod && !e.Initialized(rc.ClientID()) {
		e.log.InfoContext(ctx, "engine.gate.reject", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeNotInitialized, "Server not initialized", nil)
	}

	if e.module != nil {
		if res, handled := e.callModule(ctx, method, req, rc); handled {
			e.log.InfoContext(ctx, "engine.module.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return res
		}
	}

	var res *jsonrpc.Response
	switch method {
	case mcp.InitializeMethod:
		res = e.handleInitialize(ctx, req, rc)
	case mcp.ResourcesListMethod:
		res = e.handleResourcesList(ctx, req)
	case mcp.ResourcesGetMethod:
		res = e.handleResourcesGet(ctx, req, rc)
	case mcp.PromptsListMethod:
		res = e.handlePromptsList(ctx, req)
	case mcp.PromptsGetMethod:
		res = e.handlePromptsGet(ctx, req, rc)
	case mcp.ToolsListMethod:
		res = e.handleToolsList(ctx, req)
	case mcp.ToolsExecuteMethod:
		res = e.handleToolsExecute(ctx, req, rc)
	default:
		res = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "Method not found: "+req.Method, nil)
	}

	e.log.InfoContext(ctx, "engine.dispatch.done", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return res
}

func (e *Engine) handleInitialize(ctx context.Context, req *jsonrpc.Request, rc *request.Context) *jsonrpc.Response {
	var params struct {
		Capabilities mcp.ClientCapabilities `json:"capabilities"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
		}
	}

	e.mu.Lock()
	e.clients[rc.ClientID()] = &clientState{initialized: true, caps: params.Capabilities}
	e.mu.Unlock()

	e.log.InfoContext(ctx, "engine.initialize.ok", slog.String("client_id", rc.ClientID()))

	result := mcp.InitializeResult{
		ServerInfo:      e.info,
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    mcp.DefaultServerCapabilities(),
	}
	res, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	return res
}
