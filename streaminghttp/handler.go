package streaminghttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
	"github.com/mcprelay/mcprelay/engine"
	"github.com/mcprelay/mcprelay/internal/jsonrpc"
	"github.com/mcprelay/mcprelay/internal/logctx"
	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/request"
	"github.com/mcprelay/mcprelay/transport"
)

var (
	jsonMediaType    = contenttype.NewMediaType("application/json")
	ndjsonMediaType  = contenttype.NewMediaType("application/x-ndjson")
	ndjsonMediaTypes = []contenttype.MediaType{ndjsonMediaType}
)

// clientIDHeader carries the stable client identifier. When absent, the
// handler generates one and echoes it back.
const clientIDHeader = "X-Client-Id"

// maxBodyBytes bounds one POST body.
const maxBodyBytes = 4 << 20

// Handler serves the plain HTTP and NDJSON transports. It implements both
// http.Handler and transport.Transport; the latter's Send/Close operate on
// in-flight NDJSON streams, which are the only connections this transport
// keeps open. Each stream is keyed by "<client id>/<uuid>", a key generated
// per request and not exposed to callers, so a bare client id matches no
// stream.
type Handler struct {
	eng *engine.Engine
	log *slog.Logger

	path       string
	streamPath string
	mux        *http.ServeMux

	streams *transport.Table
}

var _ http.Handler = (*Handler)(nil)
var _ transport.Transport = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithPath sets the plain JSON-RPC endpoint path. Default "/mcp".
func WithPath(p string) Option { return func(h *Handler) { h.path = p } }

// WithStreamPath sets the NDJSON endpoint path. Default "/mcp/stream". The
// stream path always negotiates; the plain path also upgrades to NDJSON when
// the Accept header asks for it.
func WithStreamPath(p string) Option { return func(h *Handler) { h.streamPath = p } }

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// New builds the HTTP handler over the given engine.
func New(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{
		eng:        eng,
		log:        slog.Default(),
		path:       "/mcp",
		streamPath: "/mcp/stream",
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = slog.New(logctx.Handler{Handler: h.log.Handler()})
	h.streams = transport.NewTable(h.log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+h.path, h.handlePost)
	mux.HandleFunc("POST "+h.streamPath, h.handlePost)
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// writeEnvelope writes a JSON-RPC response body with the given HTTP status.
func (h *Handler) writeEnvelope(w http.ResponseWriter, status int, res *jsonrpc.Response) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		h.log.Error("http.response.write.fail", slog.String("err", err.Error()))
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	clientID := r.Header.Get(clientIDHeader)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	w.Header().Set(clientIDHeader, clientID)

	ctx = logctx.WithConnData(ctx, &logctx.ConnData{
		Transport:  "http",
		ClientID:   clientID,
		RemoteAddr: r.RemoteAddr,
	})
	h.log.InfoContext(ctx, "http.post.start")

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		h.log.WarnContext(ctx, "http.content_type.unsupported")
		h.writeEnvelope(w, http.StatusUnsupportedMediaType,
			jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeUnauthorized, "content-type must be application/json", nil))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.log.WarnContext(ctx, "http.body.read.fail", slog.String("err", err.Error()))
		h.writeEnvelope(w, http.StatusBadRequest,
			jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "Parse error", nil))
		return
	}

	msg, errRes := jsonrpc.Parse(body)
	if errRes != nil {
		h.log.WarnContext(ctx, "http.parse.fail")
		h.writeEnvelope(w, http.StatusBadRequest, errRes)
		return
	}

	ctx = logctx.WithRPCData(ctx, &logctx.RPCData{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})

	if h.wantsNDJSON(r, msg) {
		h.serveNDJSON(ctx, w, r, msg, clientID, start)
		return
	}

	rc := request.NewContext(
		request.WithClientID(clientID),
		request.WithRequestID(msg.ID.String()),
		request.WithClientCapabilities(h.eng.ClientCapabilities(clientID)),
	)

	res := h.eng.ProcessRequest(ctx, msg, rc)
	if res == nil {
		// Notification: accepted, nothing to return.
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "http.notification.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return
	}

	h.writeEnvelope(w, http.StatusOK, res)
	h.log.InfoContext(ctx, "http.post.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
}

// wantsNDJSON reports whether the request negotiates the chunked streaming
// mode: an Accept header naming application/x-ndjson on a tool execution
// request. Anything else falls through to single-response mode.
func (h *Handler) wantsNDJSON(r *http.Request, msg *jsonrpc.AnyMessage) bool {
	if msg.IsNotification() || msg.Method == "" {
		return false
	}
	if mcp.CanonicalMethod(msg.Method) != mcp.ToolsExecuteMethod {
		return false
	}
	if r.Header.Get("Accept") == "" {
		return false
	}
	_, _, err := contenttype.GetAcceptableMediaType(r, ndjsonMediaTypes)
	return err == nil
}

// ndjsonWriter frames outbound messages as newline-delimited JSON over a
// chunked response. Headers are committed on the first write, so a dispatch
// that never streams can still fall back to a plain response. A write of a
// response frame (one carrying an id) after the acknowledgement marks the
// stream terminal.
type ndjsonWriter struct {
	w  http.ResponseWriter
	f  http.Flusher
	mu sync.Mutex

	ctx      context.Context
	headers  sync.Once
	sawAck   bool
	terminal chan struct{}
	termOnce sync.Once
}

func (nw *ndjsonWriter) writeFrame(msg []byte) error {
	if nw.ctx.Err() != nil {
		return nw.ctx.Err()
	}
	nw.mu.Lock()
	defer nw.mu.Unlock()

	nw.headers.Do(func() {
		nw.w.Header().Set("Content-Type", ndjsonMediaType.String())
		nw.w.Header().Set("Cache-Control", "no-cache")
		nw.w.Header().Set("Connection", "keep-alive")
		nw.w.Header().Set("X-Accel-Buffering", "no")
		nw.w.WriteHeader(http.StatusOK)
	})

	if _, err := nw.w.Write(append(msg, '\n')); err != nil {
		return err
	}
	nw.f.Flush()

	// Terminal detection: the second id-carrying frame ends the stream (the
	// first is the streaming_started acknowledgement).
	var probe jsonrpc.AnyMessage
	if err := json.Unmarshal(msg, &probe); err == nil && probe.Type() == "response" {
		if nw.sawAck {
			nw.termOnce.Do(func() { close(nw.terminal) })
		}
		nw.sawAck = true
	}
	return nil
}

func (h *Handler) serveNDJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, msg *jsonrpc.AnyMessage, clientID string, start time.Time) {
	f, ok := w.(http.Flusher)
	if !ok {
		h.log.ErrorContext(ctx, "http.flusher.missing")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	nw := &ndjsonWriter{w: w, f: f, ctx: r.Context(), terminal: make(chan struct{})}

	streamID := clientID + "/" + uuid.NewString()
	conn := h.streams.Attach(streamID, nw.writeFrame)
	defer h.streams.Evict(streamID)

	rc := request.NewContext(
		request.WithConn(conn),
		request.WithClientID(clientID),
		request.WithRequestID(msg.ID.String()),
		request.WithClientCapabilities(h.eng.ClientCapabilities(clientID)),
		request.WithStreaming(true),
	)

	res := h.eng.ProcessRequest(ctx, msg, rc)
	if res != nil {
		// The engine answered synchronously: the tool does not stream, or
		// dispatch failed before streaming began. Fall back to plain mode.
		h.writeEnvelope(w, http.StatusOK, res)
		h.log.InfoContext(ctx, "http.post.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return
	}

	h.log.InfoContext(ctx, "ndjson.stream.start")

	select {
	case <-nw.terminal:
		h.log.InfoContext(ctx, "ndjson.stream.end", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	case <-r.Context().Done():
		h.log.InfoContext(ctx, "ndjson.stream.abort")
	case <-conn.Done():
		h.log.WarnContext(ctx, "ndjson.stream.evicted")
	}
}

// Send delivers a message to the in-flight NDJSON stream with the given
// stream key; a bare client id yields transport.ErrClientNotFound.
func (h *Handler) Send(clientID string, msg []byte) error {
	return h.streams.Send(clientID, msg)
}

// Broadcast is unsupported on the request/response transport.
func (h *Handler) Broadcast(msg []byte) error {
	return transport.ErrBroadcastUnsupported
}

// Close terminates the in-flight NDJSON stream with the given stream key; a
// bare client id yields transport.ErrClientNotFound.
func (h *Handler) Close(clientID string) error {
	if _, ok := h.streams.Get(clientID); !ok {
		return transport.ErrClientNotFound
	}
	h.streams.Evict(clientID)
	return nil
}

// Shutdown terminates every in-flight stream.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.streams.Shutdown()
	return nil
}
