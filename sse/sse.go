package sse

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"

	"github.com/mcprelay/mcprelay/engine"
	"github.com/mcprelay/mcprelay/internal/jsonrpc"
	"github.com/mcprelay/mcprelay/internal/logctx"
	"github.com/mcprelay/mcprelay/request"
	"github.com/mcprelay/mcprelay/transport"
)

// clientIDHeader carries the stable client identifier on the POST side. The
// client_id query parameter is accepted as an alternative.
const clientIDHeader = "X-Client-Id"

// maxBodyBytes bounds one POST body.
const maxBodyBytes = 4 << 20

// Transport is the SSE wire adapter. It implements http.Handler (mount it at
// the root covering both configured paths) and transport.Transport.
type Transport struct {
	eng *engine.Engine
	log *slog.Logger

	ssePath     string
	messagePath string
	mux         *http.ServeMux

	table *transport.Table
}

var _ http.Handler = (*Transport)(nil)
var _ transport.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithSSEPath sets the event-stream path. Default "/sse".
func WithSSEPath(p string) Option { return func(t *Transport) { t.ssePath = p } }

// WithMessagePath sets the sibling POST path. Default "/sse/message".
func WithMessagePath(p string) Option { return func(t *Transport) { t.messagePath = p } }

// WithLogger sets the transport logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// New builds an SSE transport over the given engine.
func New(eng *engine.Engine, opts ...Option) *Transport {
	t := &Transport{
		eng:         eng,
		log:         slog.Default(),
		ssePath:     "/sse",
		messagePath: "/sse/message",
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = slog.New(logctx.Handler{Handler: t.log.Handler()})
	t.table = transport.NewTable(t.log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+t.ssePath, t.handleSSE)
	mux.HandleFunc("POST "+t.messagePath, t.handleMessage)
	t.mux = mux
	return t
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.mux.ServeHTTP(w, r)
}

// handleSSE upgrades the GET into an event stream, announces the client id,
// and keeps the connection open until either side closes.
func (t *Transport) handleSSE(w http.ResponseWriter, r *http.Request) {
	clientID := clientIDFrom(r)
	ctx := logctx.WithConnData(r.Context(), &logctx.ConnData{
		Transport:  "sse",
		ClientID:   clientID,
		RemoteAddr: r.RemoteAddr,
	})

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		t.log.ErrorContext(ctx, "sse.upgrade.fail", slog.String("err", err.Error()))
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}

	connected, err := json.Marshal(map[string]string{"client_id": clientID})
	if err != nil {
		t.log.ErrorContext(ctx, "sse.connected.encode_fail", slog.String("err", err.Error()))
		return
	}
	if err := sendEvent(sess, "connected", connected); err != nil {
		t.log.WarnContext(ctx, "sse.connected.write_fail", slog.String("err", err.Error()))
		return
	}

	// Session writes happen only on the table's per-client writer goroutine,
	// plus this one-time connected event above, so no extra locking is
	// needed; a mutex still guards against send/flush interleaving if the
	// session is ever shared.
	var sendMu sync.Mutex
	conn := t.table.Attach(clientID, func(msg []byte) error {
		sendMu.Lock()
		defer sendMu.Unlock()
		return sendEvent(sess, "message", msg)
	})

	t.log.InfoContext(ctx, "sse.stream.start")
	start := time.Now()

	select {
	case <-r.Context().Done():
	case <-conn.Done():
	}
	t.table.Evict(clientID)

	t.log.InfoContext(ctx, "sse.stream.end", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
}

// handleMessage accepts one JSON-RPC message for an attached client. The
// response travels over the client's SSE stream; the POST only acknowledges.
func (t *Transport) handleMessage(w http.ResponseWriter, r *http.Request) {
	clientID := clientIDFrom(r)
	ctx := logctx.WithConnData(r.Context(), &logctx.ConnData{
		Transport:  "sse",
		ClientID:   clientID,
		RemoteAddr: r.RemoteAddr,
	})

	conn, ok := t.table.Get(clientID)
	if !ok {
		t.log.InfoContext(ctx, "sse.message.no_stream")
		http.Error(w, "no event stream for client", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		t.log.WarnContext(ctx, "sse.body.read.fail", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	msg, errRes := jsonrpc.Parse(body)
	if errRes != nil {
		// Protocol errors flow over the stream like any other response.
		t.send(ctx, conn, errRes)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	ctx = logctx.WithRPCData(ctx, &logctx.RPCData{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})

	rc := request.NewContext(
		request.WithConn(conn),
		request.WithClientID(clientID),
		request.WithRequestID(msg.ID.String()),
		request.WithClientCapabilities(t.eng.ClientCapabilities(clientID)),
		request.WithStreaming(true),
	)

	if res := t.eng.ProcessRequest(ctx, msg, rc); res != nil {
		t.send(ctx, conn, res)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (t *Transport) send(ctx context.Context, conn *transport.Client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		t.log.ErrorContext(ctx, "sse.encode.fail", slog.String("err", err.Error()))
		return
	}
	if err := conn.Send(ctx, b); err != nil {
		t.log.WarnContext(ctx, "sse.send.fail", slog.String("err", err.Error()))
	}
}

// sendEvent frames and flushes one SSE event.
func sendEvent(sess *sse.Session, eventType string, data []byte) error {
	msg := &sse.Message{Type: sse.Type(eventType)}
	msg.AppendData(string(data))
	if err := sess.Send(msg); err != nil {
		return err
	}
	return sess.Flush()
}

func clientIDFrom(r *http.Request) string {
	if id := r.Header.Get(clientIDHeader); id != "" {
		return id
	}
	if id := r.URL.Query().Get("client_id"); id != "" {
		return id
	}
	return uuid.NewString()
}

// Send delivers one message to one attached client's stream.
func (t *Transport) Send(clientID string, msg []byte) error {
	return t.table.Send(clientID, msg)
}

// Broadcast delivers one message to every attached client.
func (t *Transport) Broadcast(msg []byte) error {
	return t.table.Broadcast(msg)
}

// Close terminates one client's stream.
func (t *Transport) Close(clientID string) error {
	if _, ok := t.table.Get(clientID); !ok {
		return transport.ErrClientNotFound
	}
	t.table.Evict(clientID)
	return nil
}

// Shutdown terminates every stream.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.table.Shutdown()
	return nil
}
