package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mcprelay/mcprelay/engine"
	"github.com/mcprelay/mcprelay/internal/jsonrpc"
	"github.com/mcprelay/mcprelay/internal/logctx"
	"github.com/mcprelay/mcprelay/request"
	"github.com/mcprelay/mcprelay/transport"
)

// maxLineBytes bounds a single inbound frame. Multi-line JSON is rejected by
// construction: a message must fit on one line.
const maxLineBytes = 1 << 20

// drainTimeout bounds how long Serve waits for in-flight streaming tasks
// after end of input before tearing the connection down.
const drainTimeout = 10 * time.Second

// Transport is the stdio wire adapter. Construct with New, then run Serve;
// Serve returns after end of input. Context cancellation and Shutdown are
// observed when the next inbound line arrives (in command mode, cancellation
// also kills the command, which ends its output).
type Transport struct {
	eng *engine.Engine
	log *slog.Logger

	in  io.Reader
	out io.Writer

	cmdName string
	cmdArgs []string

	clientID string

	mu      sync.Mutex
	conn    *conn
	started bool
	stop    context.CancelFunc
}

var _ transport.Transport = (*Transport)(nil)

// conn is the single outbound channel of a stdio transport. Writes are
// synchronous and serialized by the mutex, which is what preserves FIFO
// ordering between the dispatch loop and streaming emitter tasks.
type conn struct {
	mu   sync.Mutex
	w    io.Writer
	gone chan struct{}
	once sync.Once
}

var _ request.Conn = (*conn)(nil)

func (c *conn) Send(ctx context.Context, msg []byte) error {
	select {
	case <-c.gone:
		return transport.ErrClientGone
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(append(msg, '\n')); err != nil {
		c.close()
		return err
	}
	if f, ok := c.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (c *conn) Close() error {
	c.close()
	return nil
}

func (c *conn) close() { c.once.Do(func() { close(c.gone) }) }

// Option configures a Transport.
type Option func(*Transport)

// WithStreams binds the transport to the given reader/writer pair instead of
// os.Stdin and os.Stdout.
func WithStreams(r io.Reader, w io.Writer) Option {
	return func(t *Transport) { t.in, t.out = r, w }
}

// WithCommand spawns the named command and binds the transport to its
// standard streams. The transport stops when the command exits.
func WithCommand(name string, args ...string) Option {
	return func(t *Transport) { t.cmdName, t.cmdArgs = name, args }
}

// WithLogger sets the transport logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// WithClientID overrides the stable client identifier presented to the
// engine. Defaults to "stdio".
func WithClientID(id string) Option {
	return func(t *Transport) { t.clientID = id }
}

// New builds a stdio transport over the given engine.
func New(eng *engine.Engine, opts ...Option) *Transport {
	t := &Transport{
		eng:      eng,
		log:      slog.Default(),
		in:       os.Stdin,
		out:      os.Stdout,
		clientID: "stdio",
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = slog.New(logctx.Handler{Handler: t.log.Handler()})
	return t
}

// Serve runs the read loop until end of input. Context cancellation and
// Shutdown stop the loop once the blocked read returns a line or end of
// input. It is safe to call at most once.
func (t *Transport) Serve(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("stdio transport already started")
	}
	t.started = true
	ctx, t.stop = context.WithCancel(ctx)
	t.mu.Unlock()
	defer t.stop()

	in, out := t.in, t.out
	var cmd *exec.Cmd
	if t.cmdName != "" {
		cmd = exec.CommandContext(ctx, t.cmdName, t.cmdArgs...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("bind command stdin: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("bind command stdout: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("spawn %s: %w", t.cmdName, err)
		}
		in, out = stdout, stdin
		t.log.Info("stdio.command.start", slog.String("command", t.cmdName), slog.Int("pid", cmd.Process.Pid))
	}

	c := &conn{w: out, gone: make(chan struct{})}
	t.mu.Lock()
	t.conn = c
	t.mu.Unlock()
	defer t.eng.ForgetClient(t.clientID)

	ctx = logctx.WithConnData(ctx, &logctx.ConnData{Transport: "stdio", ClientID: t.clientID})

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		t.dispatch(ctx, c, line)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) && ctx.Err() == nil {
		t.log.Warn("stdio.read.fail", slog.String("err", err.Error()))
	}

	// Input is done; give in-flight streaming tasks a bounded chance to
	// finish their terminal frames before the writer goes away.
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	if err := t.eng.Drain(drainCtx); err != nil {
		t.log.Warn("stdio.drain.timeout", slog.String("err", err.Error()))
	}
	cancel()
	c.close()

	if cmd != nil {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			t.log.Warn("stdio.command.exit", slog.String("err", err.Error()))
		} else {
			t.log.Info("stdio.command.exit")
		}
	}

	t.log.Info("stdio.serve.end")
	return nil
}

// dispatch frames one line into the engine and writes back whatever must be
// written. A parse failure consumes only the offending line.
func (t *Transport) dispatch(ctx context.Context, c *conn, line []byte) {
	msg, errRes := jsonrpc.Parse(line)
	if errRes != nil {
		t.send(ctx, c, errRes)
		return
	}

	ctx = logctx.WithRPCData(ctx, &logctx.RPCData{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})

	rc := request.NewContext(
		request.WithConn(c),
		request.WithClientID(t.clientID),
		request.WithRequestID(msg.ID.String()),
		request.WithClientCapabilities(t.eng.ClientCapabilities(t.clientID)),
		request.WithStreaming(true),
	)

	if res := t.eng.ProcessRequest(ctx, msg, rc); res != nil {
		t.send(ctx, c, res)
	}
}

func (t *Transport) send(ctx context.Context, c *conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		t.log.Error("stdio.encode.fail", slog.String("err", err.Error()))
		return
	}
	if err := c.Send(ctx, b); err != nil {
		t.log.Warn("stdio.send.fail", slog.String("err", err.Error()))
	}
}

func (t *Transport) activeConn() *conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// Send implements transport.Transport for the single stdio client.
func (t *Transport) Send(clientID string, msg []byte) error {
	c := t.activeConn()
	if c == nil || clientID != t.clientID {
		return transport.ErrClientNotFound
	}
	return c.Send(context.Background(), msg)
}

// Broadcast delivers to the single attached client.
func (t *Transport) Broadcast(msg []byte) error {
	c := t.activeConn()
	if c == nil {
		return transport.ErrClientNotFound
	}
	return c.Send(context.Background(), msg)
}

// Close terminates the client connection, which also ends Serve's writes.
func (t *Transport) Close(clientID string) error {
	c := t.activeConn()
	if c == nil || clientID != t.clientID {
		return transport.ErrClientNotFound
	}
	return c.Close()
}

// Shutdown stops the transport and its command, if any.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	stop := t.stop
	c := t.conn
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
	if c != nil {
		c.close()
	}
	return nil
}
