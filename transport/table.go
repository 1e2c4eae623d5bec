package transport

import (
	"context"
	"log/slog"
	"sync"
)

// outboundDepth is the per-client outbound queue depth. A slow client may
// buffer this many frames before senders block.
const outboundDepth = 32

// WriteFunc performs the wire write of one framed message for one client.
type WriteFunc func(msg []byte) error

// Table is the client bookkeeping shared by all transports: a map from
// client id to an outbound queue drained by a single writer goroutine, which
// is what guarantees per-client FIFO ordering. A failed write evicts the
// client, after which further sends fail fast with ErrClientGone.
type Table struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewTable builds an empty client table.
func NewTable(log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{log: log, clients: make(map[string]*Client)}
}

// Client is one attached client's outbound half. It satisfies the
// request.Conn contract, so streaming emitter tasks write through it.
type Client struct {
	id    string
	table *Table
	write WriteFunc

	out       chan []byte
	gone      chan struct{}
	closeOnce sync.Once
}

// Attach registers a client and starts its writer goroutine. An existing
// client with the same id is evicted first.
func (t *Table) Attach(id string, write WriteFunc) *Client {
	c := &Client{
		id:    id,
		table: t,
		write: write,
		out:   make(chan []byte, outboundDepth),
		gone:  make(chan struct{}),
	}

	t.mu.Lock()
	if prev, ok := t.clients[id]; ok {
		prev.markGone()
	}
	t.clients[id] = c
	t.mu.Unlock()

	go c.drain()
	return c
}

// Get looks up an attached client.
func (t *Table) Get(id string) (*Client, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.clients[id]
	return c, ok
}

// Send enqueues one message for one client.
func (t *Table) Send(id string, msg []byte) error {
	c, ok := t.Get(id)
	if !ok {
		return ErrClientNotFound
	}
	return c.Send(context.Background(), msg)
}

// Broadcast enqueues one message for every attached client. Evicted clients
// are skipped; the first enqueue failure is reported after the sweep.
func (t *Table) Broadcast(msg []byte) error {
	t.mu.RLock()
	clients := make([]*Client, 0, len(t.clients))
	for _, c := range t.clients {
		clients = append(clients, c)
	}
	t.mu.RUnlock()

	var firstErr error
	for _, c := range clients {
		if err := c.Send(context.Background(), msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Evict removes a client and wakes anything blocked on it.
func (t *Table) Evict(id string) {
	t.mu.Lock()
	c, ok := t.clients[id]
	if ok {
		delete(t.clients, id)
	}
	t.mu.Unlock()
	if ok {
		c.markGone()
	}
}

// Shutdown evicts every client.
func (t *Table) Shutdown() {
	t.mu.Lock()
	clients := t.clients
	t.clients = make(map[string]*Client)
	t.mu.Unlock()
	for _, c := range clients {
		c.markGone()
	}
}

// Len reports the number of attached clients.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

// ID returns the client identifier.
func (c *Client) ID() string { return c.id }

// Done is closed when the client has been evicted.
func (c *Client) Done() <-chan struct{} { return c.gone }

// Send enqueues one outbound message, blocking while the queue is full.
// It fails with ErrClientGone after eviction, which is the signal streaming
// emitters use to stop.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	select {
	case <-c.gone:
		return ErrClientGone
	default:
	}
	select {
	case <-c.gone:
		return ErrClientGone
	case <-ctx.Done():
		return ctx.Err()
	case c.out <- msg:
		return nil
	}
}

// Close evicts the client from its table.
func (c *Client) Close() error {
	c.table.Evict(c.id)
	return nil
}

func (c *Client) markGone() {
	c.closeOnce.Do(func() { close(c.gone) })
}

// drain is the single writer loop. One goroutine per client preserves FIFO
// ordering of outbound messages.
func (c *Client) drain() {
	for {
		select {
		case <-c.gone:
			return
		case msg := <-c.out:
			if err := c.write(msg); err != nil {
				c.table.log.Warn("transport.write.fail",
					slog.String("client_id", c.id), slog.String("err", err.Error()))
				c.table.Evict(c.id)
				return
			}
		}
	}
}
