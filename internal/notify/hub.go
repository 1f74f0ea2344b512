// Package notify streams activity to connected clients over websockets.
//
// A [Hub] is both an [activity.Sink] and an [http.Handler]: mount it on
// /ws and register it with the activity fan-out, and every recorded entry is
// pushed to every connected client as a JSON text message.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/elaichix/NubaGuard-AI/internal/activity"
	"github.com/elaichix/NubaGuard-AI/internal/observe"
)

const (
	// DefaultClientBuffer is how many entries may queue for one client
	// before it is considered too slow and disconnected.
	DefaultClientBuffer = 32

	// DefaultBacklog is how many recent entries a new client receives on
	// connect.
	DefaultBacklog = 20

	writeTimeout = 5 * time.Second
)

var _ activity.Sink = (*Hub)(nil)

// Option configures a [Hub].
type Option func(*Hub)

// WithClientBuffer sets the per-client queue depth.
func WithClientBuffer(n int) Option {
	return func(h *Hub) { h.clientBuffer = n }
}

// WithBacklog sets how many recent entries are replayed to new clients.
// Zero disables replay.
func WithBacklog(n int) Option {
	return func(h *Hub) { h.backlogSize = n }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithOriginPatterns allows cross-origin connections from the given host
// patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

type client struct {
	send chan activity.Entry
	// slow is closed by the hub when the client cannot keep up.
	slow     chan struct{}
	slowOnce sync.Once
}

func (c *client) kick() { c.slowOnce.Do(func() { close(c.slow) }) }

// Hub fans activity entries out to websocket clients.
type Hub struct {
	clientBuffer int
	backlogSize  int
	metrics      *observe.Metrics
	origins      []string

	mu      sync.Mutex
	clients map[*client]struct{}
	backlog []activity.Entry
	closed  bool
	done    chan struct{}
}

// NewHub returns an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clientBuffer: DefaultClientBuffer,
		backlogSize:  DefaultBacklog,
		metrics:      observe.DefaultMetrics(),
		clients:      make(map[*client]struct{}),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.clientBuffer <= 0 {
		h.clientBuffer = DefaultClientBuffer
	}
	return h
}

// Record implements [activity.Sink]. It never blocks: a client whose queue
// is full is disconnected.
func (h *Hub) Record(_ context.Context, e activity.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	if h.backlogSize > 0 {
		h.backlog = append(h.backlog, e)
		if over := len(h.backlog) - h.backlogSize; over > 0 {
			h.backlog = append(h.backlog[:0:0], h.backlog[over:]...)
		}
	}
	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			c.kick()
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams entries until the client
// disconnects, falls behind, or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Debug("notify: upgrade failed", "err", err)
		return
	}
	defer conn.CloseNow()

	c, ok := h.register()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.unregister(c)

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	slog.Info("notify: client connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case <-c.slow:
			conn.Close(websocket.StatusPolicyViolation, "too slow")
			return
		case e := <-c.send:
			if err := h.write(ctx, conn, e); err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Debug("notify: write failed", "err", err)
				}
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, e activity.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}

func (h *Hub) register() (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &client{
		send: make(chan activity.Entry, max(h.clientBuffer, len(h.backlog))),
		slow: make(chan struct{}),
	}
	for _, e := range h.backlog {
		c.send <- e
	}
	h.clients[c] = struct{}{}
	h.metrics.NotifyClients.Add(context.Background(), 1)
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.metrics.NotifyClients.Add(context.Background(), -1)
	}
}

// Close disconnects every client. Later entries are ignored.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	return nil
}
