// Package ws streams processing state to WebSocket observers.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Client is one connected observer. It holds at most one pending
// snapshot: a newer state replaces an unsent older one, so a slow
// observer skips intermediate Streaming states but always ends on the
// latest.
type Client struct {
	conn   *websocket.Conn
	id     string
	logger *zap.Logger

	mu        sync.Mutex
	pending   *Message
	queuedSeq uint64
	closed    bool
	wake      chan struct{}
}

func newClient(conn *websocket.Conn, id string, logger *zap.Logger) *Client {
	return &Client{
		conn:   conn,
		id:     id,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// offer queues msg unless the client is closed or already holds a newer
// snapshot. Seq 0 (the synthetic initial Idle) is always accepted.
func (c *Client) offer(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if seq := msg.Data.Seq; seq != 0 {
		if seq <= c.queuedSeq {
			return false
		}
		c.queuedSeq = seq
	}
	c.pending = &msg
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// take returns and clears the pending snapshot.
func (c *Client) take() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Message{}, false
	}
	msg := *c.pending
	c.pending = nil
	return msg, true
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.pending = nil
		close(c.wake)
	}
}

// Hub tracks connected observers and fans state snapshots out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("client_id", c.id))
}

// Unregister removes a client and wakes its writer so it exits.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", zap.String("client_id", c.id))
}

// Broadcast offers msg to every client. It never blocks on a slow client.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.offer(msg)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump writes the latest pending snapshot each time the client is
// woken, until the client is closed or ctx ends.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-c.wake:
			if !ok {
				return
			}
			msg, ok := c.take()
			if !ok {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				c.logger.Debug("websocket write error",
					zap.String("client_id", c.id), zap.Error(err))
				return
			}
		}
	}
}

// readPump drains reads until the observer disconnects. Observers never
// send anything meaningful.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
