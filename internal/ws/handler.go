package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/event"
	"github.com/HerbHall/textlens/internal/process"
)

// StateSource is the part of the event bus the handler needs.
type StateSource interface {
	Subscribe(topic string, handler event.Handler) (unsubscribe func())
	Last(topic string) (event.Event, bool)
}

// Compile-time interface guard.
var _ StateSource = (*event.Bus)(nil)

// Handler provides the WebSocket endpoint for live processing state.
type Handler struct {
	hub         *Hub
	bus         StateSource
	origins     []string
	logger      *zap.Logger
	unsubscribe func()
}

// NewHandler creates a WebSocket handler and subscribes to state events.
// originPatterns restricts which browser origins may connect; requests
// without an Origin header (native hosts) are always accepted.
func NewHandler(bus StateSource, originPatterns []string, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:     NewHub(logger),
		bus:     bus,
		origins: originPatterns,
		logger:  logger,
	}
	h.unsubscribe = bus.Subscribe(process.TopicState, h.forward)
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/process/ws", h.handleStateStream)
}

// Close stops forwarding bus events.
func (h *Handler) Close() {
	h.unsubscribe()
}

// ClientCount returns the number of connected observers.
func (h *Handler) ClientCount() int {
	return h.hub.ClientCount()
}

func (h *Handler) forward(_ context.Context, e event.Event) {
	s, ok := e.Payload.(process.State)
	if !ok {
		h.logger.Warn("unexpected payload type for state event")
		return
	}
	h.hub.Broadcast(stateMessage(s, e.Timestamp))
}

// handleStateStream upgrades the connection and streams state snapshots,
// starting with the current one.
func (h *Handler) handleStateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}

	client := newClient(conn, uuid.NewString(), h.logger)

	h.hub.Register(client)
	if last, ok := h.bus.Last(process.TopicState); ok {
		if s, ok := last.Payload.(process.State); ok {
			client.offer(stateMessage(s, last.Timestamp))
		}
	} else {
		client.offer(stateMessage(process.State{Status: process.StatusIdle}, time.Now()))
	}

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}
