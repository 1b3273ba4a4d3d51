package ws

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"github.com/hilthontt/actionlog/internal/infrastructure/metrics"
)

const DefaultBufferSize = 256

var (
	ErrHubBusy   = errors.New("ws: hub broadcast buffer full")
	ErrHubClosed = errors.New("ws: hub stopped")
)

// Hub fans realtime messages out to subscribed websocket clients.
type Hub struct {
	subs       *subscriptions
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	clients    atomic.Int64
	upgrader   websocket.Upgrader
	logger     logging.Logger
	metrics    *metrics.Metrics
}

func NewHub(logger logging.Logger, m *metrics.Metrics, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subs:       newSubscriptions(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, bufferSize),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		metrics: m,
	}
}

// Run owns the subscription table until ctx is done, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.subs.closeAll()
		h.setClients(0)
		h.logger.Info(logging.WebSocket, logging.Shutdown, "realtime hub stopped", nil)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case cl := <-h.register:
			h.subs.add(cl)
			h.setClients(h.subs.total)

		case cl := <-h.unregister:
			if h.subs.remove(cl) {
				h.setClients(h.subs.total)
			}

		case msg := <-h.broadcast:
			if dropped := h.subs.deliver(msg); dropped > 0 {
				h.logger.Warn(logging.WebSocket, logging.Broadcast, "subscriber buffers full, message dropped", map[logging.ExtraKey]any{
					logging.UserID: msg.UserID,
					logging.Count:  dropped,
				})
			}
		}
	}
}

// Broadcast queues msg without blocking.
func (h *Hub) Broadcast(msg *Message) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- msg:
		return nil
	default:
		return ErrHubBusy
	}
}

// Serve upgrades the request and streams messages for userID (AllUsers for
// every user) until the client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID int64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	cl := NewClient(conn, userID)
	if !h.registerClient(cl) {
		_ = conn.WriteJSON(NewError(userID, "HUB_CLOSED", "realtime hub is shutting down"))
		return conn.Close()
	}

	go cl.WriteMessage(h)
	cl.ReadMessage(h)
	return nil
}

func (h *Hub) ClientCount() int {
	return int(h.clients.Load())
}

func (h *Hub) registerClient(cl *Client) bool {
	select {
	case h.register <- cl:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(cl *Client) {
	select {
	case h.unregister <- cl:
	case <-h.done:
	}
}

func (h *Hub) setClients(n int) {
	h.clients.Store(int64(n))
	if h.metrics != nil {
		h.metrics.SetRealtimeClients(n)
	}
}
