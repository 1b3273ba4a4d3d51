package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// AllUsers subscribes a client to every user's actions.
const AllUsers int64 = 0

type Client struct {
	conn   *connWrapper
	send   chan *Message
	ID     string
	UserID int64
}

func NewClient(conn *websocket.Conn, userID int64) *Client {
	return &Client{
		conn:   newConnWrapper(conn),
		send:   make(chan *Message, sendBuffer),
		ID:     uuid.NewString(),
		UserID: userID,
	}
}

// ReadMessage keeps the connection alive and detects disconnects. Subscribers
// are not expected to send anything.
func (c *Client) ReadMessage(hub *Hub) {
	defer func() {
		hub.unregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.logger.Warn(logging.WebSocket, logging.Consume, "unexpected websocket close", map[logging.ExtraKey]any{
					logging.UserID:       c.UserID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}
	}
}

func (c *Client) WriteMessage(hub *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, time.Now().Add(writeWait))
				return
			}

			if err := c.conn.WriteJSON(msg, time.Now().Add(writeWait)); err != nil {
				hub.logger.Warn(logging.WebSocket, logging.Broadcast, "failed to write to subscriber", map[logging.ExtraKey]any{
					logging.UserID:       c.UserID,
					logging.ErrorMessage: err.Error(),
				})
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
