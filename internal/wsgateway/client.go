package wsgateway

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Pump timing and frame limits, unchanged from the WebSocket transport
// this package generalizes.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// client is one connected subscriber: a socket plus the outbound queue
// its pump drains.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
	onDone func()
}

func newClient(id string, conn *websocket.Conn, logger *slog.Logger, onDone func()) *client {
	return &client{id: id, conn: conn, send: make(chan []byte, 256), logger: logger, onDone: onDone}
}

// readPump discards inbound frames (this gateway is publish-only) but
// still must drain the socket to observe close frames and keep the
// pong deadline alive.
func (c *client) readPump() {
	defer func() {
		c.onDone()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("failed to set read deadline", "error", err, "client_id", c.id)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err, "client_id", c.id)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("failed to set write deadline", "error", err, "client_id", c.id)
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write message", "error", err, "client_id", c.id)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) deliver(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("client send buffer full, dropping frame", "client_id", c.id)
	}
}
