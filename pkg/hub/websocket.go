package hub

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/statuscast/pkg/logger"
)

// Handler upgrades requests to websocket connections served by h.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error
			h.logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}

		c, err := h.register(true)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"),
				time.Now().Add(h.cfg.WriteWait))
			_ = conn.Close()
			return
		}

		go h.writePump(conn, c)
		h.readPump(context.WithoutCancel(r.Context()), conn, c)
	})
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// readPump feeds client messages to the hub until the connection fails.
func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, c *Client) {
	defer h.Disconnect(c)

	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				h.logger.Warn("websocket read error", logger.ConnID(c.id), logger.Error(err))
			}
			return
		}
		h.HandleMessage(ctx, c, data)
	}
}

// writePump is the only writer on conn. It drains the client queue, pings
// periodically and sends the close frame once the client is dropped.
func (h *Hub) writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		h.pumps.Done()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := h.write(conn, msg); err != nil {
				h.logger.Debug("websocket write failed", logger.ConnID(c.id), logger.Error(err))
				h.Disconnect(c)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Disconnect(c)
				return
			}

		case <-c.done:
			h.flush(conn, c)
			code, reason := c.CloseStatus()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				time.Now().Add(h.cfg.WriteWait))
			return
		}
	}
}

// flush writes whatever is still queued.
func (h *Hub) flush(conn *websocket.Conn, c *Client) {
	for {
		select {
		case msg := <-c.send:
			if err := h.write(conn, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, msg OutboundMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
	return conn.WriteJSON(msg)
}
