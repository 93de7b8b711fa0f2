package dashboardhook

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one connected dashboard observer. It is write-only from the
// hook's perspective — the dashboard has nothing to command, only watch —
// so ReadPump exists only to notice disconnects via the normal gorilla
// read-to-detect-close idiom.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient wraps an accepted connection and registers it with hub. The
// send buffer is sized from the hub's own pool configuration so a single
// -config preset governs both sides of the channel.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	buf := hub.clientSendBuffer
	if buf <= 0 {
		buf = 64
	}
	c := &Client{hub: hub, conn: conn, send: make(chan []byte, buf)}
	hub.register <- c
	return c
}

// ReadPump discards inbound frames (a dashboard sends nothing meaningful)
// and unregisters the client once the connection closes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WritePump drains queued broadcasts to the socket and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
