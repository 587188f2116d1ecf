package gateway

import (
	"encoding/json"

	"github.com/gorilla/websocket"
)

const sendBuffer = 256

// Client is one upgraded websocket connection. readLoop feeds inbound events
// to the gateway dispatcher; writeLoop drains the send channel so broadcasts
// never block on a slow socket.
type Client struct {
	id      string
	conn    *websocket.Conn
	gateway *Gateway
	send    chan Message

	// Room membership, set by the join handler and read on disconnect. Only
	// touched from this client's readLoop.
	playerID string
	roomID   string
}

func newClient(id string, conn *websocket.Conn, gw *Gateway) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		gateway: gw,
		send:    make(chan Message, sendBuffer),
	}
}

func (c *Client) ID() string { return c.id }

// Emit queues a message, dropping it if the client's buffer is full rather
// than stalling the caller.
func (c *Client) Emit(msg Message) {
	select {
	case c.send <- msg:
	default:
		c.gateway.logger.Warn("dropping message for slow client", "socket_id", c.id, "type", msg.Type)
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.gateway.handleDisconnect(c)
		close(c.send)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.gateway.logger.Warn("malformed message", "socket_id", c.id, "error", err)
			continue
		}
		c.gateway.dispatch(c, msg)
	}
}

func (c *Client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
