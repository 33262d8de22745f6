// internal/events/client.go
package events

import (
	"context"
	"time"

	"tenantcore-service/internal/domain/event"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// ClientAuth holds authentication information for a connecting client.
type ClientAuth struct {
	IdentityID     int64
	SessionID      string
	OrganizationID int64
	Role           string
	Email          string
	IsSuperAdmin   bool
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	identityID     int64
	sessionID      string
	organizationID int64
	isSuperAdmin   bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, 256),
		identityID:     auth.IdentityID,
		sessionID:      auth.SessionID,
		organizationID: auth.OrganizationID,
		isSuperAdmin:   auth.IsSuperAdmin,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (c *Client) IdentityID() int64     { return c.identityID }
func (c *Client) OrganizationID() int64 { return c.organizationID }

// ReadPump handles incoming frames from the client. The stream is
// server-push; the only client frames honored are pings.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.hub.logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}
			c.handleMessage(message)
		}
	}
}

// WritePump handles outgoing frames to the client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(data []byte) {
	msg, err := event.ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	if msg.Type == event.TypePing {
		c.SendMessage(event.NewMessage(event.TypePong, nil))
	}
}

// SendMessage sends a message to the client without blocking the hub.
func (c *Client) SendMessage(msg *event.Message) {
	if c.ctx.Err() != nil {
		return
	}

	data, err := msg.ToJSON()
	if err != nil {
		c.hub.logger.Error("failed to marshal event message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		// Slow consumer, drop the connection. ReadPump notices the
		// closed connection and unregisters the client.
		c.Close()
	}
}

// SendError sends an error frame to the client.
func (c *Client) SendError(code, message, details string) {
	c.SendMessage(event.NewMessage(event.TypeError, event.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close signals both pumps to exit. The send channel is never closed,
// so a concurrent SendMessage can at worst write into a buffer nobody
// drains; it can never panic on a closed channel.
func (c *Client) Close() {
	c.cancel()
}
