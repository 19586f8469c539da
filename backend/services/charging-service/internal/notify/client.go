package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one realtime connection.
type Client struct {
	userID       uuid.UUID
	ws           *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.Logger
	onClose      func(*Client)

	mu     sync.Mutex
	groups map[string]struct{}
	closed bool
}

func newClient(userID uuid.UUID, ws *websocket.Conn, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Client {
	return &Client{
		userID:       userID,
		ws:           ws,
		send:         make(chan []byte, 16),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		logger:       logger,
		groups:       make(map[string]struct{}),
	}
}

// UserID returns the authenticated owner of the connection.
func (c *Client) UserID() uuid.UUID {
	return c.userID
}

func (c *Client) addGroup(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[group] = struct{}{}
}

func (c *Client) groupList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.groups))
	for g := range c.groups {
		out = append(out, g)
	}
	return out
}

func (c *Client) start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump only drains control frames; clients never send events upstream.
func (c *Client) readPump(ctx context.Context) {
	defer c.cleanup()
	readWait := 2 * c.pingInterval
	c.ws.SetReadLimit(4096)
	c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("realtime connection closed", zap.String("user_id", c.userID.String()), zap.Error(err))
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send enqueues a frame, dropping it when the buffer is full or the client is gone.
func (c *Client) Send(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping realtime message, buffer full", zap.String("user_id", c.userID.String()))
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Client) goAway() {
	frame := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.ws.WriteControl(websocket.CloseMessage, frame, time.Now().Add(c.writeTimeout))
	c.cleanup()
}

func (c *Client) cleanup() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose(c)
	}
}
