package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/relay"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket session. It is the relay.Transport for its
// connection: the hub queues frames with Send and the write pump drains them.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *relay.Hub
	id             relay.ConnectionID
	addr           string
	maxMessageSize int64
	logger         *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ relay.Transport = (*Client)(nil)

// NewClient creates a Client for conn. The send channel is buffered to
// cfg.SendBufferSize frames; a full buffer makes Send fail instead of block.
func NewClient(conn *websocket.Conn, hub *relay.Hub, addr string, cfg *Config, logger *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		logger:         logger,
	}
}

// Send queues frame for the write pump without blocking.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return relay.ErrTransportClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return relay.ErrSendBufferFull
	}
}

// Close stops the write pump, which sends a close frame and closes the
// socket. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Debug("set initial read deadline", "addr", c.addr, "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// logReadError logs why the read loop ended at a level matching the cause.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("message exceeded maximum size", "id", c.id, "addr", c.addr, "limit", c.maxMessageSize)

	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.logger.Debug("client closed connection", "id", c.id, "addr", c.addr, "err", err)

	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Debug("connection closed", "id", c.id, "addr", c.addr, "err", err)

	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Warn("unexpected websocket close", "id", c.id, "addr", c.addr, "err", err)

	default:
		c.logger.Debug("websocket read error", "id", c.id, "addr", c.addr, "err", err)
	}
}

// readPump feeds inbound frames to the hub until the socket fails, then
// disconnects the client from the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.id)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug("close in read pump", "id", c.id, "err", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		// Dropped events are already counted by the hub.
		_ = c.hub.Dispatch(c.id, frame)
	}
}

// writePump writes queued frames, one per WebSocket message, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case frame, ok := <-c.send:
		if !ok {
			return c.writeCloseMessage()
		}
		return c.writeTextMessage(frame)
	case <-ticker.C:
		return c.writePing()
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("close in write pump", "id", c.id, "err", err)
	}
}

func (c *Client) writeCloseMessage() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("write close message", "id", c.id, "err", err)
	}
	return false
}

func (c *Client) writeTextMessage(frame []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("set write deadline", "id", c.id, "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Debug("write message", "id", c.id, "addr", c.addr, "err", err)
		return false
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug("write ping", "id", c.id, "err", err)
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe")
}
