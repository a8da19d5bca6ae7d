package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zulandar/boardsync/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// ErrSlowConsumer is returned by Deliver when a connection's send buffer is
// full. The frame is dropped; the client reconciles on its next read.
var ErrSlowConsumer = errors.New("realtime: send buffer full")

// ErrUnknownConnection is returned by Deliver for a connection that is gone.
var ErrUnknownConnection = errors.New("realtime: unknown connection")

// client is one websocket session.
type client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	out      chan []byte
	done     chan struct{}
	once     sync.Once
}

func newClient(id string, identity auth.Identity, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:       id,
		identity: identity,
		conn:     conn,
		out:      make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// send queues frame without blocking.
func (c *client) send(frame []byte) error {
	select {
	case <-c.done:
		return ErrUnknownConnection
	default:
	}
	select {
	case c.out <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writeLoop drains out and pings every interval. It owns all writes to conn.
func (c *client) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop hands every text frame to onMessage until the peer goes away or
// no pong arrives within pongTimeout.
func (c *client) readLoop(pongTimeout time.Duration, onMessage func([]byte)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if kind == websocket.TextMessage && len(data) > 0 {
			onMessage(data)
		}
	}
}
