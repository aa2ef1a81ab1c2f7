package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/azan-scheduler/internal/logger"
)

const (
	// writeWait is the deadline for a single websocket write.
	writeWait = 5 * time.Second
	// pongWait is how long a connection may stay silent before being
	// considered dead.
	pongWait = 30 * time.Second
	// pingPeriod is how often keepalive pings are sent. Must be below pongWait.
	pingPeriod = 20 * time.Second
)

// client is one websocket connection managed by the hub.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	closeOnce  sync.Once
}

// closeSend closes the send queue exactly once, signalling the write pump
// to finish the connection.
func (c *client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// enqueue puts a pre-serialized frame on the client's send queue without
// blocking. It reports whether the frame was accepted.
func (c *client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writePump drains the send queue into the connection and keeps the
// connection alive with pings. It exits on write error or queue close.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				// Queue closed: the hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					logger.DebugKV(ctx, "Write pump exiting", "remote_addr", c.remoteAddr, "error", err)
				}

				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					logger.DebugKV(ctx, "Ping failed", "remote_addr", c.remoteAddr, "error", err)
				}

				return
			}
		}
	}
}

// readPump reads inbound command frames and dispatches them until the
// connection drops, then unregisters the client.
func (c *client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && !errors.Is(err, websocket.ErrCloseSent) {
				logger.DebugKV(ctx, "Read pump exiting", "remote_addr", c.remoteAddr, "error", err)
			}

			select {
			case c.hub.unregister <- c:
			case <-ctx.Done():
			}

			return
		}

		if err := c.hub.dispatch(ctx, raw); err != nil {
			logger.WarnKV(ctx, "Command failed", "remote_addr", c.remoteAddr, "error", err)

			if msg, marshalErr := json.Marshal(Envelope{
				Type: "error",
				TS:   time.Now(),
				Data: err.Error(),
			}); marshalErr == nil {
				c.enqueue(msg)
			}
		}
	}
}

// upgrader accepts any origin; the control endpoint binds to localhost
// by default and carries no credentials.
//
//nolint:gochecknoglobals // Shared stateless upgrader.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades HTTP requests to websocket clients of the hub.
// The pumps deliberately run on the provided base context rather than the
// request context, which net/http cancels as soon as the handler returns.
func (h *Hub) Handler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WarnKV(ctx, "Websocket upgrade failed", "error", err)

			return
		}

		c := &client{
			hub:        h,
			conn:       conn,
			send:       make(chan []byte, clientQueueSize),
			remoteAddr: r.RemoteAddr,
		}

		// Queue the initial snapshot before registering so it is the first
		// frame the client sees.
		if h.snapshot != nil {
			if msg, err := json.Marshal(Envelope{
				Type: "state_init",
				TS:   time.Now(),
				Data: h.snapshot(),
			}); err == nil {
				c.enqueue(msg)
			}
		}

		select {
		case h.register <- c:
		case <-ctx.Done():
			_ = conn.Close()

			return
		}

		go c.writePump(ctx)
		go c.readPump(ctx)
	}
}
