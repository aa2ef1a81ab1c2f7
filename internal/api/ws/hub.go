package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oshokin/azan-scheduler/internal/logger"
)

const (
	// broadcastQueueSize bounds the hub's pending broadcast queue.
	broadcastQueueSize = 64
	// clientQueueSize bounds each client's send queue. A client that
	// cannot drain it is disconnected.
	clientQueueSize = 32
)

// Commands dispatches inbound control frames to the daemon.
type Commands interface {
	// TriggerNow starts a manual interruption sequence.
	TriggerNow(ctx context.Context) error
	// ForceFallback switches to fallback audio immediately.
	ForceFallback(ctx context.Context)
	// StopFallback returns from fallback audio to the primary stream.
	StopFallback(ctx context.Context)
	// Duck lowers the main volume for a transient foreground event.
	Duck(ctx context.Context)
	// Restore undoes a duck.
	Restore(ctx context.Context)
}

// SnapshotFunc returns the full daemon state for the initial frame
// sent to a freshly connected client.
type SnapshotFunc func() any

// Envelope is the wire format of every outbound frame.
type Envelope struct {
	// Type names the frame: "state_init", "state", "error".
	Type string `json:"type"`
	// TS is the server time the frame was produced.
	TS time.Time `json:"ts"`
	// Data is the frame payload.
	Data any `json:"data,omitempty"`
}

// command is the wire format of every inbound frame.
type command struct {
	// Type names the command: "trigger_now", "force_fallback",
	// "stop_fallback", "duck", "restore".
	Type string `json:"type"`
}

// Hub owns the set of connected clients and fans out broadcasts.
type Hub struct {
	commands Commands
	snapshot SnapshotFunc

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	clients map[*client]bool
}

// NewHub creates a hub. Run must be started for clients to be served.
func NewHub(commands Commands, snapshot SnapshotFunc) *Hub {
	return &Hub{
		commands:   commands,
		snapshot:   snapshot,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastQueueSize),
		clients:    make(map[*client]bool),
	}
}

// Run serves registrations and broadcasts until the context is done,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.closeSend()
				delete(h.clients, c)
			}

			return
		case c := <-h.register:
			h.clients[c] = true

			logger.InfoKV(ctx, "Client connected", "remote_addr", c.remoteAddr, "clients", len(h.clients))
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				c.closeSend()

				logger.InfoKV(ctx, "Client disconnected", "remote_addr", c.remoteAddr, "clients", len(h.clients))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client; disconnect rather than block the hub.
					delete(h.clients, c)
					c.closeSend()

					logger.WarnKV(ctx, "Dropping slow client", "remote_addr", c.remoteAddr)
				}
			}
		}
	}
}

// Broadcast fans an envelope out to every connected client.
// It never blocks; if the hub queue is full the frame is dropped.
func (h *Hub) Broadcast(ctx context.Context, frameType string, data any) {
	msg, err := json.Marshal(Envelope{Type: frameType, TS: time.Now(), Data: data})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to marshal broadcast frame", "type", frameType, "error", err)

		return
	}

	select {
	case h.broadcast <- msg:
	default:
		logger.WarnKV(ctx, "Broadcast queue full, dropping frame", "type", frameType)
	}
}

// dispatch executes an inbound command frame.
func (h *Hub) dispatch(ctx context.Context, raw []byte) error {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	logger.InfoKV(ctx, "Command received", "command", cmd.Type)

	switch cmd.Type {
	case "trigger_now":
		return h.commands.TriggerNow(ctx)
	case "force_fallback":
		h.commands.ForceFallback(ctx)
	case "stop_fallback":
		h.commands.StopFallback(ctx)
	case "duck":
		h.commands.Duck(ctx)
	case "restore":
		h.commands.Restore(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}

	return nil
}
