// Package realtime serves the websocket channel: connection lifecycle,
// liveness, and inbound room-join frames.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zulandar/boardsync/internal/auth"
	"github.com/zulandar/boardsync/internal/broadcast"
	"github.com/zulandar/boardsync/internal/logging"
	"github.com/zulandar/boardsync/internal/presence"
)

// Options tunes a Hub.
type Options struct {
	SendBuffer     int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	AllowedOrigins []string
	Logger         *slog.Logger
	Sinks          []broadcast.Sink
}

// Hub owns every live connection and implements broadcast.Transport.
type Hub struct {
	registry *presence.Registry
	bc       *broadcast.Broadcaster
	upgrader websocket.Upgrader
	opts     Options
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// NewHub returns a Hub tracking membership in registry.
func NewHub(registry *presence.Registry, opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= opts.PingInterval {
		opts.PongTimeout = 3 * opts.PingInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Hub{
		registry: registry,
		opts:     opts,
		log:      opts.Logger,
		clients:  make(map[string]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	h.bc = broadcast.New(registry, h, opts.Logger, opts.Sinks...)
	return h
}

// Broadcaster returns the broadcaster delivering through this hub.
func (h *Hub) Broadcaster() *broadcast.Broadcaster {
	return h.bc
}

// Registry returns the presence registry.
func (h *Hub) Registry() *presence.Registry {
	return h.registry
}

// Deliver implements broadcast.Transport.
func (h *Hub) Deliver(connID string, frame []byte) error {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}
	return c.send(frame)
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and runs the connection until it ends.
// identity is the already-resolved caller.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logging.User(identity.UserID), logging.Err(err))
		return
	}

	c := newClient(uuid.NewString(), identity, conn, h.opts.SendBuffer)
	if !h.register(c) {
		c.close()
		return
	}
	log := h.log.With(logging.Conn(c.id), logging.User(identity.UserID))
	log.Info("connection opened")

	go c.writeLoop(h.opts.PingInterval)
	h.bc.SendTo(r.Context(), c.id, broadcast.EventConnected, connectedPayload{ConnectionID: c.id})
	err = c.readLoop(h.opts.PongTimeout, func(data []byte) {
		h.handleFrame(r.Context(), log, c, data)
	})
	if err != nil {
		log.Debug("read loop ended", logging.Err(err))
	}

	h.disconnect(c)
	log.Info("connection closed")
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

// disconnect removes c from the hub and the registry, then refreshes the
// presence listing of the project it was in.
func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()

	left, ok := h.registry.Leave(c.id)
	if ok && left.ProjectID != 0 {
		ctx := context.Background()
		h.bc.PublishToProject(ctx, left.ProjectID, broadcast.EventPresenceSnapshot,
			h.registry.ListByProject(left.ProjectID))
	}
}

type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type joinProjectPayload struct {
	ProjectID uint   `json:"projectId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatarRef"`
}

type joinBoardPayload struct {
	BoardID uint `json:"boardId"`
}

func (h *Hub) handleFrame(ctx context.Context, log *slog.Logger, c *client, data []byte) {
	frame, err := broadcast.Decode(data)
	if err != nil {
		h.bc.SendTo(ctx, c.id, broadcast.EventError, "malformed frame")
		return
	}

	switch frame.Event {
	case broadcast.EventJoinProjectRoom:
		var p joinProjectPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.ProjectID == 0 {
			h.bc.SendTo(ctx, c.id, broadcast.EventError, "joinProjectRoom requires projectId")
			return
		}
		h.joinProject(ctx, log, c, p)

	case broadcast.EventJoinBoardRoom:
		var p joinBoardPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.BoardID == 0 {
			h.bc.SendTo(ctx, c.id, broadcast.EventError, "joinBoardRoom requires boardId")
			return
		}
		if !h.registry.SetBoardContext(c.id, p.BoardID) {
			h.bc.SendTo(ctx, c.id, broadcast.EventError, "join a project before a board")
			return
		}
		log.Debug("joined board", logging.Board(p.BoardID))

	default:
		log.Debug("ignoring frame", logging.Event(frame.Event))
	}
}

func (h *Hub) joinProject(ctx context.Context, log *slog.Logger, c *client, p joinProjectPayload) {
	// The token's identity is authoritative; the payload only supplies
	// display fields the token does not carry.
	username := p.Username
	if username == "" {
		username = c.identity.Name
	}

	prev, hadPrev := h.registry.Get(c.id)
	h.registry.Join(c.id, c.identity.UserID, username, p.AvatarRef, p.ProjectID)
	log.Info("joined project", logging.Project(p.ProjectID))

	if hadPrev && prev.ProjectID != 0 && prev.ProjectID != p.ProjectID {
		h.bc.PublishToProject(ctx, prev.ProjectID, broadcast.EventPresenceSnapshot,
			h.registry.ListByProject(prev.ProjectID))
	}
	h.bc.PublishToProject(ctx, p.ProjectID, broadcast.EventPresenceJoined, username+" joined", c.id)
	h.bc.PublishToProject(ctx, p.ProjectID, broadcast.EventPresenceSnapshot,
		h.registry.ListByProject(p.ProjectID))
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
