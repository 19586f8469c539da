package notify

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub tracks realtime client connections by group.
type Hub struct {
	mu           sync.RWMutex
	groups       map[string]map[*Client]struct{}
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.Logger
}

var _ Dispatcher = (*Hub)(nil)

// NewHub builds a hub.
func NewHub(writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	h := &Hub{
		groups:       make(map[string]map[*Client]struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	return h.WithAllowedOrigins(nil)
}

// WithAllowedOrigins restricts browser upgrades to the listed origins. Requests without an
// Origin header (native apps) are always accepted; an empty list accepts every origin.
func (h *Hub) WithAllowedOrigins(origins []string) *Hub {
	if len(origins) == 0 {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
		return h
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
	return h
}

// ServeWS upgrades the request and registers the connection under the user's group.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(userID, conn, h.writeTimeout, h.pingInterval, h.logger)
	h.Join(UserGroup(userID), client)
	h.logger.Info("realtime client connected", zap.String("user_id", userID.String()))

	ctx, cancel := context.WithCancel(context.Background())
	client.onClose = func(c *Client) {
		h.Leave(c)
		cancel()
	}
	go client.start(ctx)
}

// Join adds the client to a group.
func (h *Hub) Join(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
	c.addGroup(group)
}

// Leave removes the client from every group it joined.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, group := range c.groupList() {
		members := h.groups[group]
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Close sends a going-away frame to every connection and drops it.
func (h *Hub) Close() {
	h.mu.RLock()
	seen := make(map[*Client]struct{})
	for _, members := range h.groups {
		for c := range members {
			seen[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for c := range seen {
		c.goAway()
	}
	if len(seen) > 0 {
		h.logger.Info("realtime clients disconnected", zap.Int("count", len(seen)))
	}
}

// Members returns the number of connections in a group.
func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func (h *Hub) SendToUser(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) error {
	return h.SendToGroup(ctx, UserGroup(userID), eventType, payload)
}

// SendToGroup enqueues the event on every member connection without waiting for writes.
func (h *Hub) SendToGroup(ctx context.Context, groupKey string, eventType string, payload interface{}) error {
	msg, err := encode(eventType, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.groups[groupKey]))
	for c := range h.groups[groupKey] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.Send(msg)
	}
	return nil
}
