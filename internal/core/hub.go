package core

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Hub is the presence registry: the single owner of "who is online".
// It holds at most one live connection handle per user. Every mutation and
// the snapshot broadcast it triggers happen under one lock, so clients
// observe snapshots in mutation order and always end on the latest one.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]*Client
	log     *zerolog.Logger
}

// NewHub creates an empty presence registry.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		clients: make(map[int64]*Client),
		log:     logger,
	}
}

// Run blocks until ctx is cancelled, then closes every registered connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, c := range h.clients {
		c.Close(CloseReasonShutdown)
		delete(h.clients, userID)
	}
	h.log.Info().Msg("presence registry drained")
}

// Register makes c the live connection for its user and broadcasts the new snapshot.
// A previous connection for the same user is superseded and closed.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.clients[c.UserID]; ok && prev != c {
		prev.Close(CloseReasonSuperseded)
		h.log.Info().
			Int64("user_id", c.UserID).
			Str("conn_id", prev.ID).
			Str("new_conn_id", c.ID).
			Msg("connection superseded")
	}
	h.clients[c.UserID] = c

	h.log.Debug().Int64("user_id", c.UserID).Str("conn_id", c.ID).Msg("client registered")
	h.broadcastLocked()
}

// Deregister removes the user's entry. It is a no-op, with no broadcast,
// when the user is not registered.
func (h *Hub) Deregister(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[userID]; !ok {
		return false
	}
	delete(h.clients, userID)

	h.log.Debug().Int64("user_id", userID).Msg("client deregistered")
	h.broadcastLocked()
	return true
}

// Unregister removes c only if it is still the user's current connection.
// A superseded handle disconnecting late never evicts its replacement.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[c.UserID]
	if !ok || current != c {
		return false
	}
	delete(h.clients, c.UserID)

	h.log.Debug().Int64("user_id", c.UserID).Str("conn_id", c.ID).Msg("client unregistered")
	h.broadcastLocked()
	return true
}

// IsOnline reports whether userID has a live connection.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Lookup returns the live connection handle for userID.
func (h *Hub) Lookup(userID int64) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

// Snapshot returns the online user IDs in ascending order.
func (h *Hub) Snapshot() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

// Count returns the number of online users.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver pushes ev to userID's live connection without blocking.
func (h *Hub) Deliver(userID int64, ev *Event) error {
	c, ok := h.Lookup(userID)
	if !ok {
		return ErrRecipientOffline
	}
	if !c.Push(ev) {
		return ErrDeliveryFailed
	}
	return nil
}

func (h *Hub) snapshotLocked() []int64 {
	ids := lo.Keys(h.clients)
	slices.Sort(ids)
	return ids
}

// broadcastLocked hands the current snapshot to every connection.
// A slow consumer skips intermediate snapshots but never the latest.
func (h *Hub) broadcastLocked() {
	snapshot := h.snapshotLocked()
	for _, c := range h.clients {
		c.setPresence(snapshot)
	}
}
