package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Event is a realtime notification delivered to a specific account's
// connected devices.
type Event struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewEvent creates an Event with the Type field derived from entity and action.
func NewEvent(entity, action string, id int64, extra map[string]any) Event {
	return Event{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients by account and delivers targeted events.
// Unlike a broadcast hub, events only reach the accounts they concern:
// an invite redemption goes to the code's owner, a shared memory to the
// author's partner.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client under its account.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.accountID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.accountID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.accountID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.accountID)
		}
	}
	h.mu.Unlock()
}

// Send delivers an event to every connected device of the given accounts.
// Accounts with no connected client are skipped silently.
func (h *Hub) Send(ev Event, accountIDs ...int64) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range accountIDs {
		for c := range h.clients[id] {
			select {
			case c.send <- data:
			default:
				// Client buffer full — drop rather than block
			}
		}
	}
}

// ConnectedAccounts returns the number of accounts with at least one
// connected client.
func (h *Hub) ConnectedAccounts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
