// Package realtime fans inserted messages out to the connections of the users
// involved. It is the in-process change feed that sessions subscribe to.
package realtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned by SendToUser when the user has no connection.
var ErrNotConnected = errors.New("user not connected")

// Sender is the minimal interface the hub needs from a connection: the
// ability to push a message to the connected client.
type Sender interface {
	Send(messaging.Message) error
}

// closer is implemented by senders that must be released when the hub drops
// them after a failed send.
type closer interface {
	Close()
}

// Hub manages active connections for connected users. It maps user ids to
// one or more connections so a message reaches every endpoint of a user.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[int64]Sender
	nextID int64
	log    zerolog.Logger
}

var (
	_ messaging.Feed      = (*Hub)(nil)
	_ messaging.Publisher = (*Hub)(nil)
)

// NewHub creates a new hub instance.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{conns: make(map[string]map[int64]Sender), log: log}
}

// Register adds a connection for userID and returns the id to unregister it
// with when it closes.
func (h *Hub) Register(userID string, s Sender) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[userID]; !ok {
		h.conns[userID] = make(map[int64]Sender)
	}
	h.nextID++
	id := h.nextID
	h.conns[userID][id] = s
	return id
}

// Unregister removes a connection. Unknown ids are ignored.
func (h *Hub) Unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[userID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Connections is the number of live connections of userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// SendToUser delivers msg to every connection of userID. Delivery is best
// effort: every connection is tried, failed ones are unregistered and the
// first error is returned.
func (h *Hub) SendToUser(userID string, msg messaging.Message) error {
	h.mu.RLock()
	targets := make(map[int64]Sender, len(h.conns[userID]))
	for id, s := range h.conns[userID] {
		targets[id] = s
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("%w: %s", ErrNotConnected, userID)
	}

	var firstErr error
	var failedIDs []int64
	for id, s := range targets {
		if err := s.Send(msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failedIDs = append(failedIDs, id)
		}
	}

	// drop broken connections so later sends skip them
	for _, id := range failedIDs {
		h.Unregister(userID, id)
		if c, ok := targets[id].(closer); ok {
			c.Close()
		}
	}
	return firstErr
}

// Publish delivers msg to the sender's and the receiver's connections.
// Offline users are skipped.
func (h *Hub) Publish(msg messaging.Message) {
	users := []string{msg.SenderID}
	if msg.ReceiverID != msg.SenderID {
		users = append(users, msg.ReceiverID)
	}
	for _, u := range users {
		if err := h.SendToUser(u, msg); err != nil && !errors.Is(err, ErrNotConnected) {
			h.log.Warn().Err(err).Str("user_id", u).Str("message_id", msg.ID).Msg("realtime delivery failed")
		}
	}
}

// Subscribe registers a channel-backed connection for userID. The returned
// func unregisters it and closes the channel; it is safe to call more than
// once. A subscriber that falls behind by more than the buffer is dropped and
// its channel closed.
func (h *Hub) Subscribe(userID string) (<-chan messaging.Message, func()) {
	s := newChanSender(subscriptionBuffer)
	id := h.Register(userID, s)
	return s.ch, func() {
		h.Unregister(userID, id)
		s.Close()
	}
}
