package messaging

import "time"

// Message is a directed message row. Only IsRead ever changes after insert.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
}

// Counterpart returns the other party of m as seen by userID.
func (m Message) Counterpart(userID string) string {
	if m.ReceiverID == userID {
		return m.SenderID
	}
	return m.ReceiverID
}

// Involves reports whether userID sent or received m.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// newerThan orders messages by creation time, breaking ties by id so that the
// choice of "latest" is deterministic.
func (m Message) newerThan(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.After(o.CreatedAt)
	}
	return m.ID > o.ID
}

// Conversation is derived from the message table; it is never persisted.
type Conversation struct {
	Counterpart UserProfile `json:"counterpart"`
	LastMessage *Message    `json:"last_message"`
	UnreadCount int         `json:"unread_count"`
}

// LastActivity is the creation time of the last message, or the zero time when
// the conversation has no messages yet.
func (c Conversation) LastActivity() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.CreatedAt
}
