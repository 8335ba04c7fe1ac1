package messaging

import "sort"

// Thread is the message list of the open conversation, oldest first.
// Messages are keyed by id: the same row arriving from the send path and from
// the realtime feed is kept once, whichever comes first.
type Thread struct {
	userID        string
	counterpartID string
	msgs          []Message
	ids           map[string]struct{}
}

// NewThread returns a thread between userID and counterpartID seeded with msgs.
func NewThread(userID, counterpartID string, msgs []Message) *Thread {
	t := &Thread{userID: userID, counterpartID: counterpartID}
	t.Reset(msgs)
	return t
}

// CounterpartID is the other participant of the thread.
func (t *Thread) CounterpartID() string { return t.counterpartID }

// Reset replaces the thread contents with a fresh fetch.
func (t *Thread) Reset(msgs []Message) {
	t.msgs = make([]Message, 0, len(msgs))
	t.ids = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		t.Append(m)
	}
}

// Belongs reports whether m is a message between the two thread participants.
func (t *Thread) Belongs(m Message) bool {
	return (m.SenderID == t.userID && m.ReceiverID == t.counterpartID) ||
		(m.SenderID == t.counterpartID && m.ReceiverID == t.userID)
}

// Append adds m unless a message with the same id is already present. It
// reports whether the thread changed.
func (t *Thread) Append(m Message) bool {
	if _, ok := t.ids[m.ID]; ok {
		return false
	}
	t.ids[m.ID] = struct{}{}

	// Keep creation order even when the realtime echo overtakes the send reply.
	i := sort.Search(len(t.msgs), func(i int) bool {
		return t.msgs[i].newerThan(m)
	})
	t.msgs = append(t.msgs, Message{})
	copy(t.msgs[i+1:], t.msgs[i:])
	t.msgs[i] = m
	return true
}

// MarkRead flags the given ids as read locally.
func (t *Thread) MarkRead(ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range t.msgs {
		if _, ok := set[t.msgs[i].ID]; ok {
			t.msgs[i].IsRead = true
		}
	}
}

// Messages returns a copy of the thread.
func (t *Thread) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len is the number of messages in the thread.
func (t *Thread) Len() int { return len(t.msgs) }

// UnreadFrom returns ids of unread messages the counterpart sent.
func UnreadFrom(msgs []Message, counterpartID string) []string {
	var ids []string
	for _, m := range msgs {
		if m.SenderID == counterpartID && !m.IsRead {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
