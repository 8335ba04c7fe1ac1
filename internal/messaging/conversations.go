package messaging

import (
	"sort"
)

// ConversationList is a conversation list that holds at most one entry per
// counterpart id, newest first. Every mutation rebuilds the id map, so entries
// coming from a refetch, a realtime insert or an optimistic send overwrite each
// other instead of piling up.
//
// ConversationList is not safe for concurrent use; Session guards it.
type ConversationList struct {
	items []Conversation
}

// NewConversationList returns a list holding convs after dedup and sorting.
func NewConversationList(convs []Conversation) *ConversationList {
	l := &ConversationList{}
	l.merge(nil, convs)
	return l
}

// Items returns a copy of the list.
func (l *ConversationList) Items() []Conversation {
	out := make([]Conversation, len(l.items))
	copy(out, l.items)
	return out
}

// Len is the number of conversations.
func (l *ConversationList) Len() int { return len(l.items) }

// Get returns the conversation with the given counterpart.
func (l *ConversationList) Get(counterpartID string) (Conversation, bool) {
	for _, c := range l.items {
		if c.Counterpart.ID == counterpartID {
			return c, true
		}
	}
	return Conversation{}, false
}

// Refresh replaces the list with a fresh derivation. Entries the derivation
// does not know about are dropped unless they were seeded without a message.
func (l *ConversationList) Refresh(fresh []Conversation) {
	var kept []Conversation
	for _, c := range l.items {
		if c.LastMessage == nil {
			kept = append(kept, c)
		}
	}
	l.items = nil
	l.merge(kept, fresh)
}

// Upsert inserts c or overwrites the entry with the same counterpart.
func (l *ConversationList) Upsert(c Conversation) {
	l.merge(l.items, []Conversation{c})
}

// Seed adds an empty conversation for profile unless one already exists.
// Used when a user is picked from search or a contact link before any message
// exists between the pair.
func (l *ConversationList) Seed(profile UserProfile) {
	if _, ok := l.Get(profile.ID); ok {
		return
	}
	l.Upsert(Conversation{Counterpart: profile})
}

// ZeroUnread clears the unread counter of one conversation.
func (l *ConversationList) ZeroUnread(counterpartID string) {
	c, ok := l.Get(counterpartID)
	if !ok || c.UnreadCount == 0 {
		return
	}
	c.UnreadCount = 0
	l.Upsert(c)
}

// Touch records msg, sent by the current user to counterpartID, as the latest
// message of that conversation. Unknown counterparts are left alone; the next
// refresh picks them up.
func (l *ConversationList) Touch(counterpartID string, msg Message) {
	c, ok := l.Get(counterpartID)
	if !ok {
		return
	}
	if c.LastMessage != nil && c.LastMessage.newerThan(msg) {
		return
	}
	m := msg
	c.LastMessage = &m
	c.UnreadCount = 0
	l.Upsert(c)
}

// merge builds the id map from base and then patches, later entries winning,
// and stores the flattened, sorted result.
func (l *ConversationList) merge(base, patches []Conversation) {
	byID := make(map[string]Conversation, len(base)+len(patches))
	for _, c := range base {
		byID[c.Counterpart.ID] = c
	}
	for _, c := range patches {
		byID[c.Counterpart.ID] = c
	}
	items := make([]Conversation, 0, len(byID))
	for _, c := range byID {
		items = append(items, c)
	}
	sortConversations(items)
	l.items = items
}

// sortConversations orders by last activity descending; conversations without
// messages sort last. Ties fall back to counterpart id.
func sortConversations(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		ti, tj := convs[i].LastActivity(), convs[j].LastActivity()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return convs[i].Counterpart.ID < convs[j].Counterpart.ID
	})
}
