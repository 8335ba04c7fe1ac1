package messaging

// Counterparts returns the distinct ids userID has exchanged messages with, in
// order of first appearance in msgs.
func Counterparts(msgs []Message, userID string) []string {
	seen := make(map[string]struct{}, len(msgs))
	var ids []string
	for _, m := range msgs {
		if !m.Involves(userID) {
			continue
		}
		other := m.Counterpart(userID)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}
	return ids
}

// Aggregate derives one Conversation per counterpart of userID from msgs.
//
// The last message of each conversation is the newest message between the
// pair and the unread count is the number of unread messages the counterpart
// sent to userID. Counterparts missing from profiles get a placeholder profile.
// The result is sorted newest conversation first.
func Aggregate(msgs []Message, userID string, profiles map[string]UserProfile) []Conversation {
	type partition struct {
		last   *Message
		unread int
	}

	parts := make(map[string]*partition)
	for i := range msgs {
		m := msgs[i]
		if !m.Involves(userID) {
			continue
		}
		other := m.Counterpart(userID)
		p := parts[other]
		if p == nil {
			p = &partition{}
			parts[other] = p
		}
		if p.last == nil || m.newerThan(*p.last) {
			last := m
			p.last = &last
		}
		if m.SenderID == other && m.ReceiverID == userID && !m.IsRead {
			p.unread++
		}
	}

	convs := make([]Conversation, 0, len(parts))
	for id, p := range parts {
		profile, ok := profiles[id]
		if !ok {
			profile = PlaceholderProfile(id)
		}
		convs = append(convs, Conversation{
			Counterpart: profile,
			LastMessage: p.last,
			UnreadCount: p.unread,
		})
	}
	sortConversations(convs)
	return convs
}
