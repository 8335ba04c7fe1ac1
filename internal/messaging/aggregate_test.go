package messaging

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_TwoMessageScenario(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "A", ReceiverID: "B", Content: "hi", CreatedAt: at(1)},
		{ID: "2", SenderID: "B", ReceiverID: "A", Content: "yo", CreatedAt: at(2)},
	}
	b := UserProfile{ID: "B", Email: "b@example.com"}

	convs := Aggregate(msgs, "A", map[string]UserProfile{"B": b})

	require.Len(t, convs, 1)
	assert.Equal(t, b, convs[0].Counterpart)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "2", convs[0].LastMessage.ID)
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestAggregate_MissingProfileGetsPlaceholder(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "A", ReceiverID: "ghost", CreatedAt: at(1)},
	}

	convs := Aggregate(msgs, "A", nil)

	require.Len(t, convs, 1)
	assert.Equal(t, "ghost", convs[0].Counterpart.ID)
	assert.Equal(t, UnknownUserEmail, convs[0].Counterpart.Email)
}

func TestAggregate_UnreadCountsOnlyIncoming(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "A", ReceiverID: "B", CreatedAt: at(1)},
		{ID: "2", SenderID: "A", ReceiverID: "B", CreatedAt: at(2)},
		{ID: "3", SenderID: "B", ReceiverID: "A", CreatedAt: at(3)},
		{ID: "4", SenderID: "B", ReceiverID: "A", CreatedAt: at(4), IsRead: true},
		{ID: "5", SenderID: "C", ReceiverID: "A", CreatedAt: at(5)},
		{ID: "6", SenderID: "C", ReceiverID: "A", CreatedAt: at(6)},
	}

	convs := Aggregate(msgs, "A", nil)

	require.Len(t, convs, 2)
	assert.Equal(t, "C", convs[0].Counterpart.ID)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Equal(t, "B", convs[1].Counterpart.ID)
	assert.Equal(t, 1, convs[1].UnreadCount)
}

func TestAggregate_IgnoresForeignMessages(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "X", ReceiverID: "Y", CreatedAt: at(1)},
	}
	assert.Empty(t, Aggregate(msgs, "A", nil))
	assert.Empty(t, Counterparts(msgs, "A"))
}

func TestAggregate_TimestampTieBrokenByID(t *testing.T) {
	msgs := []Message{
		{ID: "b", SenderID: "A", ReceiverID: "B", CreatedAt: at(1)},
		{ID: "a", SenderID: "B", ReceiverID: "A", CreatedAt: at(1)},
	}

	convs := Aggregate(msgs, "A", nil)
	require.Len(t, convs, 1)
	assert.Equal(t, "b", convs[0].LastMessage.ID)

	// input order must not matter
	msgs[0], msgs[1] = msgs[1], msgs[0]
	convs = Aggregate(msgs, "A", nil)
	assert.Equal(t, "b", convs[0].LastMessage.ID)
}

func TestCounterparts_FirstAppearanceOrder(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "C", ReceiverID: "A"},
		{ID: "2", SenderID: "A", ReceiverID: "B"},
		{ID: "3", SenderID: "A", ReceiverID: "C"},
	}
	assert.Equal(t, []string{"C", "B"}, Counterparts(msgs, "A"))
}

// randomMessages builds n messages between "U" and a handful of users.
func randomMessages(r *rand.Rand, n int) []Message {
	users := []string{"P1", "P2", "P3", "P4", "P5"}
	msgs := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		other := users[r.Intn(len(users))]
		m := Message{
			ID:        fmt.Sprintf("%04d", i),
			CreatedAt: at(r.Intn(50)),
			IsRead:    r.Intn(2) == 0,
		}
		if r.Intn(2) == 0 {
			m.SenderID, m.ReceiverID = "U", other
		} else {
			m.SenderID, m.ReceiverID = other, "U"
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestAggregate_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		msgs := randomMessages(r, r.Intn(40))
		convs := Aggregate(msgs, "U", nil)

		seen := map[string]bool{}
		for i, c := range convs {
			require.False(t, seen[c.Counterpart.ID], "duplicate counterpart %s", c.Counterpart.ID)
			seen[c.Counterpart.ID] = true

			if i > 0 {
				require.False(t, c.LastActivity().After(convs[i-1].LastActivity()), "order broken at %d", i)
			}

			want := 0
			for _, m := range msgs {
				if m.SenderID == c.Counterpart.ID && m.ReceiverID == "U" && !m.IsRead {
					want++
				}
			}
			require.Equal(t, want, c.UnreadCount)
		}
		require.Len(t, convs, len(Counterparts(msgs, "U")))
	}
}

func TestAggregate_MarkReadZeroesOnlyThatCounterpart(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	msgs := randomMessages(r, 60)
	before := map[string]int{}
	for _, c := range Aggregate(msgs, "U", nil) {
		before[c.Counterpart.ID] = c.UnreadCount
	}

	for _, id := range UnreadFrom(msgs, "P2") {
		for i := range msgs {
			if msgs[i].ID == id {
				msgs[i].IsRead = true
			}
		}
	}

	for _, c := range Aggregate(msgs, "U", nil) {
		if c.Counterpart.ID == "P2" {
			assert.Zero(t, c.UnreadCount)
			continue
		}
		assert.Equal(t, before[c.Counterpart.ID], c.UnreadCount, c.Counterpart.ID)
	}
}
