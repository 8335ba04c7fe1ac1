package messaging

import (
	"context"
	"fmt"

	"github.com/PaulBabatuyi/wastex-messaging/internal/normalize"
	"github.com/rs/zerolog"
)

const (
	// DefaultConversationFetchLimit bounds the messages read to derive the
	// conversation list.
	DefaultConversationFetchLimit int64 = 1000
	// DefaultThreadFetchLimit bounds the messages loaded for an open thread.
	DefaultThreadFetchLimit int64 = 200
	// SearchMinLength is the shortest query that hits the profile store.
	SearchMinLength = 2
	// SearchLimit caps search results.
	SearchLimit int64 = 5
)

// Options tunes a Service.
type Options struct {
	ConversationFetchLimit int64
	ThreadFetchLimit       int64
	// Publisher, when set, receives every message sent through the service.
	// Leave nil when inserts reach the feed through a change stream.
	Publisher Publisher
	Logger    zerolog.Logger
}

// Service implements the stateless messaging operations on top of the stores.
type Service struct {
	messages    MessageStore
	profiles    ProfileStore
	attempts    AttemptStore
	publisher   Publisher
	listLimit   int64
	threadLimit int64
	log         zerolog.Logger
}

// NewService wires a Service.
func NewService(messages MessageStore, profiles ProfileStore, attempts AttemptStore, opts Options) *Service {
	s := &Service{
		messages:    messages,
		profiles:    profiles,
		attempts:    attempts,
		publisher:   opts.Publisher,
		listLimit:   opts.ConversationFetchLimit,
		threadLimit: opts.ThreadFetchLimit,
		log:         opts.Logger,
	}
	if s.listLimit <= 0 {
		s.listLimit = DefaultConversationFetchLimit
	}
	if s.threadLimit <= 0 {
		s.threadLimit = DefaultThreadFetchLimit
	}
	return s
}

// Conversations derives the conversation list of userID from a fresh fetch.
// Without a user there are no conversations.
func (s *Service) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	if userID == "" {
		return nil, nil
	}
	msgs, err := s.messages.MessagesForUser(ctx, userID, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("load messages for %s: %w", userID, err)
	}
	ids := Counterparts(msgs, userID)
	if len(ids) == 0 {
		return nil, nil
	}

	profiles, err := s.profiles.ProfilesByIDs(ctx, ids)
	if err != nil {
		// names are best effort; placeholders keep the list usable
		s.log.Warn().Err(err).Int("count", len(ids)).Msg("counterpart profile lookup failed")
		profiles = nil
	}
	return Aggregate(msgs, userID, profiles), nil
}

// OpenThread loads the thread between userID and counterpartID and marks the
// counterpart's unread messages read. The returned messages already carry the
// read flag. A failing mark-read is logged, not returned.
func (s *Service) OpenThread(ctx context.Context, userID, counterpartID string) ([]Message, error) {
	if userID == "" {
		return nil, ErrNoCurrentUser
	}
	if counterpartID == "" {
		return nil, ErrMissingRecipient
	}
	msgs, err := s.messages.Thread(ctx, userID, counterpartID, s.threadLimit)
	if err != nil {
		return nil, fmt.Errorf("load thread %s/%s: %w", userID, counterpartID, err)
	}

	// a full page may hide older unread rows, so the update goes by sender
	if len(UnreadFrom(msgs, counterpartID)) == 0 && int64(len(msgs)) < s.threadLimit {
		return msgs, nil
	}
	if _, err := s.messages.MarkReadFrom(ctx, userID, counterpartID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("counterpart_id", counterpartID).
			Msg("mark read failed")
		return msgs, nil
	}
	for i := range msgs {
		if msgs[i].SenderID == counterpartID {
			msgs[i].IsRead = true
		}
	}
	return msgs, nil
}

// MarkRead marks every unread message counterpartID sent to userID read
// without loading the thread, and reports how many changed.
func (s *Service) MarkRead(ctx context.Context, userID, counterpartID string) (int64, error) {
	if userID == "" {
		return 0, ErrNoCurrentUser
	}
	if counterpartID == "" {
		return 0, ErrMissingRecipient
	}
	n, err := s.messages.MarkReadFrom(ctx, userID, counterpartID)
	if err != nil {
		return 0, fmt.Errorf("mark read %s/%s: %w", userID, counterpartID, err)
	}
	return n, nil
}

// Send persists a message from senderID to receiverID and returns the stored
// row.
func (s *Service) Send(ctx context.Context, senderID, receiverID, content string) (Message, error) {
	if senderID == "" {
		return Message{}, ErrNoCurrentUser
	}
	if receiverID == "" {
		return Message{}, ErrMissingRecipient
	}
	body := normalize.Content(content)
	if body == "" {
		return Message{}, ErrEmptyMessage
	}

	msg, err := s.messages.InsertMessage(ctx, senderID, receiverID, body)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if s.publisher != nil {
		s.publisher.Publish(msg)
	}
	return msg, nil
}

// Search finds users by name or company. Short queries return nothing.
func (s *Service) Search(ctx context.Context, userID, query string) ([]UserProfile, error) {
	if len([]rune(query)) < SearchMinLength {
		return nil, nil
	}
	profiles, err := s.profiles.SearchProfiles(ctx, query, userID, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	return profiles, nil
}

// Profile resolves a single user.
func (s *Service) Profile(ctx context.Context, id string) (UserProfile, error) {
	return s.profiles.ProfileByID(ctx, id)
}

// NewAutoContact returns a fresh auto-contact state machine. Each session
// (mount) owns exactly one.
func (s *Service) NewAutoContact() *AutoContact {
	return &AutoContact{svc: s, state: ContactIdle}
}
