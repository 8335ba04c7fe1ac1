package messaging

import (
	"context"
	"errors"
)

// Errors returned by the messaging core.
var (
	ErrNoCurrentUser    = errors.New("messaging: no current user")
	ErrEmptyMessage     = errors.New("messaging: empty message")
	ErrMissingRecipient = errors.New("messaging: no recipient selected")
	ErrNotFound         = errors.New("messaging: not found")
)

// MessageStore is the backend message table.
type MessageStore interface {
	// InsertMessage persists a message and returns the stored row, including
	// the server-assigned id and timestamp.
	InsertMessage(ctx context.Context, senderID, receiverID, content string) (Message, error)
	// MessagesForUser returns up to limit messages userID sent or received,
	// newest first.
	MessagesForUser(ctx context.Context, userID string, limit int64) ([]Message, error)
	// Thread returns up to limit of the most recent messages between the two
	// users, oldest first.
	Thread(ctx context.Context, userID, counterpartID string, limit int64) ([]Message, error)
	// CountBetween counts messages between the two users in either direction.
	CountBetween(ctx context.Context, a, b string) (int64, error)
	// MarkRead sets is_read on the given ids in one update.
	MarkRead(ctx context.Context, ids []string) error
	// MarkReadFrom sets is_read on every unread message senderID sent to
	// receiverID in one update and reports how many changed.
	MarkReadFrom(ctx context.Context, receiverID, senderID string) (int64, error)
}

// ProfileStore resolves user profiles.
type ProfileStore interface {
	// ProfileByID returns ErrNotFound when the user does not exist.
	ProfileByID(ctx context.Context, id string) (UserProfile, error)
	// ProfilesByIDs resolves a batch of ids; unknown ids are absent from the map.
	ProfilesByIDs(ctx context.Context, ids []string) (map[string]UserProfile, error)
	// SearchProfiles matches query against first name, last name and company
	// name, excluding excludeID.
	SearchProfiles(ctx context.Context, query, excludeID string, limit int64) ([]UserProfile, error)
}

// Feed delivers inserted messages in which userID is sender or receiver.
// The returned func releases the subscription and closes the channel.
type Feed interface {
	Subscribe(userID string) (<-chan Message, func())
}

// Publisher hands freshly inserted messages to the realtime feed.
type Publisher interface {
	Publish(msg Message)
}

// AttemptStore records that the auto-contact message was attempted for a
// (current user, target user) pair.
type AttemptStore interface {
	// Acquire sets the flag and reports true only for the first caller.
	Acquire(ctx context.Context, currentUserID, targetUserID string) (bool, error)
}
