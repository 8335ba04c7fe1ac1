package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
)

// AttemptGuard persists the auto-contact "already attempted" flag per
// (current user, target user) pair. It implements messaging.AttemptStore.
type AttemptGuard struct {
	cache Cache
	ttl   time.Duration
}

var _ messaging.AttemptStore = (*AttemptGuard)(nil)

// NewAttemptGuard returns a guard whose flags expire after ttl.
func NewAttemptGuard(c Cache, ttl time.Duration) *AttemptGuard {
	return &AttemptGuard{cache: c, ttl: ttl}
}

// AttemptKey is the cache key of the flag for a pair.
func AttemptKey(currentUserID, targetUserID string) string {
	return "autocontact:" + currentUserID + ":" + targetUserID
}

// Acquire sets the flag and reports whether this call was the one that set it.
func (g *AttemptGuard) Acquire(ctx context.Context, currentUserID, targetUserID string) (bool, error) {
	ok, err := g.cache.SetNX(ctx, AttemptKey(currentUserID, targetUserID), time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire auto-contact flag: %w", err)
	}
	return ok, nil
}
