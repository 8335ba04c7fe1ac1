package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/rs/zerolog"
)

// ProfileCache is a read-through cache in front of a messaging.ProfileStore.
// Cache failures fall through to the store; profiles are display data, so a
// short TTL bounds staleness.
type ProfileCache struct {
	next  messaging.ProfileStore
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

var _ messaging.ProfileStore = (*ProfileCache)(nil)

// NewProfileCache wraps next.
func NewProfileCache(next messaging.ProfileStore, c Cache, ttl time.Duration, log zerolog.Logger) *ProfileCache {
	return &ProfileCache{next: next, cache: c, ttl: ttl, log: log}
}

// ProfileKey is the cache key of a profile.
func ProfileKey(id string) string { return "profile:" + id }

func (p *ProfileCache) lookup(ctx context.Context, id string) (messaging.UserProfile, bool) {
	raw, err := p.cache.Get(ctx, ProfileKey(id))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			p.log.Warn().Err(err).Str("user_id", id).Msg("profile cache read failed")
		}
		return messaging.UserProfile{}, false
	}
	var prof messaging.UserProfile
	if err := json.Unmarshal([]byte(raw), &prof); err != nil {
		return messaging.UserProfile{}, false
	}
	return prof, true
}

func (p *ProfileCache) store(ctx context.Context, prof messaging.UserProfile) {
	raw, err := json.Marshal(prof)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, ProfileKey(prof.ID), string(raw), p.ttl); err != nil {
		p.log.Warn().Err(err).Str("user_id", prof.ID).Msg("profile cache write failed")
	}
}

func (p *ProfileCache) ProfileByID(ctx context.Context, id string) (messaging.UserProfile, error) {
	if prof, ok := p.lookup(ctx, id); ok {
		return prof, nil
	}
	prof, err := p.next.ProfileByID(ctx, id)
	if err != nil {
		return prof, err
	}
	p.store(ctx, prof)
	return prof, nil
}

// ProfilesByIDs serves cached ids and fetches the rest in one batch.
func (p *ProfileCache) ProfilesByIDs(ctx context.Context, ids []string) (map[string]messaging.UserProfile, error) {
	out := make(map[string]messaging.UserProfile, len(ids))
	var missing []string
	for _, id := range ids {
		if prof, ok := p.lookup(ctx, id); ok {
			out[id] = prof
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := p.next.ProfilesByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, prof := range fetched {
		out[id] = prof
		p.store(ctx, prof)
	}
	return out, nil
}

// SearchProfiles is not cached.
func (p *ProfileCache) SearchProfiles(ctx context.Context, query, excludeID string, limit int64) ([]messaging.UserProfile, error) {
	return p.next.SearchProfiles(ctx, query, excludeID, limit)
}
