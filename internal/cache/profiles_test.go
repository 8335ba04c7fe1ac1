package cache

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProfiles struct {
	profiles map[string]messaging.UserProfile
	byID     int
	batches  [][]string
	searches int
	fail     bool
}

func (c *countingProfiles) ProfileByID(_ context.Context, id string) (messaging.UserProfile, error) {
	c.byID++
	if c.fail {
		return messaging.UserProfile{}, errors.New("down")
	}
	p, ok := c.profiles[id]
	if !ok {
		return messaging.UserProfile{}, messaging.ErrNotFound
	}
	return p, nil
}

func (c *countingProfiles) ProfilesByIDs(_ context.Context, ids []string) (map[string]messaging.UserProfile, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	c.batches = append(c.batches, sorted)
	if c.fail {
		return nil, errors.New("down")
	}
	out := map[string]messaging.UserProfile{}
	for _, id := range ids {
		if p, ok := c.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *countingProfiles) SearchProfiles(context.Context, string, string, int64) ([]messaging.UserProfile, error) {
	c.searches++
	return nil, nil
}

// failingCache fails reads and writes.
type failingCache struct{ *Memory }

func (failingCache) Get(context.Context, string) (string, error) { return "", errors.New("conn refused") }
func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("conn refused")
}

func newProfiles() *countingProfiles {
	return &countingProfiles{profiles: map[string]messaging.UserProfile{
		"a": {ID: "a", Email: "a@example.com", FirstName: "Ann"},
		"b": {ID: "b", Email: "b@example.com", CompanyName: "Bee Ltd"},
	}}
}

func TestProfileCache_ReadThrough(t *testing.T) {
	store := newProfiles()
	m := NewMemory(0)
	defer m.Close()
	pc := NewProfileCache(store, m, time.Minute, zerolog.Nop())
	ctx := context.Background()

	p, err := pc.ProfileByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.FirstName)
	p, err = pc.ProfileByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, store.profiles["a"], p)
	assert.Equal(t, 1, store.byID)

	_, err = pc.ProfileByID(ctx, "missing")
	assert.ErrorIs(t, err, messaging.ErrNotFound)

	got, err := pc.ProfilesByIDs(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, store.batches, 1)
	assert.Equal(t, []string{"b", "missing"}, store.batches[0], "cached ids are not refetched")

	_, err = pc.SearchProfiles(ctx, "ann", "", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, store.searches)
}

func TestProfileCache_BackendErrors(t *testing.T) {
	store := newProfiles()
	pc := NewProfileCache(store, &failingCache{Memory: NewMemory(0)}, time.Minute, zerolog.Nop())
	ctx := context.Background()

	// a broken cache falls through to the store
	p, err := pc.ProfileByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Bee Ltd", p.CompanyName)

	store.fail = true
	_, err = pc.ProfilesByIDs(ctx, []string{"a"})
	assert.Error(t, err)
}
