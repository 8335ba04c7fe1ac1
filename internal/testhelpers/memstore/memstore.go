// Package memstore is an in-memory implementation of the user and message
// stores for transport tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/data"
	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/PaulBabatuyi/wastex-messaging/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store implements messaging.MessageStore, messaging.ProfileStore and the
// user lookups of accounts.
type Store struct {
	mu    sync.Mutex
	users map[string]*data.User // by hex id
	msgs  []messaging.Message
	base  time.Time
	seq   int
}

var (
	_ messaging.MessageStore = (*Store)(nil)
	_ messaging.ProfileStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users: map[string]*data.User{},
		base:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// AddProfile stores p as a user without a password. p.ID must be an ObjectID
// hex string or empty, in which case one is assigned.
func (s *Store) AddProfile(p messaging.UserProfile) messaging.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, err := bson.ObjectIDFromHex(p.ID)
	if err != nil {
		oid = bson.NewObjectID()
	}
	u := &data.User{
		ID:          oid,
		Email:       normalize.Email(p.Email),
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		CompanyName: p.CompanyName,
		Role:        p.Role,
	}
	s.users[oid.Hex()] = u
	return u.Profile()
}

func (s *Store) CreateUser(_ context.Context, in data.NewUser) (*data.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := normalize.Email(in.Email)
	for _, u := range s.users {
		if u.Email == email {
			return nil, data.ErrUserExists
		}
	}
	u := &data.User{
		ID:          bson.NewObjectID(),
		Email:       email,
		Password:    in.Password,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		CompanyName: in.CompanyName,
		Role:        in.Role,
		CreatedAt:   s.base,
		UpdatedAt:   s.base,
	}
	s.users[u.ID.Hex()] = u
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*data.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = normalize.Email(email)
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, data.ErrUserNotFound
}

func (s *Store) InsertMessage(_ context.Context, senderID, receiverID, content string) (messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	m := messaging.Message{
		ID:         bson.NewObjectID().Hex(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.base.Add(time.Duration(s.seq) * time.Second),
	}
	s.msgs = append(s.msgs, m)
	return m, nil
}

// Messages returns every stored message in insertion order.
func (s *Store) Messages() []messaging.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]messaging.Message(nil), s.msgs...)
}

func newer(a, b messaging.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (s *Store) MessagesForUser(_ context.Context, userID string, limit int64) ([]messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []messaging.Message
	for _, m := range s.msgs {
		if m.Involves(userID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Thread(_ context.Context, userID, counterpartID string, limit int64) ([]messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []messaging.Message
	for _, m := range s.msgs {
		if m.Involves(userID) && m.Counterpart(userID) == counterpartID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j], out[i]) })
	if int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (s *Store) CountBetween(_ context.Context, a, b string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		if m.Involves(a) && m.Counterpart(a) == b {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkRead(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for i := range s.msgs {
		if set[s.msgs[i].ID] {
			s.msgs[i].IsRead = true
		}
	}
	return nil
}

func (s *Store) MarkReadFrom(_ context.Context, receiverID, senderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *Store) ProfileByID(_ context.Context, id string) (messaging.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return messaging.UserProfile{}, messaging.ErrNotFound
	}
	return u.Profile(), nil
}

func (s *Store) ProfilesByIDs(_ context.Context, ids []string) (map[string]messaging.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]messaging.UserProfile, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Profile()
		}
	}
	return out, nil
}

func (s *Store) SearchProfiles(_ context.Context, query, excludeID string, limit int64) ([]messaging.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []messaging.UserProfile
	for _, id := range ids {
		if id == excludeID {
			continue
		}
		u := s.users[id]
		for _, f := range []string{u.FirstName, u.LastName, u.CompanyName} {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, u.Profile())
				break
			}
		}
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}
