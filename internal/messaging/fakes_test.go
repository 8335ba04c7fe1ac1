package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var errBackend = errors.New("backend down")

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

// memStore is an in-memory MessageStore and ProfileStore.
type memStore struct {
	mu       sync.Mutex
	msgs     []Message
	profiles map[string]UserProfile
	seq      int
	now      func() time.Time

	inserts      int
	listCalls    int
	markReadIDs  [][]string
	markReadFrom int

	failInsert   bool
	failCount    bool
	failProfiles bool
	failMarkRead bool
	failProfile  map[string]bool

	publisher Publisher
}

func newMemStore(profiles ...UserProfile) *memStore {
	s := &memStore{profiles: map[string]UserProfile{}, failProfile: map[string]bool{}}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	s.now = func() time.Time { return at(1000 + s.seq) }
	return s
}

func (s *memStore) seed(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msgs...)
}

func (s *memStore) InsertMessage(_ context.Context, senderID, receiverID, content string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return Message{}, errBackend
	}
	s.seq++
	s.inserts++
	m := Message{
		ID:         fmt.Sprintf("m%03d", s.seq),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now(),
	}
	s.msgs = append(s.msgs, m)
	return m, nil
}

func (s *memStore) MessagesForUser(_ context.Context, userID string, limit int64) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var out []Message
	for _, m := range s.msgs {
		if m.Involves(userID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].newerThan(out[j]) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Thread(_ context.Context, userID, counterpartID string, limit int64) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.msgs {
		if m.Involves(userID) && m.Counterpart(userID) == counterpartID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].newerThan(out[i]) })
	if int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (s *memStore) CountBetween(_ context.Context, a, b string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCount {
		return 0, errBackend
	}
	var n int64
	for _, m := range s.msgs {
		if m.Involves(a) && m.Counterpart(a) == b {
			n++
		}
	}
	return n, nil
}

func (s *memStore) MarkRead(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMarkRead {
		return errBackend
	}
	s.markReadIDs = append(s.markReadIDs, append([]string(nil), ids...))
	set := map[string]bool{}
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

func (s *memStore) MarkReadFrom(_ context.Context, receiverID, senderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMarkRead {
		return 0, errBackend
	}
	s.markReadFrom++
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

func (s *memStore) ProfileByID(_ context.Context, id string) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failProfile[id] {
		return UserProfile{}, errBackend
	}
	p, ok := s.profiles[id]
	if !ok {
		return UserProfile{}, ErrNotFound
	}
	return p, nil
}

func (s *memStore) ProfilesByIDs(_ context.Context, ids []string) (map[string]UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failProfiles {
		return nil, errBackend
	}
	out := map[string]UserProfile{}
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *memStore) SearchProfiles(_ context.Context, query, excludeID string, limit int64) ([]UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var ids []string
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []UserProfile
	for _, id := range ids {
		p := s.profiles[id]
		if id == excludeID {
			continue
		}
		for _, f := range []string{p.FirstName, p.LastName, p.CompanyName} {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, p)
				break
			}
		}
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func (s *memStore) insertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// memAttempts is an AttemptStore backed by a set.
type memAttempts struct {
	mu   sync.Mutex
	seen map[string]bool
	fail bool
}

func newMemAttempts() *memAttempts { return &memAttempts{seen: map[string]bool{}} }

func (a *memAttempts) Acquire(_ context.Context, current, target string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return false, errBackend
	}
	k := current + ":" + target
	if a.seen[k] {
		return false, nil
	}
	a.seen[k] = true
	return true, nil
}

// chanFeed is a Feed and Publisher fanning messages out to subscribers.
type chanFeed struct {
	mu   sync.Mutex
	subs map[string][]chan Message
}

func newChanFeed() *chanFeed { return &chanFeed{subs: map[string][]chan Message{}} }

func (f *chanFeed) Subscribe(userID string) (<-chan Message, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan Message, 16)
	f.subs[userID] = append(f.subs[userID], ch)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			list := f.subs[userID]
			for i, c := range list {
				if c == ch {
					f.subs[userID] = append(list[:i], list[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
}

// drop closes every subscription of userID the way the hub drops a slow
// subscriber.
func (f *chanFeed) drop(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[userID] {
		close(ch)
	}
	delete(f.subs, userID)
}

func (f *chanFeed) Publish(m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	targets := f.subs[m.SenderID]
	if m.ReceiverID != m.SenderID {
		targets = append(append([]chan Message(nil), targets...), f.subs[m.ReceiverID]...)
	}
	for _, ch := range targets {
		select {
		case ch <- m:
		default:
		}
	}
}

func (f *chanFeed) subscribers(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[userID])
}
