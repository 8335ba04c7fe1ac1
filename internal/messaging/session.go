package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	sessionQueueSize = 64
	reduceTimeout    = 5 * time.Second
)

// Update is a state change a session reports to its owner.
type Update interface {
	isUpdate()
}

// ConversationsUpdated carries the full conversation list after a change.
type ConversationsUpdated struct {
	Conversations []Conversation
}

// ThreadUpdated carries the full open thread after a change.
type ThreadUpdated struct {
	CounterpartID string
	Messages      []Message
}

// SendFailed reports a failed send. Content is the input as typed so the
// caller can offer it for retry.
type SendFailed struct {
	ReceiverID string
	Content    string
	Err        error
}

func (ConversationsUpdated) isUpdate() {}
func (ThreadUpdated) isUpdate()        {}
func (SendFailed) isUpdate()           {}

// Session is the messaging view of one connected user: the conversation
// list, the open thread and the realtime subscription feeding both. Realtime
// inserts are queued as events and applied by a single reducer goroutine;
// every state change is published on Updates.
//
// A session without a user (anonymous connection) has no conversations and
// cannot send.
type Session struct {
	svc     *Service
	userID  string
	log     zerolog.Logger
	contact *AutoContact

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan Event
	out    chan Update
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	convs  *ConversationList
	thread *Thread
}

// NewSession starts a session for userID. feed may be nil when no realtime
// delivery is wanted. The session runs until Close or until ctx is done.
func NewSession(ctx context.Context, svc *Service, feed Feed, userID string) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		svc:     svc,
		userID:  userID,
		log:     svc.log.With().Str("user_id", userID).Logger(),
		contact: svc.NewAutoContact(),
		ctx:     ctx,
		cancel:  cancel,
		inbox:   make(chan Event, sessionQueueSize),
		out:     make(chan Update, sessionQueueSize),
		convs:   NewConversationList(nil),
	}

	if userID != "" && feed != nil {
		forward := NewBridge(feed, userID).Attach()
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			forward(ctx, s.inbox)
		}()
		go func() {
			defer s.wg.Done()
			s.reduce(ctx)
		}()
	}
	return s
}

// UserID is the user the session acts as; empty for anonymous sessions.
func (s *Session) UserID() string { return s.userID }

// Updates delivers state changes. It is closed by Close.
func (s *Session) Updates() <-chan Update { return s.out }

// Conversations returns the current conversation list.
func (s *Session) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs.Items()
}

// Thread returns the open counterpart and its messages.
func (s *Session) Thread() (string, []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thread == nil {
		return "", nil
	}
	return s.thread.CounterpartID(), s.thread.Messages()
}

// Load fetches the conversation list.
func (s *Session) Load(ctx context.Context) error {
	fresh, err := s.svc.Conversations(ctx, s.userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.convs.Refresh(fresh)
	s.emitConversations()
	return nil
}

// Open makes counterpartID the active conversation, loads the thread and
// marks the counterpart's messages read. The local unread count is zeroed
// before the backend is asked.
func (s *Session) Open(ctx context.Context, counterpartID string) error {
	if s.userID == "" {
		return ErrNoCurrentUser
	}
	if counterpartID == "" {
		return ErrMissingRecipient
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.convs.ZeroUnread(counterpartID)
	s.thread = NewThread(s.userID, counterpartID, nil)
	s.emitConversations()
	s.mu.Unlock()

	return s.loadThread(ctx, counterpartID)
}

// loadThread fetches the thread of counterpartID, marks it read and merges it
// into the open thread if that is still counterpartID.
func (s *Session) loadThread(ctx context.Context, counterpartID string) error {
	msgs, err := s.svc.OpenThread(ctx, s.userID, counterpartID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.thread == nil || s.thread.CounterpartID() != counterpartID {
		return nil
	}
	// realtime inserts that landed while loading stay in the thread
	for _, m := range msgs {
		s.thread.Append(m)
	}
	s.thread.MarkRead(UnreadFrom(s.thread.Messages(), counterpartID))
	s.emitThread()
	return nil
}

// Select seeds a conversation for profile, even with no messages yet, and
// opens it.
func (s *Session) Select(ctx context.Context, profile UserProfile) error {
	if profile.ID == "" {
		return ErrMissingRecipient
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.convs.Seed(profile)
	s.mu.Unlock()
	return s.Open(ctx, profile.ID)
}

// Send sends content to the open conversation. The persisted row is merged
// into the thread by id, so the realtime echo of the same row is a no-op.
// Failures are reported as SendFailed with the content as typed.
func (s *Session) Send(ctx context.Context, content string) (Message, error) {
	s.mu.Lock()
	var receiverID string
	if s.thread != nil {
		receiverID = s.thread.CounterpartID()
	}
	s.mu.Unlock()

	msg, err := s.svc.Send(ctx, s.userID, receiverID, content)
	if err != nil {
		s.log.Error().Err(err).Str("receiver_id", receiverID).Msg("send failed")
		s.deliver(ctx, SendFailed{ReceiverID: receiverID, Content: content, Err: err})
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyOwn(msg)
	return msg, nil
}

// Search looks up users to start a conversation with.
func (s *Session) Search(ctx context.Context, query string) ([]UserProfile, error) {
	if s.userID == "" {
		return nil, nil
	}
	return s.svc.Search(ctx, s.userID, query)
}

// ContactSeller runs the deep-link auto-contact machine of this session. The
// target is selected as soon as it resolves.
func (s *Session) ContactSeller(ctx context.Context, link DeepLink) (ContactOutcome, error) {
	out, err := s.contact.Run(ctx, s.userID, link, func(target UserProfile) {
		if err := s.Select(ctx, target); err != nil {
			s.log.Warn().Err(err).Str("target_id", target.ID).Msg("select contact target failed")
		}
	})
	if err != nil {
		return out, err
	}
	if out.Sent != nil {
		s.mu.Lock()
		s.applyOwn(*out.Sent)
		s.mu.Unlock()
	}
	return out, nil
}

// Close releases the realtime subscription and closes Updates. State is not
// touched after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	close(s.out)
	s.mu.Unlock()
}

func (s *Session) reduce(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.inbox:
			batch := []Event{ev}
		drain:
			for {
				select {
				case ev := <-s.inbox:
					batch = append(batch, ev)
				default:
					break drain
				}
			}
			s.apply(ctx, batch)
		}
	}
}

// apply merges a batch of realtime events into the open thread and then
// refreshes the conversation list from the store once for the whole batch.
// After a FeedReset the open thread is reloaded as well.
func (s *Session) apply(ctx context.Context, batch []Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var (
		read    []string
		changed bool
		reset   bool
	)
	for _, ev := range batch {
		switch ev := ev.(type) {
		case MessageInserted:
			m := ev.Message
			if s.thread == nil || !s.thread.Belongs(m) || !s.thread.Append(m) {
				continue
			}
			changed = true
			// the counterpart's message is on screen, so it is read
			if m.SenderID == s.thread.CounterpartID() && !m.IsRead {
				read = append(read, m.ID)
			}
		case FeedReset:
			reset = true
		}
	}
	if len(read) > 0 {
		s.thread.MarkRead(read)
	}
	if changed {
		s.emitThread()
	}
	var reload string
	if reset && s.thread != nil {
		reload = s.thread.CounterpartID()
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, reduceTimeout)
	defer cancel()

	if reset {
		s.log.Warn().Msg("realtime subscription replaced, reloading")
	}
	if len(read) > 0 {
		if err := s.svc.messages.MarkRead(ctx, read); err != nil {
			s.log.Error().Err(err).Int("count", len(read)).Msg("mark read failed")
		}
	}
	if reload != "" {
		if err := s.loadThread(ctx, reload); err != nil {
			s.log.Error().Err(err).Str("counterpart_id", reload).Msg("reload thread failed")
		}
	}

	fresh, err := s.svc.Conversations(ctx, s.userID)
	if err != nil {
		s.log.Error().Err(err).Msg("refresh conversations failed")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.convs.Refresh(fresh)
	s.emitConversations()
}

// applyOwn merges a message the session itself sent. Callers hold s.mu.
func (s *Session) applyOwn(msg Message) {
	if s.closed {
		return
	}
	if s.thread != nil && s.thread.Belongs(msg) && s.thread.Append(msg) {
		s.emitThread()
	}
	if _, ok := s.convs.Get(msg.ReceiverID); !ok {
		s.convs.Seed(PlaceholderProfile(msg.ReceiverID))
	}
	s.convs.Touch(msg.ReceiverID, msg)
	s.emitConversations()
}

func (s *Session) emitConversations() {
	s.emit(ConversationsUpdated{Conversations: s.convs.Items()})
}

func (s *Session) emitThread() {
	s.emit(ThreadUpdated{CounterpartID: s.thread.CounterpartID(), Messages: s.thread.Messages()})
}

// deliver publishes u and waits for room in the queue until ctx is done or
// the session closes. Used for updates that no later snapshot replaces.
// Callers must not hold s.mu.
func (s *Session) deliver(ctx context.Context, u Update) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	select {
	case s.out <- u:
	case <-ctx.Done():
		s.log.Warn().Type("update", u).Msg("session update not delivered")
	case <-s.ctx.Done():
	}
}

// emit publishes u without blocking. Callers hold s.mu. Conversation and
// thread updates are full snapshots, so a dropped one is superseded by the
// next.
func (s *Session) emit(u Update) {
	if s.closed {
		return
	}
	select {
	case s.out <- u:
	default:
		s.log.Warn().Type("update", u).Msg("session update queue full, dropping")
	}
}
