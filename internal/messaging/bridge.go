package messaging

import (
	"context"
	"time"
)

// resubscribeDelay spaces out subscriptions when the feed keeps dropping one.
const resubscribeDelay = 50 * time.Millisecond

// Event is something the session reducer applies to its state.
type Event interface {
	isEvent()
}

// MessageInserted is a message row reported by the realtime feed.
type MessageInserted struct {
	Message Message
}

// FeedReset reports that the feed dropped the subscription and a new one
// replaced it. Inserts published in between were not delivered.
type FeedReset struct{}

func (MessageInserted) isEvent() {}
func (FeedReset) isEvent()       {}

// Bridge turns the feed of one user into MessageInserted events.
type Bridge struct {
	feed   Feed
	userID string
}

// NewBridge returns a bridge for userID over feed.
func NewBridge(feed Feed, userID string) *Bridge {
	return &Bridge{feed: feed, userID: userID}
}

// Attach subscribes right away and returns the forwarding loop, so inserts
// published after Attach returns reach the loop even if it starts later.
//
// When the feed closes the subscription while ctx is still live (a slow
// subscriber), the loop subscribes again and sends FeedReset so the reader
// can reload what it missed. The loop releases its subscription when it
// returns.
func (b *Bridge) Attach() func(ctx context.Context, out chan<- Event) {
	msgs, unsubscribe := b.feed.Subscribe(b.userID)
	return func(ctx context.Context, out chan<- Event) {
		for {
			b.forward(ctx, msgs, out)
			unsubscribe()
			if ctx.Err() != nil {
				return
			}

			select {
			case <-time.After(resubscribeDelay):
			case <-ctx.Done():
				return
			}
			msgs, unsubscribe = b.feed.Subscribe(b.userID)
			select {
			case out <- FeedReset{}:
			case <-ctx.Done():
				unsubscribe()
				return
			}
		}
	}
}

// Run forwards inserts to out until ctx is done. The subscription is
// released before Run returns.
func (b *Bridge) Run(ctx context.Context, out chan<- Event) {
	b.Attach()(ctx, out)
}

// forward returns when ctx is done or the feed closes msgs.
func (b *Bridge) forward(ctx context.Context, msgs <-chan Message, out chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if !m.Involves(b.userID) {
				continue
			}
			select {
			case out <- MessageInserted{Message: m}:
			case <-ctx.Done():
				return
			}
		}
	}
}
