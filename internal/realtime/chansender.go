package realtime

import (
	"errors"
	"sync"

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
)

const subscriptionBuffer = 128

// ErrSlowConsumer is returned when a subscriber's buffer is full.
var ErrSlowConsumer = errors.New("subscriber buffer full")

var errClosed = errors.New("subscription closed")

// chanSender is a Sender writing into a buffered channel.
type chanSender struct {
	mu     sync.Mutex
	ch     chan messaging.Message
	closed bool
}

func newChanSender(buf int) *chanSender {
	return &chanSender{ch: make(chan messaging.Message, buf)}
}

func (s *chanSender) Send(m messaging.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	select {
	case s.ch <- m:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (s *chanSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
