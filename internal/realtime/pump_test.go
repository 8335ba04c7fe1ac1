package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/rs/zerolog"
)

// scriptedWatcher fails the first fails calls, then emits msgs and blocks.
type scriptedWatcher struct {
	mu    sync.Mutex
	calls int
	fails int
	msgs  []messaging.Message
}

func (w *scriptedWatcher) WatchInserts(ctx context.Context, handle func(messaging.Message)) error {
	w.mu.Lock()
	w.calls++
	call := w.calls
	w.mu.Unlock()

	if call <= w.fails {
		return errors.New("stream broke")
	}
	for _, m := range w.msgs {
		handle(m)
	}
	<-ctx.Done()
	return nil
}

func TestPump_RetriesAndPublishes(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ch, unsubscribe := hub.Subscribe("a")
	defer unsubscribe()

	w := &scriptedWatcher{fails: 2, msgs: []messaging.Message{{ID: "1", SenderID: "b", ReceiverID: "a"}}}
	p := NewPump(w, hub, zerolog.Nop())
	p.minBackoff = time.Millisecond
	p.maxBackoff = 4 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case m := <-ch:
		if m.ID != "1" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not deliver after retries")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop on cancel")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.calls != 3 {
		t.Fatalf("expected 3 watch attempts, got %d", w.calls)
	}
}
