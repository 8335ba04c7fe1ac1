package realtime

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/rs/zerolog"
)

// InsertWatcher streams inserted messages until ctx is done.
type InsertWatcher interface {
	WatchInserts(ctx context.Context, handle func(messaging.Message)) error
}

// Pump forwards a store's insert stream to a publisher, reopening the
// stream with exponential backoff when it fails.
type Pump struct {
	watcher    InsertWatcher
	publisher  messaging.Publisher
	log        zerolog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewPump returns a pump from watcher to publisher.
func NewPump(watcher InsertWatcher, publisher messaging.Publisher, log zerolog.Logger) *Pump {
	return &Pump{
		watcher:    watcher,
		publisher:  publisher,
		log:        log,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) {
	backoff := p.minBackoff
	for {
		started := time.Now()
		err := p.watcher.WatchInserts(ctx, p.publisher.Publish)
		if ctx.Err() != nil {
			return
		}
		// a stream that ran for a while earns a fresh backoff
		if time.Since(started) > p.maxBackoff {
			backoff = p.minBackoff
		}
		if err != nil {
			p.log.Error().Err(err).Dur("retry_in", backoff).Msg("message change stream failed")
		} else {
			p.log.Warn().Dur("retry_in", backoff).Msg("message change stream ended")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > p.maxBackoff {
			backoff = p.maxBackoff
		}
	}
}
