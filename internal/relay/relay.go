// Package relay mirrors project activity to chat channels. Posting happens
// on a background worker; a full queue drops messages rather than blocking
// the write that produced them.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zulandar/boardsync/internal/config"
	"github.com/zulandar/boardsync/internal/logging"
)

const (
	defaultQueueSize = 256
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries  = 3
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
	postTimeout = 15 * time.Second
)

// Poster sends one line of text to a chat channel.
type Poster interface {
	Name() string
	Post(ctx context.Context, text string) error
}

type message struct {
	projectID uint
	text      string
}

// Relay fans messages out to every Poster. It implements broadcast.Sink.
type Relay struct {
	posters []Poster
	queue   chan message
	log     *slog.Logger
	wg      sync.WaitGroup
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
}

// New starts a relay over posters.
func New(log *slog.Logger, queueSize int, posters ...Poster) *Relay {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r := &Relay{posters: posters, queue: make(chan message, queueSize), log: log}
	r.wg.Add(1)
	go r.run()
	return r
}

// FromConfig builds posters for every enabled chat in cfg. It returns nil
// when none is enabled.
func FromConfig(cfg config.RelayConfig, log *slog.Logger) (*Relay, error) {
	var posters []Poster
	if cfg.Slack.Enabled() {
		posters = append(posters, NewSlack(cfg.Slack))
	}
	if cfg.Discord.Enabled() {
		p, err := NewDiscord(cfg.Discord)
		if err != nil {
			return nil, err
		}
		posters = append(posters, p)
	}
	if len(posters) == 0 {
		return nil, nil
	}
	return New(log, defaultQueueSize, posters...), nil
}

// Mirror queues message for every poster without blocking.
func (r *Relay) Mirror(_ context.Context, projectID uint, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- message{projectID: projectID, text: text}:
	default:
		r.dropped.Add(1)
		r.log.Warn("relay queue full, dropping message", logging.Project(projectID))
	}
}

// Dropped returns how many messages were discarded on a full queue.
func (r *Relay) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting messages and waits for queued ones to post.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Relay) run() {
	defer r.wg.Done()
	for m := range r.queue {
		text := fmt.Sprintf("[project %d] %s", m.projectID, m.text)
		for _, p := range r.posters {
			ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
			if err := p.Post(ctx, text); err != nil {
				r.log.Warn("relay post failed", slog.String("poster", p.Name()),
					logging.Project(m.projectID), logging.Err(err))
			}
			cancel()
		}
	}
}

// retryOnRateLimit calls fn and retries with exponential backoff while
// isRateLimited says so. retryAfter, when positive, overrides the backoff.
func retryOnRateLimit(ctx context.Context, base time.Duration, fn func() error, isRateLimited func(error) (bool, time.Duration)) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		limited, retryAfter := isRateLimited(err)
		if !limited || attempt == maxRetries {
			return err
		}

		wait := retryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * base
		}
		if wait > maxBackoff {
			wait = maxBackoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
