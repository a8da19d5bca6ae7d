// Package intent is the client side of the move protocol: it debounces
// bursts of moves per item and posts the survivor to the server.
package intent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zulandar/boardsync/internal/logging"
)

// Intent is one captured drag result.
type Intent struct {
	Kind string // cards, lists or boards
	Move MoveRequest
}

// Key identifies the item an intent moves. Cards, lists and boards number
// their ids independently, so the kind is part of the key.
type Key struct {
	Kind   string
	ItemID uint
}

// Key returns the item in moves. An empty Kind means cards.
func (in Intent) Key() Key {
	kind := in.Kind
	if kind == "" {
		kind = "cards"
	}
	return Key{Kind: kind, ItemID: in.Move.ItemID}
}

// Func executes an intent. It is called from the item's worker goroutine.
type Func func(ctx context.Context, in Intent) error

// handle is a scheduled, cancellable call.
type handle struct {
	timer *time.Timer
}

// worker runs one item's fired intents one at a time. next holds the newest
// fired intent not yet started.
type worker struct {
	next    *Intent
	running bool
}

// Queue coalesces intents per item (kind and id). For a given item at most one call is
// in flight, and only the newest intent known when it starts is sent.
type Queue struct {
	exec     Func
	onResult func(Intent, error)
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[Key]*handle
	workers map[Key]*worker
	closed  bool
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithResultHandler is called after every executed intent.
func WithResultHandler(fn func(Intent, error)) QueueOption {
	return func(q *Queue) { q.onResult = fn }
}

// WithLogger sets the queue's logger.
func WithLogger(log *slog.Logger) QueueOption {
	return func(q *Queue) { q.log = log }
}

// NewQueue returns a Queue that runs intents through exec.
func NewQueue(exec Func, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		exec:    exec,
		log:     slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[Key]*handle),
		workers: make(map[Key]*worker),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Schedule replaces any pending intent for the same item with in and
// (re)starts its quiet period. The replaced intent is discarded, never executed.
func (q *Queue) Schedule(in Intent, quiet time.Duration) {
	k := in.Key()
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if old, ok := q.pending[k]; ok {
		old.timer.Stop()
		delete(q.pending, k)
	}
	h := &handle{}
	h.timer = time.AfterFunc(quiet, func() { q.fire(k, h, in) })
	q.pending[k] = h
}

// Teardown cancels k's pending intent and any fired intent still
// waiting behind an in-flight call. It reports whether anything was dropped.
func (q *Queue) Teardown(k Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := false
	if h, ok := q.pending[k]; ok {
		h.timer.Stop()
		delete(q.pending, k)
		dropped = true
	}
	if w, ok := q.workers[k]; ok && w.next != nil {
		w.next = nil
		dropped = true
	}
	return dropped
}

// Pending reports whether k has an intent waiting for its quiet period.
func (q *Queue) Pending(k Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[k]
	return ok
}

// Close cancels every pending intent, cancels in-flight calls and waits for
// workers to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	for id, h := range q.pending {
		h.timer.Stop()
		delete(q.pending, id)
	}
	for _, w := range q.workers {
		w.next = nil
	}
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
}

// fire moves a due intent to its item's worker. A handle that was replaced
// or torn down after its timer started is ignored.
func (q *Queue) fire(k Key, h *handle, in Intent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.pending[k] != h {
		return
	}
	delete(q.pending, k)

	w, ok := q.workers[k]
	if !ok {
		w = &worker{}
		q.workers[k] = w
	}
	w.next = &in
	if !w.running {
		w.running = true
		q.wg.Add(1)
		go q.run(k, w)
	}
}

func (q *Queue) run(k Key, w *worker) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		in := w.next
		if in == nil {
			w.running = false
			delete(q.workers, k)
			q.mu.Unlock()
			return
		}
		w.next = nil
		q.mu.Unlock()

		err := q.exec(q.ctx, *in)
		if err != nil {
			q.log.Warn("move intent failed", logging.Item(k.Kind, k.ItemID), logging.Err(err))
		}
		if q.onResult != nil {
			q.onResult(*in, err)
		}
	}
}
