package intent

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls []Intent
	gate  chan struct{} // when set, each call waits for a token
}

func (r *recorder) exec(ctx context.Context, in Intent) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, in)
	return nil
}

func (r *recorder) snapshot() []Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Intent, len(r.calls))
	copy(out, r.calls)
	return out
}

func move(item uint, newSeq int) Intent {
	return Intent{Kind: "cards", Move: MoveRequest{ItemID: item, NewSeqNo: newSeq}}
}

func card(id uint) Key {
	return Key{Kind: "cards", ItemID: id}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedule_CollapsesBurst(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec.exec)
	defer q.Close()

	for i := 1; i <= 5; i++ {
		q.Schedule(move(1, i), 50*time.Millisecond)
	}
	eventually(t, func() bool { return len(rec.snapshot()) == 1 })
	time.Sleep(100 * time.Millisecond)

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Move.NewSeqNo != 5 {
		t.Errorf("executed intent NewSeqNo = %d, want 5 (the last)", calls[0].Move.NewSeqNo)
	}
	if q.Pending(card(1)) {
		t.Error("item still pending after execution")
	}
}

func TestSchedule_IndependentItems(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec.exec)
	defer q.Close()

	q.Schedule(move(1, 2), 10*time.Millisecond)
	q.Schedule(move(2, 3), 10*time.Millisecond)
	eventually(t, func() bool { return len(rec.snapshot()) == 2 })
}

// Cards, lists and boards have separate id spaces; equal ids of different
// kinds must not replace each other.
func TestSchedule_KindsDoNotCollide(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec.exec)
	defer q.Close()

	list := Intent{Kind: "lists", Move: MoveRequest{ItemID: 7, NewSeqNo: 2}}
	q.Schedule(list, 50*time.Millisecond)
	q.Schedule(move(7, 3), 50*time.Millisecond)
	if !q.Pending(Key{Kind: "lists", ItemID: 7}) || !q.Pending(card(7)) {
		t.Fatal("both intents should be pending")
	}
	eventually(t, func() bool { return len(rec.snapshot()) == 2 })
	time.Sleep(80 * time.Millisecond)

	got := map[string]int{}
	for _, c := range rec.snapshot() {
		got[c.Kind] = c.Move.NewSeqNo
	}
	if len(rec.snapshot()) != 2 || got["lists"] != 2 || got["cards"] != 3 {
		t.Errorf("executed = %+v, want the list move and the card move", rec.snapshot())
	}
}

func TestIntentKey_DefaultsToCards(t *testing.T) {
	in := Intent{Move: MoveRequest{ItemID: 4}}
	if got := in.Key(); got != card(4) {
		t.Errorf("Key() = %+v, want %+v", got, card(4))
	}
}

func TestTeardown_KeyedByKind(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec.exec)
	defer q.Close()

	q.Schedule(Intent{Kind: "boards", Move: MoveRequest{ItemID: 1, NewSeqNo: 1}}, 30*time.Millisecond)
	if q.Teardown(card(1)) {
		t.Error("tearing down card 1 dropped the board intent")
	}
	eventually(t, func() bool { return len(rec.snapshot()) == 1 })
}

func TestTeardown_CancelsPending(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec.exec)
	defer q.Close()

	q.Schedule(move(1, 2), 30*time.Millisecond)
	if !q.Teardown(card(1)) {
		t.Error("Teardown reported nothing dropped")
	}
	if q.Teardown(card(1)) {
		t.Error("second Teardown reported a drop")
	}
	time.Sleep(80 * time.Millisecond)
	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestInFlight_OnlyNewestWaitingIntentRuns(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	var results sync.WaitGroup
	q := NewQueue(rec.exec, WithResultHandler(func(Intent, error) { results.Done() }))
	defer q.Close()

	results.Add(1)
	q.Schedule(move(1, 1), time.Millisecond)
	// Wait until the first call is blocked in exec.
	eventually(t, func() bool { return !q.Pending(card(1)) })

	q.Schedule(move(1, 2), time.Millisecond)
	eventually(t, func() bool { return !q.Pending(card(1)) })
	q.Schedule(move(1, 3), time.Millisecond)
	eventually(t, func() bool { return !q.Pending(card(1)) })

	results.Add(1)
	rec.gate <- struct{}{}
	rec.gate <- struct{}{}
	results.Wait()

	calls := rec.snapshot()
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[0].Move.NewSeqNo != 1 || calls[1].Move.NewSeqNo != 3 {
		t.Errorf("executed = %d then %d, want 1 then 3", calls[0].Move.NewSeqNo, calls[1].Move.NewSeqNo)
	}
}

func TestClose_CancelsEverything(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	var errs []error
	var mu sync.Mutex
	q := NewQueue(rec.exec, WithResultHandler(func(_ Intent, err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))

	q.Schedule(move(1, 1), time.Millisecond)
	eventually(t, func() bool { return !q.Pending(card(1)) })
	q.Schedule(move(2, 1), time.Hour)

	q.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || errs[0] == nil {
		t.Errorf("results = %v, want one cancelled call", errs)
	}
	q.Schedule(move(3, 1), time.Millisecond)
	if q.Pending(card(3)) {
		t.Error("Schedule after Close queued an intent")
	}
}
