package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

type feedSource struct {
	mu     sync.Mutex
	err    error
	feeds  []chan []record.Record
	calls  int
	scopes []string
}

func (f *feedSource) SubscribeRecords(ctx context.Context, channel, session string, _ int) (<-chan []record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.scopes = append(f.scopes, channel+"/"+session)
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan []record.Record, 4)
	f.feeds = append(f.feeds, ch)
	return ch, nil
}

func (f *feedSource) feed(t *testing.T, i int) chan []record.Record {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.feeds) > i {
			ch := f.feeds[i]
			f.mu.Unlock()
			return ch
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscription %d never opened", i)
	return nil
}

func (f *feedSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func next(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			t.Fatal("snapshots closed")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func rec(id, channel string, sec int) record.Record {
	return record.Record{
		ID:      id,
		Channel: channel,
		Session: record.DefaultSession,
		Content: id,
		Created: record.Timestamp{Time: time.Unix(int64(sec), 0)},
	}
}

func newAdapter(src Source) *Adapter {
	return New(src, WithLogger(logging.Discard()), WithRetry(10*time.Millisecond))
}

func TestSubscribeDeliversSortedDedupedSnapshots(t *testing.T) {
	src := &feedSource{}
	a := newAdapter(src)
	defer a.Close()

	sub := a.Subscribe(context.Background(), "coach", "")
	if sub.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", sub.Generation)
	}
	src.feed(t, 0) <- []record.Record{rec("b", "coach", 2), rec("a", "coach", 1), rec("b", "coach", 2), rec("x", "mood", 0)}

	snap := next(t, sub)
	if snap.Status != StatusLive {
		t.Fatalf("expected live, got %s", snap.Status)
	}
	if len(snap.Records) != 2 || snap.Records[0].ID != "a" || snap.Records[1].ID != "b" {
		t.Fatalf("unexpected records %+v", snap.Records)
	}
	if snap.Session != record.DefaultSession {
		t.Fatalf("expected default session, got %q", snap.Session)
	}
}

func TestSubscribeReplacesPreviousSubscription(t *testing.T) {
	src := &feedSource{}
	a := newAdapter(src)
	defer a.Close()

	first := a.Subscribe(context.Background(), "coach", "")
	src.feed(t, 0)
	second := a.Subscribe(context.Background(), "companion", "")

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("previous subscription was not torn down")
	}
	if second.Generation <= first.Generation {
		t.Fatalf("generation did not advance: %d then %d", first.Generation, second.Generation)
	}
	if a.Current() != second {
		t.Fatal("expected second subscription to be current")
	}

	src.feed(t, 1) <- []record.Record{rec("c", "companion", 1)}
	snap := next(t, second)
	if snap.Generation != second.Generation || snap.Channel != "companion" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSubscribeFailureIsUnavailableWithoutHistory(t *testing.T) {
	src := &feedSource{err: errors.New("connection refused")}
	a := newAdapter(src)
	defer a.Close()

	sub := a.Subscribe(context.Background(), "coach", "")
	snap := next(t, sub)
	if snap.Status != StatusUnavailable || snap.Err == nil {
		t.Fatalf("expected unavailable snapshot with error, got %+v", snap)
	}
	if !snap.Offline() {
		t.Fatal("unavailable snapshot should report offline")
	}
}

func TestDroppedSubscriptionFallsBackToLastKnown(t *testing.T) {
	src := &feedSource{}
	a := newAdapter(src)
	defer a.Close()

	sub := a.Subscribe(context.Background(), "coach", "")
	feed := src.feed(t, 0)
	feed <- []record.Record{rec("a", "coach", 1)}
	if snap := next(t, sub); snap.Status != StatusLive {
		t.Fatalf("expected live, got %s", snap.Status)
	}

	src.setErr(errors.New("down"))
	close(feed)

	snap := next(t, sub)
	if snap.Status != StatusOffline {
		t.Fatalf("expected offline, got %s", snap.Status)
	}
	if !errors.Is(snap.Err, ErrSubscriptionLost) {
		t.Fatalf("expected ErrSubscriptionLost, got %v", snap.Err)
	}
	if len(snap.Records) != 1 || snap.Records[0].ID != "a" {
		t.Fatalf("expected last known records, got %+v", snap.Records)
	}
}

func TestResubscribesAfterRecovery(t *testing.T) {
	src := &feedSource{}
	a := newAdapter(src)
	defer a.Close()

	sub := a.Subscribe(context.Background(), "coach", "")
	close(src.feed(t, 0))
	if snap := next(t, sub); snap.Status != StatusUnavailable {
		t.Fatalf("expected unavailable, got %s", snap.Status)
	}

	src.feed(t, 1) <- []record.Record{rec("a", "coach", 1)}
	snap := next(t, sub)
	if snap.Status != StatusLive || len(snap.Records) != 1 {
		t.Fatalf("expected live snapshot after recovery, got %+v", snap)
	}
}

func TestCloseClosesSnapshots(t *testing.T) {
	src := &feedSource{}
	a := newAdapter(src)

	sub := a.Subscribe(context.Background(), "coach", "")
	src.feed(t, 0)
	a.Close()

	select {
	case _, ok := <-sub.Snapshots():
		if ok {
			t.Fatal("expected snapshots to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("snapshots not closed")
	}
	if a.Current() != nil {
		t.Fatal("expected no current subscription")
	}
}

func TestLatestSnapshotWins(t *testing.T) {
	src := &feedSource{}
	a := newAdapter(src)
	defer a.Close()

	sub := a.Subscribe(context.Background(), "coach", "")
	feed := src.feed(t, 0)
	feed <- []record.Record{rec("a", "coach", 1)}
	feed <- []record.Record{rec("a", "coach", 1), rec("b", "coach", 2)}

	deadline := time.After(time.Second)
	for {
		select {
		case snap := <-sub.Snapshots():
			if len(snap.Records) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("never observed latest snapshot")
		}
	}
}
