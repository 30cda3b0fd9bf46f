package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/stream"
)

type fakeSub struct {
	channel string
	session string
	ch      chan []record.Record
}

type fakeBackend struct {
	mu      sync.Mutex
	records []record.Record
	subs    map[*fakeSub]struct{}
	counter int
	gate    chan struct{}
	subGate chan struct{}
	failErr error
	deleted []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{subs: make(map[*fakeSub]struct{})}
}

func (b *fakeBackend) hold() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = make(chan struct{})
	return b.gate
}

func (b *fakeBackend) holdSubscriptions() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subGate = make(chan struct{})
	return b.subGate
}

func (b *fakeBackend) failWith(err error) {
	b.mu.Lock()
	b.failErr = err
	b.mu.Unlock()
}

func (b *fakeBackend) CreateRecord(ctx context.Context, req record.Request) (record.Record, error) {
	b.mu.Lock()
	gate, failErr := b.gate, b.failErr
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return record.Record{}, ctx.Err()
		}
	}
	if failErr != nil {
		return record.Record{}, failErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.counter++
	r := record.Record{
		ID:        fmt.Sprintf("srv-%d", b.counter),
		Channel:   req.Channel,
		Session:   record.NormalizeSession(req.Session),
		Role:      req.Role,
		Content:   req.Content,
		ClientKey: req.ClientKey,
		Created:   record.Timestamp{Time: epoch.Add(time.Duration(b.counter) * time.Minute)},
	}
	b.records = append(b.records, r)
	b.publishLocked(r.Channel, r.Session)
	return r, nil
}

func (b *fakeBackend) add(r record.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, r)
	b.publishLocked(r.Channel, record.NormalizeSession(r.Session))
}

func (b *fakeBackend) snapshotLocked(channel, session string) []record.Record {
	var out []record.Record
	for _, r := range b.records {
		if r.Channel == channel && record.NormalizeSession(r.Session) == session {
			out = append(out, r)
		}
	}
	return out
}

func (b *fakeBackend) publishLocked(channel, session string) {
	for s := range b.subs {
		if s.channel != channel || s.session != session {
			continue
		}
		snap := b.snapshotLocked(channel, session)
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snap
	}
}

func (b *fakeBackend) SubscribeRecords(ctx context.Context, channel, session string, _ int) (<-chan []record.Record, error) {
	b.mu.Lock()
	subGate := b.subGate
	b.mu.Unlock()
	if subGate != nil {
		select {
		case <-subGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s := &fakeSub{channel: channel, session: session, ch: make(chan []record.Record, 1)}
	s.ch <- b.snapshotLocked(channel, session)
	b.subs[s] = struct{}{}
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch, nil
}

func (b *fakeBackend) DeleteSession(_ context.Context, channel, session string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, channel+"/"+session)
	return nil
}

func (b *fakeBackend) liveSubs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func newTestController(t *testing.T, b *fakeBackend) *Controller {
	t.Helper()
	c := NewController(context.Background(), Config{
		Backend:    b,
		Log:        logging.Discard(),
		Options:    Options{MatchContent: true, Skew: 2 * time.Second},
		RetryEvery: 10 * time.Millisecond,
		NewID:      sequentialIDs(),
		Now:        func() time.Time { return epoch },
	})
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func loaded(c *Controller, channel string) func() bool {
	return func() bool {
		v := c.View()
		return v.Channel == channel && !v.Loading
	}
}

func awaitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("write never completed")
	}
	return nil
}

func TestControllerOptimisticSendReconcilesInPlace(t *testing.T) {
	b := newFakeBackend()
	b.add(remote("r0", "coach", "hello", 0))
	c := newTestController(t, b)

	if err := c.SwitchChannel(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "coach to load", loaded(c, "coach"))

	gate := b.hold()
	c.Drafts().Set("coach", "I feel anxious today")
	id, done := c.Submit(context.Background(), c.Drafts().Get("coach"))
	if id == "" {
		t.Fatal("expected a local id")
	}
	if got := c.Drafts().Get("coach"); got != "" {
		t.Fatalf("draft should clear immediately, got %q", got)
	}
	v := c.View()
	last := v.Entries[len(v.Entries)-1]
	if last.Key != id || last.Status != StatusSending || last.Content != "I feel anxious today" {
		t.Fatalf("expected sending entry at the end, got %+v", last)
	}

	close(gate)
	if err := awaitErr(t, done); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "reconciliation", func() bool {
		v := c.View()
		return len(v.Entries) == 2 && !v.Entries[1].IsPending()
	})
	v = c.View()
	if v.Entries[0].Key != "r0" || v.Entries[1].Key != id || v.Entries[1].Status != StatusConfirmed {
		t.Fatalf("unexpected view %+v", v.Entries)
	}
	if v.Entries[1].Content != "I feel anxious today" {
		t.Fatalf("unexpected content %q", v.Entries[1].Content)
	}
	waitFor(t, "pending set to drain", func() bool { return c.pending.Len() == 0 })
}

func TestControllerFailedSendKeepsDraftAndRetries(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	if err := c.SwitchChannel(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "coach to load", loaded(c, "coach"))

	b.failWith(errors.New("network drop"))
	id, done := c.Submit(context.Background(), "I feel anxious today")
	err := awaitErr(t, done)
	var sendErr *SendError
	if !errors.As(err, &sendErr) || !sendErr.Retryable() {
		t.Fatalf("expected retryable SendError, got %v", err)
	}
	if got := c.Drafts().Get("coach"); got != "I feel anxious today" {
		t.Fatalf("draft lost, got %q", got)
	}
	v := c.View()
	if len(v.Entries) != 1 || v.Entries[0].Key != id || v.Entries[0].Status != StatusFailed {
		t.Fatalf("expected failed entry, got %+v", v.Entries)
	}

	b.failWith(nil)
	retried, done := c.Retry(context.Background(), id)
	if err := awaitErr(t, done); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "retried entry to confirm", func() bool {
		v := c.View()
		return len(v.Entries) == 1 && v.Entries[0].Key == retried && v.Entries[0].Status == StatusConfirmed
	})
	if c.Drafts().Get("coach") != "" {
		t.Fatal("draft should be cleared after retry")
	}
}

func TestControllerSwitchDuringWriteIsolatesChannels(t *testing.T) {
	b := newFakeBackend()
	b.add(remote("c0", "companion", "hey", 0))
	c := newTestController(t, b)
	if err := c.SwitchChannel(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "coach to load", loaded(c, "coach"))

	gate := b.hold()
	id, done := c.Submit(context.Background(), "coach only")
	if err := c.SwitchChannel(context.Background(), "companion"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "companion to load", loaded(c, "companion"))

	check := func() {
		t.Helper()
		v := c.View()
		for _, e := range v.Entries {
			if e.Channel != "companion" {
				t.Fatalf("entry from %s in companion view: %+v", e.Channel, e)
			}
		}
		if len(v.Entries) != 1 || v.Entries[0].Key != "c0" {
			t.Fatalf("unexpected companion view %+v", v.Entries)
		}
	}
	check()
	gen := c.View().Generation

	close(gate)
	if err := awaitErr(t, done); err != nil {
		t.Fatal(err)
	}
	check()
	if c.View().Generation != gen {
		t.Fatal("coach write changed the companion generation")
	}
	if p, ok := c.pending.Get(id); !ok || p.Status != StatusSent {
		t.Fatalf("coach entry should be sent and awaiting reconciliation, got %+v", p)
	}

	if err := c.SwitchChannel(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "coach entry to reconcile", func() bool {
		v := c.View()
		return v.Channel == "coach" && !v.Loading && len(v.Entries) == 1 && v.Entries[0].Key == id && !v.Entries[0].IsPending()
	})
}

func TestControllerKeepsPreviousViewWhileLoading(t *testing.T) {
	b := newFakeBackend()
	b.add(remote("r0", "coach", "hello", 0))
	c := newTestController(t, b)
	if err := c.SwitchChannel(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "coach to load", loaded(c, "coach"))

	gate := b.holdSubscriptions()
	if err := c.SwitchChannel(context.Background(), "companion"); err != nil {
		t.Fatal(err)
	}
	v := c.View()
	if !v.Loading || v.Channel != "coach" || len(v.Entries) != 1 {
		t.Fatalf("expected the coach view flagged as loading, got %+v", v)
	}
	if ch, _ := c.Active(); ch != "companion" {
		t.Fatalf("expected companion to be active, got %s", ch)
	}

	close(gate)
	waitFor(t, "companion to load", loaded(c, "companion"))
	if v := c.View(); len(v.Entries) != 0 {
		t.Fatalf("expected empty companion view, got %+v", v.Entries)
	}
}

func TestControllerDropsStaleSnapshots(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	if err := c.SwitchChannel(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "coach to load", loaded(c, "coach"))
	stale := c.View().Generation

	if err := c.SwitchChannel(context.Background(), "companion"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "companion to load", loaded(c, "companion"))
	before := c.View()

	c.apply(stream.Snapshot{
		Channel:    "coach",
		Session:    record.DefaultSession,
		Generation: stale,
		Records:    []record.Record{remote("late", "coach", "late", 5)},
		Status:     stream.StatusLive,
	})
	after := c.View()
	if after.Generation != before.Generation || len(after.Entries) != len(before.Entries) || after.Channel != "companion" {
		t.Fatalf("stale snapshot mutated the view: %+v", after)
	}
}

func TestControllerSwitchReleasesPreviousSubscription(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	for _, ch := range []string{"coach", "companion", "mood"} {
		if err := c.SwitchChannel(context.Background(), ch); err != nil {
			t.Fatal(err)
		}
		waitFor(t, ch+" to load", loaded(c, ch))
	}
	waitFor(t, "one live subscription", func() bool { return b.liveSubs() == 1 })

	c.Close()
	waitFor(t, "no live subscriptions", func() bool { return b.liveSubs() == 0 })
	if err := c.SwitchChannel(context.Background(), "coach"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, done := c.Submit(context.Background(), "x"); !errors.Is(<-done, ErrClosed) {
		t.Fatal("expected ErrClosed from submit")
	}
}

func TestControllerEmptySubmitIsNoop(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	if err := c.SwitchChannel(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "coach to load", loaded(c, "coach"))
	id, done := c.Submit(context.Background(), "   ")
	if id != "" {
		t.Fatalf("expected no local id, got %q", id)
	}
	if err, ok := <-done; ok || err != nil {
		t.Fatalf("expected closed channel, got %v", err)
	}
	if c.pending.Len() != 0 {
		t.Fatal("empty submit must not add pending entries")
	}
}

func TestControllerDiscardRemovesFailedEntry(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	if err := c.SwitchChannel(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "coach to load", loaded(c, "coach"))

	b.failWith(errors.New("down"))
	id, done := c.Submit(context.Background(), "oops")
	awaitErr(t, done)
	if err := c.Discard(id); err != nil {
		t.Fatal(err)
	}
	if v := c.View(); len(v.Entries) != 0 {
		t.Fatalf("expected empty view, got %+v", v.Entries)
	}
}

func TestControllerDeleteSessionTargetsActiveChannel(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	if err := c.SwitchSession(context.Background(), "coach", "s1"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}
	if len(b.deleted) != 1 || b.deleted[0] != "coach/s1" {
		t.Fatalf("unexpected deletions %v", b.deleted)
	}
}
