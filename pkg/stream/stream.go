// Package stream adapts the backend's reactive query into restartable,
// generation-tagged snapshot subscriptions.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Source is the backend's reactive query primitive. The returned channel
// carries full snapshots and is closed when the subscription ends.
type Source interface {
	SubscribeRecords(ctx context.Context, channel, session string, limit int) (<-chan []record.Record, error)
}

// Status describes where a snapshot's records came from.
type Status string

const (
	// StatusLive means the records were just pushed by the backend.
	StatusLive Status = "live"
	// StatusOffline means the backend is unreachable and Records holds the
	// last snapshot received for this channel and session.
	StatusOffline Status = "offline"
	// StatusUnavailable means the backend is unreachable and nothing was
	// ever received.
	StatusUnavailable Status = "unavailable"
)

// ErrSubscriptionLost is reported when the backend closes a live subscription.
var ErrSubscriptionLost = errors.New("stream: subscription lost")

// Snapshot is one delivery of a subscription.
type Snapshot struct {
	Channel    string
	Session    string
	Generation uint64
	Records    []record.Record
	Status     Status
	Err        error
}

// Offline reports whether the snapshot is not live.
func (s Snapshot) Offline() bool {
	return s.Status != StatusLive
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLimit caps the number of records requested per snapshot.
func WithLimit(n int) Option {
	return func(a *Adapter) { a.limit = n }
}

// WithLogger sets the adapter's logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// WithRetry sets how often a failed or dropped subscription is re-established.
func WithRetry(every time.Duration) Option {
	return func(a *Adapter) {
		if every <= 0 {
			a.retry = rate.Inf
			return
		}
		a.retry = rate.Every(every)
	}
}

type scope struct {
	channel string
	session string
}

// Adapter owns at most one live subscription at a time.
type Adapter struct {
	source Source
	limit  int
	retry  rate.Limit
	log    *slog.Logger

	mu        sync.Mutex
	gen       uint64
	current   *Subscription
	lastKnown map[scope][]record.Record
}

// New creates an adapter over source.
func New(source Source, opts ...Option) *Adapter {
	a := &Adapter{
		source:    source,
		retry:     rate.Every(2 * time.Second),
		lastKnown: make(map[scope][]record.Record),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.OrDefault(a.log)
	return a
}

// Subscribe tears down the current subscription, if any, and starts a new one
// for channel and session. The returned subscription is tagged with a fresh
// generation.
func (a *Adapter) Subscribe(ctx context.Context, channel, session string) *Subscription {
	if ctx == nil {
		ctx = context.Background()
	}
	channel = strings.TrimSpace(channel)
	session = record.NormalizeSession(session)

	a.mu.Lock()
	prev := a.current
	a.gen++
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		Channel:    channel,
		Session:    session,
		Generation: a.gen,
		out:        make(chan Snapshot, 1),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	a.current = sub
	a.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	go a.run(subCtx, sub)
	return sub
}

// Current returns the live subscription, or nil.
func (a *Adapter) Current() *Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Close releases the current subscription.
func (a *Adapter) Close() {
	a.mu.Lock()
	prev := a.current
	a.current = nil
	a.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// LastKnown returns the most recent live records seen for channel and session.
func (a *Adapter) LastKnown(channel, session string) ([]record.Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	recs, ok := a.lastKnown[scope{channel: strings.TrimSpace(channel), session: record.NormalizeSession(session)}]
	return record.Clone(recs), ok
}

func (a *Adapter) remember(sub *Subscription, recs []record.Record) {
	a.mu.Lock()
	a.lastKnown[scope{channel: sub.Channel, session: sub.Session}] = record.Clone(recs)
	a.mu.Unlock()
}

func (a *Adapter) run(ctx context.Context, sub *Subscription) {
	defer close(sub.done)
	defer close(sub.out)

	log := a.log.With("channel", sub.Channel, "session", sub.Session, "gen", sub.Generation)
	if a.source == nil {
		a.deliverOffline(sub, errors.New("stream: no source configured"))
		<-ctx.Done()
		return
	}

	limiter := rate.NewLimiter(a.retry, 1)
	offline := false
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		feed, err := a.source.SubscribeRecords(ctx, sub.Channel, sub.Session, a.limit)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !offline {
				log.Warn("stream: subscribe failed", "err", err)
				a.deliverOffline(sub, err)
				offline = true
			}
			continue
		}

		if !a.pump(ctx, sub, feed) {
			return
		}
		offline = false
		if ctx.Err() != nil {
			return
		}
		log.Warn("stream: subscription dropped")
		a.deliverOffline(sub, ErrSubscriptionLost)
		offline = true
	}
}

// pump forwards live snapshots until feed closes. It returns false when ctx
// ended first.
func (a *Adapter) pump(ctx context.Context, sub *Subscription, feed <-chan []record.Record) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case recs, ok := <-feed:
			if !ok {
				return true
			}
			recs = normalize(sub.Channel, recs)
			a.remember(sub, recs)
			sub.offer(Snapshot{
				Channel:    sub.Channel,
				Session:    sub.Session,
				Generation: sub.Generation,
				Records:    recs,
				Status:     StatusLive,
			})
		}
	}
}

func (a *Adapter) deliverOffline(sub *Subscription, err error) {
	snap := Snapshot{
		Channel:    sub.Channel,
		Session:    sub.Session,
		Generation: sub.Generation,
		Status:     StatusUnavailable,
		Err:        err,
	}
	if recs, ok := a.LastKnown(sub.Channel, sub.Session); ok {
		snap.Records = recs
		snap.Status = StatusOffline
	}
	sub.offer(snap)
}

// normalize keeps the channel's records only, deduplicated by ID and ordered
// by creation time.
func normalize(channel string, recs []record.Record) []record.Record {
	out := make([]record.Record, 0, len(recs))
	for _, r := range record.Dedupe(recs) {
		if r.Channel != "" && r.Channel != channel {
			continue
		}
		out = append(out, r)
	}
	record.Sort(out)
	return out
}

// Subscription is a generation-tagged snapshot stream. Only the adapter
// writes to it.
type Subscription struct {
	Channel    string
	Session    string
	Generation uint64

	out    chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Snapshots delivers the newest snapshot; intermediate ones are skipped when
// the reader falls behind. The channel is closed after Close.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.out
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops the subscription and waits for it to release the backend.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Subscription) offer(snap Snapshot) {
	for {
		select {
		case s.out <- snap:
			return
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}
