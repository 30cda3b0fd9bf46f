package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/draft"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/events"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/notify"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/stream"
)

// ErrClosed is returned by a controller after Close.
var ErrClosed = errors.New("reconcile: controller closed")

// Backend is everything the controller needs from the data layer.
type Backend interface {
	Writer
	stream.Source
	DeleteSession(ctx context.Context, channel, session string) error
}

// Config wires a Controller.
type Config struct {
	Backend   Backend
	Drafts    *draft.Store
	Pending   *PendingSet
	Notifier  notify.Notifier
	Options   Options
	Component events.ComponentID
	Log       *slog.Logger

	// FetchLimit caps records per snapshot; 0 means unlimited.
	FetchLimit int
	// RetryEvery paces resubscription after the backend drops.
	RetryEvery time.Duration
	// NewID overrides localID generation.
	NewID func() string
	Now   func() time.Time
}

// Controller owns the active channel context: its subscription, the
// pending set and the rendered view model. All async results are checked
// against the current generation before they touch the view.
type Controller struct {
	component events.ComponentID
	backend   Backend
	adapter   *stream.Adapter
	coord     *Coordinator
	pending   *PendingSet
	drafts    *draft.Store
	notifier  notify.Notifier
	opts      Options
	log       *slog.Logger
	emitter   *events.Emitter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	gen     uint64
	channel string
	session string
	loaded  bool
	remote  []record.Record
	status  stream.Status
	err     error
	seen    map[string]struct{}
	view    ViewModel
}

// NewController builds a controller. Nothing is subscribed until the first
// SwitchChannel or SwitchSession.
func NewController(ctx context.Context, cfg Config) *Controller {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.OrDefault(cfg.Log)
	if cfg.Component == "" {
		cfg.Component = events.ComponentID("reconciler")
	}
	if cfg.Drafts == nil {
		cfg.Drafts = draft.New(cfg.Component)
	}
	if cfg.Pending == nil {
		cfg.Pending = NewPendingSet()
	}
	notifier := notify.OrNop(cfg.Notifier)

	var source stream.Source
	var writer Writer
	if cfg.Backend != nil {
		source, writer = cfg.Backend, cfg.Backend
	}
	opts := []stream.Option{stream.WithLogger(log), stream.WithLimit(cfg.FetchLimit)}
	if cfg.RetryEvery > 0 {
		opts = append(opts, stream.WithRetry(cfg.RetryEvery))
	}

	cctx, cancel := context.WithCancel(ctx)
	return &Controller{
		component: cfg.Component,
		backend:   cfg.Backend,
		adapter:   stream.New(source, opts...),
		coord: &Coordinator{
			Writer:   writer,
			Pending:  cfg.Pending,
			Drafts:   cfg.Drafts,
			Notifier: notifier,
			Log:      log,
			Now:      cfg.Now,
			NewID:    cfg.NewID,
		},
		pending:  cfg.Pending,
		drafts:   cfg.Drafts,
		notifier: notifier,
		opts:     cfg.Options,
		log:      log,
		emitter:  events.NewEmitter(128),
		ctx:      cctx,
		cancel:   cancel,
	}
}

// Events exposes the controller's change stream.
func (c *Controller) Events() <-chan tea.Msg {
	return c.emitter.Events()
}

// Drafts returns the draft store shared with the coordinator.
func (c *Controller) Drafts() *draft.Store {
	return c.drafts
}

// Active returns the current channel and session.
func (c *Controller) Active() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, c.session
}

// View returns a copy of the current view model.
func (c *Controller) View() ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Clone()
}

// SwitchChannel activates channel on the default session.
func (c *Controller) SwitchChannel(ctx context.Context, channel string) error {
	return c.SwitchSession(ctx, channel, record.DefaultSession)
}

// SwitchSession replaces the active context. The previous view stays
// visible, flagged as loading, until the new subscription delivers.
func (c *Controller) SwitchSession(ctx context.Context, channel, session string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return errors.New("reconcile: channel is required")
	}
	session = record.NormalizeSession(session)
	if ctx == nil {
		ctx = c.ctx
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	previous := c.channel
	c.gen++
	gen := c.gen
	c.channel, c.session = channel, session
	c.loaded = false
	c.remote = nil
	c.status, c.err = "", nil
	c.seen = make(map[string]struct{})
	c.view.Loading = true

	subCtx, stop := mergeCancel(ctx, c.ctx)
	sub := c.adapter.Subscribe(subCtx, channel, session)
	c.emitter.Emit(events.ChannelSwitchMsg{
		Component:  c.component,
		Channel:    channel,
		Session:    session,
		Previous:   previous,
		Generation: gen,
	})
	c.emitViewLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	if previous != "" && previous != channel {
		c.drafts.SetFocused(previous, false)
	}
	c.log.Debug("switched", "channel", channel, "session", session, "gen", gen)

	go func() {
		defer c.wg.Done()
		defer stop()
		for snap := range sub.Snapshots() {
			c.apply(snap)
		}
	}()
	return nil
}

// Submit runs the optimistic half of a send synchronously and the write in
// the background. The returned channel yields the write's outcome and is
// closed afterwards. Empty text returns an empty localID and a closed channel.
func (c *Controller) Submit(ctx context.Context, text string) (string, <-chan error) {
	c.mu.Lock()
	channel, session, closed := c.channel, c.session, c.closed
	c.mu.Unlock()

	switch {
	case closed:
		return "", failed(ErrClosed)
	case channel == "":
		return "", failed(errors.New("reconcile: no active channel"))
	}
	p, ok, err := c.coord.Begin(channel, session, text)
	if err != nil {
		return "", failed(err)
	}
	if !ok {
		return "", failed(nil)
	}
	c.refresh(p.LocalID, p.Channel, p.Session)
	return p.LocalID, c.complete(ctx, p)
}

// Retry resubmits the failed entry localID as a new entry.
func (c *Controller) Retry(ctx context.Context, localID string) (string, <-chan error) {
	if c.isClosed() {
		return "", failed(ErrClosed)
	}
	p, err := c.coord.Resubmit(localID)
	if err != nil {
		return "", failed(err)
	}
	c.refresh(localID, p.Channel, p.Session)
	c.refresh(p.LocalID, p.Channel, p.Session)
	return p.LocalID, c.complete(ctx, p)
}

// Discard drops the failed entry localID.
func (c *Controller) Discard(localID string) error {
	if c.isClosed() {
		return ErrClosed
	}
	p, ok := c.pending.Get(localID)
	if err := c.coord.Discard(localID); err != nil {
		return err
	}
	if ok {
		c.refresh(localID, p.Channel, p.Session)
	}
	return nil
}

// DeleteSession removes a session of the active channel from the backend.
func (c *Controller) DeleteSession(ctx context.Context, session string) error {
	c.mu.Lock()
	channel, closed := c.channel, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if c.backend == nil {
		return errors.New("reconcile: no backend configured")
	}
	return c.backend.DeleteSession(ctx, channel, record.NormalizeSession(session))
}

// Close cancels the subscription and every in-flight write, then waits for
// them to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.adapter.Close()
	c.wg.Wait()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) complete(ctx context.Context, p Pending) <-chan error {
	if ctx == nil {
		ctx = c.ctx
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return failed(ErrClosed)
	}
	c.wg.Add(1)
	c.mu.Unlock()

	done := make(chan error, 1)
	wctx, stop := mergeCancel(ctx, c.ctx)
	go func() {
		defer c.wg.Done()
		defer close(done)
		defer stop()
		err := c.coord.Complete(wctx, p)
		c.refresh(p.LocalID, p.Channel, p.Session)
		done <- err
	}()
	return done
}

// refresh publishes a pending change and re-derives the view when the entry
// belongs to the active context.
func (c *Controller) refresh(localID, channel, session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	msg := events.PendingChangeMsg{Component: c.component, Channel: channel, LocalID: localID, Status: "removed"}
	if p, ok := c.pending.Get(localID); ok {
		msg.Status, msg.Err = string(p.Status), p.Err
	}
	c.emitter.Emit(msg)

	if channel != c.channel || record.NormalizeSession(session) != c.session || !c.loaded {
		return
	}
	c.rederiveLocked()
}

func (c *Controller) apply(snap stream.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || snap.Generation != c.gen {
		c.log.Debug("dropping stale snapshot", "gen", snap.Generation, "current", c.gen)
		return
	}
	first := !c.loaded
	c.loaded = true
	c.remote = snap.Records
	c.status, c.err = snap.Status, snap.Err

	if snap.Status == stream.StatusLive {
		for _, r := range snap.Records {
			if _, ok := c.seen[r.ID]; ok {
				continue
			}
			c.seen[r.ID] = struct{}{}
			if !first && r.Role == record.RoleAssistant {
				c.notifier.Notify(notify.Event{Kind: notify.KindReceived, Channel: r.Channel, Session: r.Session, Content: r.Content})
			}
		}
	}
	c.rederiveLocked()
}

func (c *Controller) rederiveLocked() {
	vm, reconciled := Project(c.channel, c.remote, c.pending.List(c.channel, c.session), c.opts)
	if len(reconciled) > 0 {
		c.pending.Remove(reconciled...)
		for _, id := range reconciled {
			c.emitter.Emit(events.PendingChangeMsg{Component: c.component, Channel: c.channel, LocalID: id, Status: "reconciled"})
		}
	}
	vm.Session = c.session
	vm.Generation = c.gen
	vm.Offline = c.status != "" && c.status != stream.StatusLive
	vm.Err = c.err
	c.view = vm
	c.emitViewLocked()
}

func (c *Controller) emitViewLocked() {
	c.emitter.Emit(events.ViewChangeMsg{
		Component:  c.component,
		Channel:    c.view.Channel,
		Session:    c.view.Session,
		Generation: c.view.Generation,
		Entries:    len(c.view.Entries),
		Loading:    c.view.Loading,
		Offline:    c.view.Offline,
	})
}

func failed(err error) <-chan error {
	ch := make(chan error, 1)
	if err != nil {
		ch <- err
	}
	close(ch)
	return ch
}

// mergeCancel returns a context derived from ctx that is also cancelled
// when parent is.
func mergeCancel(ctx, parent context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(parent, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
