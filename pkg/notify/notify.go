// Package notify delivers fire-and-forget side effects for send and receive
// events. Nothing here is awaited by the reconciler.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
)

// Kind classifies an event.
type Kind string

const (
	KindSent     Kind = "sent"
	KindFailed   Kind = "failed"
	KindReceived Kind = "received"
)

// Event describes something the user may want to feel or hear about.
type Event struct {
	Kind    Kind
	Channel string
	Session string
	LocalID string
	Content string
	Err     error
}

// Notifier consumes events. Implementations must not block for long.
type Notifier interface {
	Notify(Event)
}

// Func adapts a function to a Notifier.
type Func func(Event)

// Notify calls f.
func (f Func) Notify(e Event) { f(e) }

// Nop drops every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(Event) {}

// OrNop returns n, or Nop when n is nil.
func OrNop(n Notifier) Notifier {
	if n == nil {
		return Nop{}
	}
	return n
}

// Bell rings the terminal bell for the selected kinds (received and failed
// when Kinds is empty).
type Bell struct {
	W     io.Writer
	Kinds []Kind

	mu sync.Mutex
}

// Notify implements Notifier.
func (b *Bell) Notify(e Event) {
	if b == nil || b.W == nil || !b.rings(e.Kind) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.W, "\a")
}

func (b *Bell) rings(k Kind) bool {
	if len(b.Kinds) == 0 {
		return k == KindReceived || k == KindFailed
	}
	for _, want := range b.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Log writes events to a structured logger.
type Log struct {
	Log *slog.Logger
}

// Notify implements Notifier.
func (l Log) Notify(e Event) {
	log := logging.OrDefault(l.Log)
	attrs := []any{"kind", string(e.Kind), "channel", e.Channel, "session", e.Session}
	if e.LocalID != "" {
		attrs = append(attrs, "local", e.LocalID)
	}
	if e.Err != nil {
		log.Warn("notify", append(attrs, "err", e.Err)...)
		return
	}
	log.Debug("notify", attrs...)
}

// Multi fans out to every notifier.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

// Async decouples a notifier from the caller. Events are dropped when the
// buffer is full.
type Async struct {
	next Notifier
	ch   chan Event
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts a delivery goroutine for next with the given buffer size
// (16 if <= 0). Close stops it.
func NewAsync(next Notifier, size int) *Async {
	if size <= 0 {
		size = 16
	}
	a := &Async{
		next: OrNop(next),
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for e := range a.ch {
		a.next.Notify(e)
	}
}

// Notify queues e without blocking.
func (a *Async) Notify(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- e:
	default:
	}
}

// Close drains queued events and stops delivery.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}

// String implements fmt.Stringer for log output.
func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s/%s %s: %v", e.Kind, e.Channel, e.Session, e.LocalID, e.Err)
	}
	return fmt.Sprintf("%s %s/%s %s", e.Kind, e.Channel, e.Session, e.LocalID)
}
