// Package events defines the change messages emitted by the draft store and
// the reconciler. They double as Bubble Tea messages.
package events

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// ComponentID uniquely identifies a component instance emitting events.
type ComponentID string

// DraftChangeMsg is emitted whenever a channel's draft text or focus changes.
type DraftChangeMsg struct {
	Component ComponentID
	Channel   string
	Text      string
	Focused   bool
}

// Describe renders the change in a human-friendly format for logs.
func (m DraftChangeMsg) Describe() string {
	return fmt.Sprintf(`channel:%q len:%d focused:%t`, m.Channel, len(m.Text), m.Focused)
}

// PendingChangeMsg announces a pending entry status transition.
type PendingChangeMsg struct {
	Component ComponentID
	Channel   string
	LocalID   string
	Status    string
	Err       error
}

// Describe implements the logging helper.
func (m PendingChangeMsg) Describe() string {
	if m.Err != nil {
		return fmt.Sprintf(`channel:%q local:%q status:%q err:%q`, m.Channel, m.LocalID, m.Status, m.Err)
	}
	return fmt.Sprintf(`channel:%q local:%q status:%q`, m.Channel, m.LocalID, m.Status)
}

// ViewChangeMsg tells renderers the active view model was replaced. Readers
// fetch the model itself from the controller.
type ViewChangeMsg struct {
	Component  ComponentID
	Channel    string
	Session    string
	Generation uint64
	Entries    int
	Loading    bool
	Offline    bool
}

// Describe implements the logging helper.
func (m ViewChangeMsg) Describe() string {
	return fmt.Sprintf(`channel:%q session:%q gen:%d entries:%d loading:%t offline:%t`,
		m.Channel, m.Session, m.Generation, m.Entries, m.Loading, m.Offline)
}

// ChannelSwitchMsg is emitted when the active channel context is replaced.
type ChannelSwitchMsg struct {
	Component  ComponentID
	Channel    string
	Session    string
	Previous   string
	Generation uint64
}

// Describe implements the logging helper.
func (m ChannelSwitchMsg) Describe() string {
	return fmt.Sprintf(`channel:%q session:%q prev:%q gen:%d`, m.Channel, m.Session, m.Previous, m.Generation)
}

// Emitter is a buffered, never-blocking event channel. When the buffer is
// full the oldest queued event is dropped, so the latest state always lands.
type Emitter struct {
	ch chan tea.Msg
}

// NewEmitter returns an emitter with the given buffer size (64 if <= 0).
func NewEmitter(size int) *Emitter {
	if size <= 0 {
		size = 64
	}
	return &Emitter{ch: make(chan tea.Msg, size)}
}

// Emit queues msg without blocking.
func (e *Emitter) Emit(msg tea.Msg) {
	if e == nil {
		return
	}
	for {
		select {
		case e.ch <- msg:
			return
		default:
		}
		select {
		case <-e.ch:
		default:
		}
	}
}

// Events exposes the channel for subscriptions.
func (e *Emitter) Events() <-chan tea.Msg {
	return e.ch
}

// WaitCmd returns a command that blocks for the next message on ch. It yields
// nil once ch is closed.
func WaitCmd(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
