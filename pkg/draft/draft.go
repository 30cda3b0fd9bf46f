// Package draft holds the unsent input of each channel. Drafts live in memory
// only and are lost when the process exits.
package draft

import (
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/events"
)

// State is the draft of one channel.
type State struct {
	Channel string
	Text    string
	Focused bool
}

// Store keeps one State per channel and emits a DraftChangeMsg on every
// mutation so bound inputs can re-render.
type Store struct {
	component events.ComponentID

	mu     sync.RWMutex
	drafts map[string]State

	emitter *events.Emitter
}

// New creates an empty store emitting events as component ("drafts" if empty).
func New(component events.ComponentID) *Store {
	if component == "" {
		component = events.ComponentID("drafts")
	}
	return &Store{
		component: component,
		drafts:    make(map[string]State),
		emitter:   events.NewEmitter(64),
	}
}

// Events exposes the change stream.
func (s *Store) Events() <-chan tea.Msg {
	return s.emitter.Events()
}

// Set replaces the draft text of channel.
func (s *Store) Set(channel, text string) {
	s.mutate(channel, func(st *State) { st.Text = text })
}

// Get returns the draft text of channel.
func (s *Store) Get(channel string) string {
	return s.State(channel).Text
}

// Clear empties the draft text of channel. Focus is kept.
func (s *Store) Clear(channel string) {
	s.Set(channel, "")
}

// SetFocused records whether the input bound to channel has focus.
func (s *Store) SetFocused(channel string, focused bool) {
	s.mutate(channel, func(st *State) { st.Focused = focused })
}

// State returns a copy of the channel's draft.
func (s *Store) State(channel string) State {
	channel = strings.TrimSpace(channel)
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.drafts[channel]
	if !ok {
		return State{Channel: channel}
	}
	return st
}

// RestoreIfEmpty puts text back into the channel's draft unless the user has
// started a new one. It reports whether the text was restored.
func (s *Store) RestoreIfEmpty(channel, text string) bool {
	restored := false
	s.mutate(channel, func(st *State) {
		if strings.TrimSpace(st.Text) == "" {
			st.Text = text
			restored = true
		}
	})
	return restored
}

// ClearIf empties the draft only when it still equals text.
func (s *Store) ClearIf(channel, text string) bool {
	cleared := false
	s.mutate(channel, func(st *State) {
		if st.Text == text {
			st.Text = ""
			cleared = true
		}
	})
	return cleared
}

func (s *Store) mutate(channel string, fn func(*State)) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	s.mu.Lock()
	st, ok := s.drafts[channel]
	if !ok {
		st = State{Channel: channel}
	}
	before := st
	fn(&st)
	s.drafts[channel] = st
	s.mu.Unlock()

	if before != st {
		s.emitter.Emit(events.DraftChangeMsg{
			Component: s.component,
			Channel:   st.Channel,
			Text:      st.Text,
			Focused:   st.Focused,
		})
	}
}
