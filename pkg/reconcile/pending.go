package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Status annotates an entry of the view model.
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	// StatusConfirmed marks entries backed by a persisted record.
	StatusConfirmed Status = "confirmed"
)

var (
	// ErrUnknownEntry is returned for a localID that is not in the set.
	ErrUnknownEntry = errors.New("reconcile: unknown pending entry")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the entry's current status.
	ErrInvalidTransition = errors.New("reconcile: invalid status transition")
	// ErrDuplicateLocalID is returned when a localID was used before.
	ErrDuplicateLocalID = errors.New("reconcile: duplicate local id")
)

// Pending is a locally synthesized entry awaiting its persisted record.
type Pending struct {
	LocalID string
	Channel string
	Session string
	Role    record.Role
	Content string
	// Draft is the input as typed, before trimming. It is what a failed
	// send puts back into the draft store.
	Draft   string
	Status  Status
	Created time.Time
	Err     error

	seq uint64
}

func (p Pending) typed() string {
	if p.Draft == "" {
		return p.Content
	}
	return p.Draft
}

// PendingSet holds the in-flight entries of every channel. Entries move
// sending -> sent -> removed or sending -> failed -> discarded. A localID
// is accepted once for the lifetime of the set.
type PendingSet struct {
	mu      sync.Mutex
	seq     uint64
	entries map[string]*Pending
	used    map[string]struct{}
}

// NewPendingSet returns an empty set.
func NewPendingSet() *PendingSet {
	return &PendingSet{
		entries: make(map[string]*Pending),
		used:    make(map[string]struct{}),
	}
}

// Add inserts p in the sending state.
func (s *PendingSet) Add(p Pending) (Pending, error) {
	if strings.TrimSpace(p.LocalID) == "" {
		return Pending{}, errors.New("reconcile: local id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.used[p.LocalID]; ok {
		return Pending{}, fmt.Errorf("%w: %s", ErrDuplicateLocalID, p.LocalID)
	}
	s.seq++
	p.seq = s.seq
	p.Session = record.NormalizeSession(p.Session)
	p.Status = StatusSending
	p.Err = nil
	s.used[p.LocalID] = struct{}{}
	s.entries[p.LocalID] = &p
	return p, nil
}

// MarkSent records a successful write.
func (s *PendingSet) MarkSent(localID string) (Pending, error) {
	return s.transition(localID, StatusSending, func(p *Pending) {
		p.Status = StatusSent
	})
}

// MarkFailed records a failed write.
func (s *PendingSet) MarkFailed(localID string, err error) (Pending, error) {
	return s.transition(localID, StatusSending, func(p *Pending) {
		p.Status = StatusFailed
		p.Err = err
	})
}

// Discard drops a failed entry at the user's request.
func (s *PendingSet) Discard(localID string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[localID]
	if !ok {
		return Pending{}, fmt.Errorf("%w: %s", ErrUnknownEntry, localID)
	}
	if p.Status != StatusFailed {
		return *p, fmt.Errorf("%w: discard from %s", ErrInvalidTransition, p.Status)
	}
	delete(s.entries, localID)
	return *p, nil
}

// Remove drops entries that are now represented by persisted records. Unknown
// ids are ignored, so removing the same ids twice is harmless.
func (s *PendingSet) Remove(localIDs ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range localIDs {
		if _, ok := s.entries[id]; ok {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Get returns the entry for localID.
func (s *PendingSet) Get(localID string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[localID]
	if !ok {
		return Pending{}, false
	}
	return *p, true
}

// List returns the entries of channel and session in submission order. An
// empty channel matches every channel.
func (s *PendingSet) List(channel, session string) []Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	session = record.NormalizeSession(session)
	out := make([]Pending, 0, len(s.entries))
	for _, p := range s.entries {
		if channel != "" && (p.Channel != channel || p.Session != session) {
			continue
		}
		out = append(out, *p)
	}
	sortBySubmission(out)
	return out
}

// Len reports the number of entries.
func (s *PendingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *PendingSet) transition(localID string, from Status, fn func(*Pending)) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[localID]
	if !ok {
		return Pending{}, fmt.Errorf("%w: %s", ErrUnknownEntry, localID)
	}
	if p.Status != from {
		return *p, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition, localID, p.Status, from)
	}
	fn(p)
	return *p, nil
}

func sortBySubmission(ps []Pending) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].seq < ps[j].seq })
}
