package reconcile

import (
	"time"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Options tune a projection.
type Options struct {
	// Limit keeps only the last Limit entries when > 0.
	Limit int
	// MatchContent lets records without a ClientKey reconcile a pending
	// entry with the same role and content.
	MatchContent bool
	// Skew is how much earlier than the pending entry a content match may
	// have been created, to absorb clock differences.
	Skew time.Duration
}

// Entry is one rendered row.
type Entry struct {
	// Key stays the same when a pending entry is replaced by its record.
	Key     string
	ID      string
	LocalID string
	Channel string
	Session string
	Role    record.Role
	Content string
	Created time.Time
	Status  Status
	Err     error
}

// IsPending reports whether the entry has no persisted record yet.
func (e Entry) IsPending() bool {
	return e.ID == ""
}

// ViewModel is the ordered merge of persisted and pending entries of one
// channel. It is always derived, never stored remotely.
type ViewModel struct {
	Channel    string
	Session    string
	Generation uint64
	Entries    []Entry
	// Total is the number of entries before Limit was applied.
	Total     int
	Truncated bool
	Loading   bool
	Offline   bool
	Err       error
}

// Clone returns a copy that shares nothing with v.
func (v ViewModel) Clone() ViewModel {
	if v.Entries != nil {
		v.Entries = append([]Entry(nil), v.Entries...)
	}
	return v
}

// PendingCount returns how many entries are still pending.
func (v ViewModel) PendingCount() int {
	n := 0
	for _, e := range v.Entries {
		if e.IsPending() {
			n++
		}
	}
	return n
}

// Project merges the channel's remote records with its pending entries.
// Records come first in creation order. Pending entries follow in the order
// given. It returns the localIDs that are now represented by a record.
// Project does not mutate its inputs.
func Project(channel string, remote []record.Record, pending []Pending, opts Options) (ViewModel, []string) {
	recs := make([]record.Record, 0, len(remote))
	for _, r := range record.Dedupe(remote) {
		if r.Channel == channel {
			recs = append(recs, r)
		}
	}
	record.Sort(recs)

	var mine []Pending
	for _, p := range pending {
		if p.Channel == channel {
			mine = append(mine, p)
		}
	}

	// claimedBy maps a record index to the localID it reconciled.
	claimedBy := make(map[int]string)
	matched := make(map[string]bool)
	byKey := make(map[string]int)
	for i, r := range recs {
		if r.ClientKey == "" {
			continue
		}
		if _, ok := byKey[r.ClientKey]; !ok {
			byKey[r.ClientKey] = i
		}
	}
	for _, p := range mine {
		if i, ok := byKey[p.LocalID]; ok {
			claimedBy[i] = p.LocalID
			matched[p.LocalID] = true
		}
	}
	if opts.MatchContent {
		for _, p := range mine {
			if matched[p.LocalID] {
				continue
			}
			if i, ok := contentMatch(recs, claimedBy, p, opts.Skew); ok {
				claimedBy[i] = p.LocalID
				matched[p.LocalID] = true
			}
		}
	}

	entries := make([]Entry, 0, len(recs)+len(mine))
	for i, r := range recs {
		e := Entry{
			Key:     r.ID,
			ID:      r.ID,
			Channel: r.Channel,
			Session: r.Session,
			Role:    r.Role,
			Content: r.Content,
			Created: r.Created.Time,
			Status:  StatusConfirmed,
		}
		if local, ok := claimedBy[i]; ok {
			e.Key = local
			e.LocalID = local
		} else if r.ClientKey != "" {
			e.Key = r.ClientKey
		}
		entries = append(entries, e)
	}

	var reconciled []string
	for _, p := range mine {
		if matched[p.LocalID] {
			reconciled = append(reconciled, p.LocalID)
			continue
		}
		entries = append(entries, Entry{
			Key:     p.LocalID,
			LocalID: p.LocalID,
			Channel: p.Channel,
			Session: p.Session,
			Role:    p.Role,
			Content: p.Content,
			Created: p.Created,
			Status:  p.Status,
			Err:     p.Err,
		})
	}

	vm := ViewModel{Channel: channel, Total: len(entries)}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[len(entries)-opts.Limit:]
		vm.Truncated = true
	}
	vm.Entries = entries
	return vm, reconciled
}

func contentMatch(recs []record.Record, claimed map[int]string, p Pending, skew time.Duration) (int, bool) {
	earliest := p.Created.Add(-skew)
	for i, r := range recs {
		if _, taken := claimed[i]; taken || r.ClientKey != "" {
			continue
		}
		if r.Role != p.Role || r.Content != p.Content {
			continue
		}
		if !p.Created.IsZero() && r.Created.Time.Before(earliest) {
			continue
		}
		return i, true
	}
	return 0, false
}
