// Package record defines the persisted chat and mood records shared by the
// backend, the stream adapter and the reconciler.
package record

import (
	"fmt"
	"sort"
	"strings"
)

// Role identifies who authored a record.
type Role string

const (
	// RoleUser marks records written by the person using the app.
	RoleUser Role = "user"
	// RoleAssistant marks records written by the coach or companion.
	RoleAssistant Role = "assistant"
)

// ParseRole converts a string to a Role. An empty value means RoleUser.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return RoleUser, fmt.Errorf("record: unknown role %q", raw)
	}
}

// Well known channels.
const (
	ChannelCoach     = "coach"
	ChannelCompanion = "companion"
	ChannelMood      = "mood"
)

// DefaultSession is used when a write or query does not name a session.
const DefaultSession = "default"

// Channels returns the channels the app ships with.
func Channels() []string {
	return []string{ChannelCoach, ChannelCompanion, ChannelMood}
}

// NormalizeSession trims the session id and falls back to DefaultSession.
func NormalizeSession(session string) string {
	session = strings.TrimSpace(session)
	if session == "" {
		return DefaultSession
	}
	return session
}

// Record is an immutable, server-acknowledged message or mood entry.
type Record struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Session   string    `json:"session,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Created   Timestamp `json:"created"`
	ClientKey string    `json:"clientKey,omitempty"`
}

// Request is the payload of a create-record mutation. ClientKey is echoed
// back on the stored record and makes the write idempotent.
type Request struct {
	Channel   string
	Session   string
	Role      Role
	Content   string
	ClientKey string
}

// Validate checks the request carries what the backend needs.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Channel) == "" {
		return fmt.Errorf("record: channel required")
	}
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("record: content required")
	}
	if _, err := ParseRole(string(r.Role)); err != nil {
		return err
	}
	return nil
}

// Sort orders records by creation time, breaking ties by ID.
func Sort(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return Less(records[i], records[j])
	})
}

// Less reports whether a sorts before b.
func Less(a, b Record) bool {
	at, bt := a.Created.Time, b.Created.Time
	if at.Equal(bt) {
		return a.ID < b.ID
	}
	return at.Before(bt)
}

// Dedupe drops records with a repeated ID, keeping the first occurrence, and
// skips records without an ID.
func Dedupe(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}
	out := make([]Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Clone copies a record slice.
func Clone(records []Record) []Record {
	if records == nil {
		return nil
	}
	return append([]Record(nil), records...)
}

// Tail returns the last n records, or all of them when n <= 0.
func Tail(records []Record, n int) []Record {
	if n <= 0 || len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}
