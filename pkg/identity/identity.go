// Package identity resolves the current user. It is read-only.
package identity

import (
	"context"
	"errors"
	"os/user"
	"strings"
)

// User is the signed-in user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// ErrNoUser is returned when no identity can be resolved.
var ErrNoUser = errors.New("identity: no user")

// Provider exposes the current user.
type Provider interface {
	Current(ctx context.Context) (User, error)
}

// Static returns a configured user, falling back to the operating system
// account when ID is empty.
type Static struct {
	ID    string
	Email string

	// lookup is replaced in tests.
	lookup func() (*user.User, error)
}

// Current implements Provider.
func (s Static) Current(_ context.Context) (User, error) {
	u := User{ID: strings.TrimSpace(s.ID), Email: strings.TrimSpace(s.Email)}
	if u.ID != "" {
		return u, nil
	}
	lookup := s.lookup
	if lookup == nil {
		lookup = user.Current
	}
	acct, err := lookup()
	if err != nil || acct == nil || acct.Username == "" {
		return User{}, ErrNoUser
	}
	u.ID = acct.Username
	return u, nil
}
