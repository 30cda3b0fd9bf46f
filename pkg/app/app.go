// Package app is the reference backend: record mutations and reactive
// queries over the local store.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/store"
)

// Backend is the data-layer contract consumed by clients.
type Backend interface {
	CreateRecord(ctx context.Context, req record.Request) (record.Record, error)
	SubscribeRecords(ctx context.Context, channel, session string, limit int) (<-chan []record.Record, error)
	Records(ctx context.Context, channel, session string, limit int) ([]record.Record, error)
	Sessions(ctx context.Context, channel string) ([]string, error)
	DeleteSession(ctx context.Context, channel, session string) error
}

// ErrNoPersistence is returned when the service has no store.
var ErrNoPersistence = errors.New("app: no persistence configured")

// Service provides high-level operations for records and sessions.
// It wraps persistence so UIs, CLIs and the MCP server share logic.
type Service struct {
	Persistence store.Persistence

	// Now stamps new records; defaults to time.Now.
	Now func() time.Time
	Log *slog.Logger
}

var _ Backend = (*Service)(nil)

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateRecord validates and stores a new record. Replaying a request with a
// ClientKey that was already stored returns the original record.
func (s *Service) CreateRecord(ctx context.Context, req record.Request) (record.Record, error) {
	if s.Persistence == nil {
		return record.Record{}, ErrNoPersistence
	}
	if err := req.Validate(); err != nil {
		return record.Record{}, fmt.Errorf("app: %w", err)
	}
	role, _ := record.ParseRole(string(req.Role))
	r, err := s.Persistence.Put(ctx, record.Record{
		Channel:   strings.TrimSpace(req.Channel),
		Session:   record.NormalizeSession(req.Session),
		Role:      role,
		Content:   req.Content,
		Created:   record.Timestamp{Time: s.now()},
		ClientKey: req.ClientKey,
	})
	if err != nil {
		return record.Record{}, fmt.Errorf("app: create record: %w", err)
	}
	logging.OrDefault(s.Log).Debug("record created", "channel", r.Channel, "session", r.Session, "id", r.ID)
	return r, nil
}

// Records lists the last limit records of a session (all when limit <= 0).
func (s *Service) Records(ctx context.Context, channel, session string, limit int) ([]record.Record, error) {
	if s.Persistence == nil {
		return nil, ErrNoPersistence
	}
	return record.Tail(s.Persistence.List(ctx, channel, session), limit), nil
}

// Sessions lists the sessions recorded for a channel.
func (s *Service) Sessions(ctx context.Context, channel string) ([]string, error) {
	if s.Persistence == nil {
		return nil, ErrNoPersistence
	}
	return s.Persistence.Sessions(ctx, channel), nil
}

// DeleteSession removes every record of a session.
func (s *Service) DeleteSession(ctx context.Context, channel, session string) error {
	if s.Persistence == nil {
		return ErrNoPersistence
	}
	n, err := s.Persistence.DeleteSession(ctx, channel, session)
	if err != nil {
		return fmt.Errorf("app: delete session: %w", err)
	}
	logging.OrDefault(s.Log).Info("session deleted", "channel", channel, "session", session, "records", n)
	return nil
}

// SubscribeRecords pushes a full snapshot of the session now and again
// whenever storage reports a change that may affect it. The channel is closed
// when ctx is done or the change feed ends. Slow readers only see the newest
// snapshot.
func (s *Service) SubscribeRecords(ctx context.Context, channel, session string, limit int) (<-chan []record.Record, error) {
	if s.Persistence == nil {
		return nil, ErrNoPersistence
	}
	channel = strings.TrimSpace(channel)
	session = record.NormalizeSession(session)

	changes, err := s.Persistence.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: subscribe %s/%s: %w", channel, session, err)
	}

	out := make(chan []record.Record, 1)
	go func() {
		defer close(out)
		publish := func() {
			offer(out, record.Tail(s.Persistence.List(ctx, channel, session), limit))
		}
		publish()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-changes:
				if !ok {
					return
				}
				if ev.Matches(channel, session) {
					publish()
				}
			}
		}
	}()
	return out, nil
}

// offer replaces whatever snapshot is waiting in ch with v. There must be a
// single producer.
func offer(ch chan []record.Record, v []record.Record) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
