package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/draft"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/notify"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Writer issues the create mutation. Implementations must echo
// Request.ClientKey on the returned record.
type Writer interface {
	CreateRecord(ctx context.Context, req record.Request) (record.Record, error)
}

// SendError is returned when a write fails. The entry stays visible as
// failed until the user retries or discards it.
type SendError struct {
	LocalID string
	Channel string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("reconcile: send %s on %s failed: %v", e.LocalID, e.Channel, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports whether a user-initiated resend may succeed.
func (e *SendError) Retryable() bool { return true }

// Coordinator runs the optimistic half of a send synchronously and the write
// itself on demand. It never retries on its own.
type Coordinator struct {
	Writer   Writer
	Pending  *PendingSet
	Drafts   *draft.Store
	Notifier notify.Notifier
	Log      *slog.Logger

	// Role of submitted entries; defaults to user.
	Role record.Role
	// Now and NewID default to time.Now and a random UUID.
	Now   func() time.Time
	NewID func() string
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

func (c *Coordinator) role() record.Role {
	if c.Role == "" {
		return record.RoleUser
	}
	return c.Role
}

// Send submits text and waits for the write. Empty text is a no-op and
// returns an empty localID.
func (c *Coordinator) Send(ctx context.Context, channel, session, text string) (string, error) {
	p, ok, err := c.Begin(channel, session, text)
	if err != nil || !ok {
		return "", err
	}
	return p.LocalID, c.Complete(ctx, p)
}

// Begin adds a sending entry for text and clears the channel's draft. It
// reports false when there is nothing to send.
func (c *Coordinator) Begin(channel, session, text string) (Pending, bool, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return Pending{}, false, nil
	}
	if c.Pending == nil {
		return Pending{}, false, errors.New("reconcile: coordinator has no pending set")
	}
	p, err := c.Pending.Add(Pending{
		LocalID: c.newID(),
		Channel: channel,
		Session: session,
		Role:    c.role(),
		Content: content,
		Draft:   text,
		Created: c.now(),
	})
	if err != nil {
		return Pending{}, false, err
	}
	if c.Drafts != nil {
		c.Drafts.Clear(channel)
	}
	return p, true, nil
}

// Complete issues the write for p and records the outcome. On failure the
// text goes back into the draft unless the user started a new one.
func (c *Coordinator) Complete(ctx context.Context, p Pending) error {
	log := logging.OrDefault(c.Log).With("channel", p.Channel, "session", p.Session, "local", p.LocalID)
	n := notify.OrNop(c.Notifier)

	if c.Writer == nil {
		return c.fail(log, n, p, errors.New("reconcile: no writer configured"))
	}
	rec, err := c.Writer.CreateRecord(ctx, record.Request{
		Channel:   p.Channel,
		Session:   p.Session,
		Role:      p.Role,
		Content:   p.Content,
		ClientKey: p.LocalID,
	})
	if err != nil {
		return c.fail(log, n, p, err)
	}
	if _, err := c.Pending.MarkSent(p.LocalID); err != nil {
		// Already reconciled by a snapshot that beat the acknowledgement.
		log.Debug("send acknowledged after reconcile", "err", err)
	}
	log.Debug("sent", "id", rec.ID)
	n.Notify(notify.Event{Kind: notify.KindSent, Channel: p.Channel, Session: p.Session, LocalID: p.LocalID, Content: p.Content})
	return nil
}

func (c *Coordinator) fail(log *slog.Logger, n notify.Notifier, p Pending, cause error) error {
	log.Warn("send failed", "err", cause)
	if _, err := c.Pending.MarkFailed(p.LocalID, cause); err != nil {
		log.Debug("failed entry no longer pending", "err", err)
	} else if c.Drafts != nil {
		c.Drafts.RestoreIfEmpty(p.Channel, p.typed())
	}
	n.Notify(notify.Event{Kind: notify.KindFailed, Channel: p.Channel, Session: p.Session, LocalID: p.LocalID, Content: p.Content, Err: cause})
	return &SendError{LocalID: p.LocalID, Channel: p.Channel, Err: cause}
}

// Resubmit replaces the failed entry localID with a new sending entry that
// carries the same content. The draft is cleared if it still holds that
// content. Complete must be called on the result.
func (c *Coordinator) Resubmit(localID string) (Pending, error) {
	if c.Pending == nil {
		return Pending{}, errors.New("reconcile: coordinator has no pending set")
	}
	old, err := c.Pending.Discard(localID)
	if err != nil {
		return Pending{}, err
	}
	p, err := c.Pending.Add(Pending{
		LocalID: c.newID(),
		Channel: old.Channel,
		Session: old.Session,
		Role:    old.Role,
		Content: old.Content,
		Draft:   old.Draft,
		Created: c.now(),
	})
	if err != nil {
		return Pending{}, err
	}
	if c.Drafts != nil && !c.Drafts.ClearIf(old.Channel, old.typed()) {
		c.Drafts.ClearIf(old.Channel, old.Content)
	}
	return p, nil
}

// Retry resends the failed entry localID and waits for the write.
func (c *Coordinator) Retry(ctx context.Context, localID string) (string, error) {
	p, err := c.Resubmit(localID)
	if err != nil {
		return "", err
	}
	return p.LocalID, c.Complete(ctx, p)
}

// Discard drops the failed entry localID.
func (c *Coordinator) Discard(localID string) error {
	if c.Pending == nil {
		return errors.New("reconcile: coordinator has no pending set")
	}
	_, err := c.Pending.Discard(localID)
	return err
}
