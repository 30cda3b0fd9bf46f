package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/events"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/identity"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/notify"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/reconcile"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Chat opens the interactive chat screen.
type Chat struct {
	Backend  reconcile.Backend
	Identity identity.Provider
	Channel  string
	Session  string
	Options  reconcile.Options

	// FetchLimit caps how many records each snapshot carries; 0 means all.
	FetchLimit int

	Notifier notify.Notifier
	Log      *slog.Logger
}

func (c *Chat) Do(ctx context.Context) error {
	if c.Backend == nil {
		return errors.New("can not chat, no backend")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := reconcile.NewController(ctx, reconcile.Config{
		Backend:    c.Backend,
		Notifier:   c.Notifier,
		Options:    c.Options,
		Component:  events.ComponentID("chat"),
		Log:        c.Log,
		FetchLimit: c.FetchLimit,
		RetryEvery: 2 * time.Second,
	})
	defer ctrl.Close()

	channels := []string{record.ChannelCoach, record.ChannelCompanion}
	m := newModel(ctx, ctrl, channels, record.NormalizeSession(c.Session), c.user(ctx))
	for i, ch := range channels {
		if ch == c.Channel {
			m.active = i
		}
	}
	if err := m.activate(); err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Chat) user(ctx context.Context) string {
	if c.Identity == nil {
		return ""
	}
	u, err := c.Identity.Current(ctx)
	if err != nil {
		return ""
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}
