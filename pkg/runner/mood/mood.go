package mood

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/app"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/draft"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/mood"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/notify"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/printers"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/reconcile"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Log records a mood rating in the mood channel.
type Log struct {
	Backend  app.Backend
	Rating   int
	Note     string
	Notifier notify.Notifier
	Log      *slog.Logger
	Out      io.Writer
}

func (n *Log) Do(ctx context.Context) error {
	if n.Backend == nil {
		return errors.New("can not log, no backend")
	}
	e := mood.Entry{Rating: n.Rating, Note: n.Note}
	content, err := mood.Encode(e)
	if err != nil {
		return err
	}

	coord := reconcile.Coordinator{
		Writer:   n.Backend,
		Pending:  reconcile.NewPendingSet(),
		Drafts:   draft.New("cli"),
		Notifier: n.Notifier,
		Log:      n.Log,
	}
	if _, err := coord.Send(ctx, record.ChannelMood, "", content); err != nil {
		return err
	}

	pp := printers.PrettyPrint{Out: n.Out}
	pp.Mood(mood.Logged{Entry: e, Created: time.Now()})
	return nil
}

// Calendar prints the mood grid for a month.
type Calendar struct {
	Backend  app.Backend
	On       time.Time
	Location *time.Location
	Out      io.Writer
}

func (n *Calendar) Do(ctx context.Context) error {
	if n.Backend == nil {
		return errors.New("can not get, no backend")
	}
	recs, err := n.Backend.Records(ctx, record.ChannelMood, "", 0)
	if err != nil {
		return err
	}
	logged, skipped := mood.FromRecords(recs)

	on := n.On
	if on.IsZero() {
		on = time.Now()
	}
	loc := n.Location
	if loc == nil {
		loc = time.Local
	}
	on = on.In(loc)

	pp := printers.PrettyPrint{Out: n.Out}
	pp.MoodCalendar(mood.NewCalendar(on.Year(), on.Month(), loc, logged))
	if skipped > 0 && n.Out != nil {
		_, _ = fmt.Fprintf(n.Out, "%d unreadable mood records skipped\n", skipped)
	}
	return nil
}
