package send

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/app"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/draft"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/notify"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/printers"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/reconcile"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Send writes one message through the send coordinator and prints the tail
// of the session.
type Send struct {
	Backend  app.Backend
	Channel  string
	Session  string
	Role     record.Role
	Message  string
	Show     int
	ShowID   bool
	Notifier notify.Notifier
	Log      *slog.Logger
	Out      io.Writer
}

func (n *Send) Do(ctx context.Context) error {
	if n.Backend == nil {
		return errors.New("can not send, no backend")
	}

	coord := reconcile.Coordinator{
		Writer:   n.Backend,
		Pending:  reconcile.NewPendingSet(),
		Drafts:   draft.New("cli"),
		Notifier: n.Notifier,
		Role:     n.Role,
		Log:      n.Log,
	}
	id, err := coord.Send(ctx, n.Channel, n.Session, n.Message)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.New("nothing to send")
	}

	pp := printers.PrettyPrint{ShowID: n.ShowID, Out: n.Out}
	recs, err := n.Backend.Records(ctx, n.Channel, n.Session, n.Show)
	if err != nil {
		return fmt.Errorf("sent, but could not read back: %w", err)
	}
	pp.Title(fmt.Sprintf("%s/%s", n.Channel, record.NormalizeSession(n.Session)))
	pp.Conversation(recs...)
	return nil
}
