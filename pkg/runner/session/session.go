package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/app"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/printers"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

const previewWidth = 40

// List prints the sessions of a channel.
type List struct {
	Backend app.Backend
	Channel string
	Output  string
	Out     io.Writer
}

func (n *List) Do(ctx context.Context) error {
	if n.Backend == nil {
		return errors.New("can not list, no backend")
	}
	names, err := n.Backend.Sessions(ctx, n.Channel)
	if err != nil {
		return err
	}
	rows := make([]printers.SessionRow, 0, len(names))
	for _, name := range names {
		recs, err := n.Backend.Records(ctx, n.Channel, name, 0)
		if err != nil {
			return err
		}
		row := printers.SessionRow{Session: name, Messages: len(recs)}
		if len(recs) > 0 {
			last := recs[len(recs)-1]
			row.Last = last.Created.Local().Format("Jan 02 15:04")
			row.Preview = preview(last.Content)
		}
		rows = append(rows, row)
	}
	if n.Output == "json" {
		enc := json.NewEncoder(n.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	pp := printers.PrettyPrint{Out: n.Out}
	pp.Sessions(n.Channel, rows...)
	return nil
}

// Delete removes a session of a channel.
type Delete struct {
	Backend app.Backend
	Channel string
	Session string
	Out     io.Writer
}

func (n *Delete) Do(ctx context.Context) error {
	if n.Backend == nil {
		return errors.New("can not delete, no backend")
	}
	session := record.NormalizeSession(n.Session)
	if err := n.Backend.DeleteSession(ctx, n.Channel, session); err != nil {
		return err
	}
	if n.Out != nil {
		_, _ = fmt.Fprintf(n.Out, "deleted %s/%s\n", n.Channel, session)
	}
	return nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewWidth {
		return s
	}
	return string(r[:previewWidth-1]) + "…"
}
