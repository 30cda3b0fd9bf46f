package printers

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/reconcile"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

type PrettyPrint struct {
	ShowID bool
	// Out defaults to color.Output.
	Out io.Writer
}

var (
	spacing = strings.Repeat(" ", len("3f0e6c1a9b2d4e5f  "))
)

func (pp *PrettyPrint) out() io.Writer {
	if pp.Out != nil {
		return pp.Out
	}
	return color.Output
}

func (pp *PrettyPrint) NewLine() {
	_, _ = fmt.Fprintln(pp.out(), "")
}

func (pp *PrettyPrint) Title(title string) {
	t := color.New(color.Bold, color.Underline)

	if pp.ShowID {
		_, _ = fmt.Fprint(pp.out(), spacing)
	}
	_, _ = t.Fprintln(pp.out(), title)
}

func (pp *PrettyPrint) TitleWithCount(title string, count int) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	if pp.ShowID {
		_, _ = fmt.Fprint(pp.out(), spacing)
	}
	_, _ = t.Fprint(pp.out(), title)
	_, _ = c.Fprintf(pp.out(), " - %d", count)

	switch count {
	case 1:
		_, _ = c.Fprintln(pp.out(), " message")
	default:
		_, _ = c.Fprintln(pp.out(), " messages")
	}
}

// Conversation prints persisted records oldest first.
func (pp *PrettyPrint) Conversation(records ...record.Record) {
	if len(records) == 0 {
		pp.none()
		return
	}
	for _, r := range records {
		pp.id(r.ID)
		pp.line(r.Role, r.Created.Format("15:04"), r.Content, "")
	}
	_, _ = fmt.Fprintln(pp.out(), "")
}

// View prints a projected view model with a status marker per entry.
func (pp *PrettyPrint) View(vm reconcile.ViewModel) {
	f := color.New(color.Faint, color.Italic)
	if vm.Truncated {
		_, _ = f.Fprintf(pp.out(), " … %d earlier\n", vm.Total-len(vm.Entries))
	}
	if len(vm.Entries) == 0 {
		pp.none()
	}
	for _, e := range vm.Entries {
		pp.id(e.ID)
		pp.line(e.Role, e.Created.Format("15:04"), e.Content, marker(e.Status))
	}
	switch {
	case vm.Loading:
		_, _ = f.Fprintln(pp.out(), " loading…")
	case vm.Offline:
		_, _ = color.New(color.FgYellow).Fprintln(pp.out(), " offline, showing last known messages")
	}
	if len(vm.Entries) > 0 {
		_, _ = fmt.Fprintln(pp.out(), "")
	}
}

// SessionRow is one line of the sessions table.
type SessionRow struct {
	Session  string `json:"session"`
	Messages int    `json:"messages"`
	Last     string `json:"last,omitempty"`
	Preview  string `json:"preview,omitempty"`
}

// Sessions prints a table of sessions.
func (pp *PrettyPrint) Sessions(channel string, rows ...SessionRow) {
	pp.TitleWithCount(channel, len(rows))
	if len(rows) == 0 {
		pp.none()
		return
	}
	table := uitable.New()
	table.MaxColWidth = 48
	table.AddRow("SESSION", "MESSAGES", "LAST", "PREVIEW")
	for _, r := range rows {
		table.AddRow(r.Session, r.Messages, r.Last, r.Preview)
	}
	_, _ = fmt.Fprintln(pp.out(), table)
	_, _ = fmt.Fprintln(pp.out(), "")
}

func (pp *PrettyPrint) none() {
	f := color.New(color.Faint, color.Italic)
	if pp.ShowID {
		_, _ = fmt.Fprint(pp.out(), spacing)
	}
	_, _ = f.Fprint(pp.out(), " none\n\n")
}

func (pp *PrettyPrint) id(id string) {
	if !pp.ShowID {
		return
	}
	y := color.New(color.FgHiYellow, color.Italic, color.Faint)
	if len(id) > len(spacing)-2 {
		id = id[:len(spacing)-2]
	}
	_, _ = y.Fprint(pp.out(), id)
	_, _ = fmt.Fprint(pp.out(), strings.Repeat(" ", len(spacing)-len(id)))
}

func (pp *PrettyPrint) line(role record.Role, at, content, status string) {
	who := color.New(color.FgCyan, color.Bold)
	label := "you"
	if role == record.RoleAssistant {
		who = color.New(color.FgMagenta, color.Bold)
		label = "nafsy"
	}
	f := color.New(color.Faint)
	_, _ = f.Fprintf(pp.out(), "%s ", at)
	_, _ = who.Fprintf(pp.out(), "%-5s ", label)
	_, _ = fmt.Fprint(pp.out(), content)
	if status != "" {
		_, _ = fmt.Fprint(pp.out(), " ")
		_, _ = statusColor(status).Fprint(pp.out(), status)
	}
	_, _ = fmt.Fprintln(pp.out(), "")
}

func marker(s reconcile.Status) string {
	switch s {
	case reconcile.StatusSending:
		return "…"
	case reconcile.StatusSent:
		return "✓"
	case reconcile.StatusFailed:
		return "✗ failed"
	}
	return ""
}

func statusColor(status string) *color.Color {
	if strings.HasPrefix(status, "✗") {
		return color.New(color.FgRed, color.Bold)
	}
	return color.New(color.Faint)
}
