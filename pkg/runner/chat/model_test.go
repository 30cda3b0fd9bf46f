package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/reconcile"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

type staticBackend struct {
	fail error
}

func (b staticBackend) CreateRecord(_ context.Context, req record.Request) (record.Record, error) {
	if b.fail != nil {
		return record.Record{}, b.fail
	}
	return record.Record{ID: "srv", Channel: req.Channel, Content: req.Content, ClientKey: req.ClientKey}, nil
}

func (staticBackend) SubscribeRecords(ctx context.Context, _, _ string, _ int) (<-chan []record.Record, error) {
	ch := make(chan []record.Record, 1)
	ch <- nil
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (staticBackend) DeleteSession(context.Context, string, string) error { return nil }

func newTestModel(t *testing.T) model {
	t.Helper()
	return newTestModelWith(t, staticBackend{})
}

func newTestModelWith(t *testing.T, b staticBackend) model {
	t.Helper()
	ctrl := reconcile.NewController(context.Background(), reconcile.Config{
		Backend: b,
		Log:     logging.Discard(),
	})
	t.Cleanup(ctrl.Close)
	return newModel(context.Background(), ctrl, []string{record.ChannelCoach, record.ChannelCompanion}, record.DefaultSession, "")
}

func TestRenderMarksStatuses(t *testing.T) {
	vm := reconcile.ViewModel{
		Entries: []reconcile.Entry{
			{ID: "r1", Role: record.RoleAssistant, Content: "How are you?", Status: reconcile.StatusConfirmed},
			{LocalID: "l1", Role: record.RoleUser, Content: "I feel anxious today", Status: reconcile.StatusFailed},
		},
	}
	out := render(vm, 40, "*")
	for _, want := range []string{"nafsy", "How are you?", "you", "I feel anxious today", "failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	if got := lastFailed(vm); got != "l1" {
		t.Fatalf("expected l1, got %q", got)
	}
}

func TestRenderWrapsLongMessages(t *testing.T) {
	vm := reconcile.ViewModel{Entries: []reconcile.Entry{{ID: "r1", Content: strings.Repeat("word ", 20), Status: reconcile.StatusConfirmed}}}
	out := render(vm, 22, "")
	for _, line := range strings.Split(out, "\n") {
		if len(strings.TrimRight(line, " ")) > 20 && !strings.Contains(line, "you") {
			t.Fatalf("line not wrapped: %q", line)
		}
	}
}

func TestRenderEmptyView(t *testing.T) {
	if out := render(reconcile.ViewModel{}, 40, ""); !strings.Contains(out, "No messages yet.") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTabKeepsDraftsPerChannel(t *testing.T) {
	m := newTestModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	m = next.(model)
	if got := m.ctrl.Drafts().Get(record.ChannelCoach); got != "hi" {
		t.Fatalf("expected coach draft, got %q", got)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(model)
	if m.channel() != record.ChannelCompanion || m.input.Value() != "" {
		t.Fatalf("expected empty companion input, got %q on %s", m.input.Value(), m.channel())
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(model)
	if m.channel() != record.ChannelCoach || m.input.Value() != "hi" {
		t.Fatalf("expected coach draft restored, got %q on %s", m.input.Value(), m.channel())
	}
}

func TestEnterSubmitsAndClearsInput(t *testing.T) {
	m := newTestModel(t)
	if err := m.ctrl.SwitchChannel(context.Background(), record.ChannelCoach); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for m.ctrl.View().Loading && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	m.input.SetValue("hello")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if m.input.Value() != "" {
		t.Fatalf("expected input to clear, got %q", m.input.Value())
	}
	if cmd == nil {
		t.Fatal("expected a command waiting on the write")
	}
	res, ok := cmd().(sendResultMsg)
	if !ok || res.err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func waitLoaded(t *testing.T, m model) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.ctrl.View().Loading && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTabThenEnterSendsToNewChannel(t *testing.T) {
	m := newTestModel(t)
	if err := m.activate(); err != nil {
		t.Fatal(err)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(model)
	if ch, _ := m.ctrl.Active(); ch != record.ChannelCompanion {
		t.Fatalf("tab shows %q, controller active %q", m.channel(), ch)
	}

	m.input.SetValue("for companion")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	waitLoaded(t, m)

	view := m.ctrl.View()
	if view.Channel != record.ChannelCompanion {
		t.Fatalf("expected companion view, got %q", view.Channel)
	}
	found := false
	for _, e := range view.Entries {
		if e.Content == "for companion" {
			found = true
		}
	}
	if !found {
		t.Fatalf("message missing from companion view: %+v", view.Entries)
	}
}

func TestQuickTabsLeaveControllerOnHighlightedTab(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < 3; i++ {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m = next.(model)
	}
	if ch, _ := m.ctrl.Active(); ch != m.channel() {
		t.Fatalf("tab shows %q, controller active %q", m.channel(), ch)
	}
}

func TestFailedSendQuotesTextBehindNewerDraft(t *testing.T) {
	m := newTestModelWith(t, staticBackend{fail: errors.New("offline")})
	if err := m.activate(); err != nil {
		t.Fatal(err)
	}
	waitLoaded(t, m)

	m.input.SetValue("I feel anxious today")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	m.ctrl.Drafts().Set(record.ChannelCoach, "something newer")

	res, ok := cmd().(sendResultMsg)
	if !ok || res.err == nil {
		t.Fatalf("expected a failed send, got %+v", res)
	}
	next, _ = m.Update(res)
	m = next.(model)
	if !strings.Contains(m.status, `unsent text: "I feel anxious today"`) {
		t.Fatalf("expected the unsent text in the status, got %q", m.status)
	}
	if !strings.Contains(m.View(), "I feel anxious today") {
		t.Fatal("expected the unsent text on screen")
	}
}
