package draft

import (
	"testing"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/events"
)

func TestDraftsArePerChannel(t *testing.T) {
	s := New("")
	s.Set("coach", "hello")
	s.Set("companion", "other")

	if got := s.Get("coach"); got != "hello" {
		t.Fatalf("coach draft = %q", got)
	}
	if got := s.Get("companion"); got != "other" {
		t.Fatalf("companion draft = %q", got)
	}
	s.Clear("coach")
	if got := s.Get("coach"); got != "" {
		t.Fatalf("coach draft after clear = %q", got)
	}
	if got := s.Get("companion"); got != "other" {
		t.Fatalf("clearing coach touched companion: %q", got)
	}
}

func TestSetFocusedKeepsText(t *testing.T) {
	s := New("")
	s.Set("coach", "typing")
	s.SetFocused("coach", true)
	st := s.State("coach")
	if !st.Focused || st.Text != "typing" {
		t.Fatalf("state = %+v", st)
	}
}

func TestMutationsEmitChanges(t *testing.T) {
	s := New("test")
	s.Set("coach", "a")
	s.Set("coach", "a") // no change, no event
	s.SetFocused("coach", true)

	var got []events.DraftChangeMsg
	for len(s.Events()) > 0 {
		msg := <-s.Events()
		got = append(got, msg.(events.DraftChangeMsg))
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Component != "test" || got[0].Text != "a" {
		t.Fatalf("first event = %+v", got[0])
	}
	if !got[1].Focused {
		t.Fatalf("second event should carry focus")
	}
}

func TestRestoreIfEmpty(t *testing.T) {
	s := New("")
	if !s.RestoreIfEmpty("coach", "I feel anxious today") {
		t.Fatalf("expected restore into empty draft")
	}
	if got := s.Get("coach"); got != "I feel anxious today" {
		t.Fatalf("draft = %q", got)
	}
	s.Set("coach", "something new")
	if s.RestoreIfEmpty("coach", "old") {
		t.Fatalf("restore must not overwrite a newer draft")
	}
}

func TestClearIf(t *testing.T) {
	s := New("")
	s.Set("coach", "retry me")
	if s.ClearIf("coach", "different") {
		t.Fatalf("ClearIf cleared a non-matching draft")
	}
	if !s.ClearIf("coach", "retry me") || s.Get("coach") != "" {
		t.Fatalf("ClearIf did not clear the matching draft")
	}
}
