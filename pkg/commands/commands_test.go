package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := New()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("nafsy %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("NAFSY_CONFIG_PATH", t.TempDir())
	t.Setenv("NAFSY_PATH", t.TempDir())
	t.Setenv("NAFSY_LOG_LEVEL", "error")
	oo.JSON = false
}

func TestCommandsRegistered(t *testing.T) {
	cmd := New()
	want := []string{"send", "history", "watch", "chat", "session", "mood", "mcp", "version"}
	for _, name := range want {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("expected command %q, got %v %v", name, found, err)
		}
	}
}

func TestSendThenHistory(t *testing.T) {
	isolate(t)

	out := run(t, "send", "--channel", "companion", "I", "slept", "badly")
	if !strings.Contains(out, "I slept badly") {
		t.Fatalf("expected the sent message echoed, got:\n%s", out)
	}

	out = run(t, "history", "--channel", "companion", "--json")
	var recs []map[string]any
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(recs) != 1 || recs[0]["content"] != "I slept badly" || recs[0]["channel"] != "companion" {
		t.Fatalf("unexpected history %v", recs)
	}
	if key, _ := recs[0]["clientKey"].(string); key == "" {
		t.Fatal("expected the write to carry a client key")
	}
}

func TestSendRejectsUnknownChannel(t *testing.T) {
	isolate(t)
	cmd := New()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"send", "--channel", "diary", "hello"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for an unknown channel")
	}
}

func TestSessionListAndDelete(t *testing.T) {
	isolate(t)
	run(t, "send", "--session", "morning", "good", "morning")
	run(t, "send", "--session", "evening", "good", "night")

	out := run(t, "session", "list", "--json")
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected two sessions, got %v", rows)
	}

	out = run(t, "session", "delete", "morning")
	if !strings.Contains(out, "deleted coach/morning") {
		t.Fatalf("unexpected output %q", out)
	}
	oo.JSON = false
	out = run(t, "session", "list", "--json")
	rows = nil
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(rows) != 1 || rows[0]["session"] != "evening" {
		t.Fatalf("unexpected sessions %v", rows)
	}
}

func TestMoodLog(t *testing.T) {
	isolate(t)
	run(t, "mood", "log", "7", "slept", "well")

	out := run(t, "history", "--channel", "mood", "--json")
	var recs []map[string]any
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(recs) != 1 || !strings.Contains(recs[0]["content"].(string), `"rating":7`) {
		t.Fatalf("unexpected mood records %v", recs)
	}
}

func TestVersion(t *testing.T) {
	out := run(t, "version", "--short")
	if !strings.Contains(out, "dev") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestChatNeedsTerminal(t *testing.T) {
	isolate(t)
	cmd := New()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"chat"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
		t.Fatalf("expected a terminal error, got %v", err)
	}
}
