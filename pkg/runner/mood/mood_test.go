package mood

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/app"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/config"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/mood"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/store"
)

func newBackend(t *testing.T, now time.Time) *app.Service {
	t.Helper()
	p, err := store.Load(&config.Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	return &app.Service{Persistence: p, Log: logging.Discard(), Now: func() time.Time { return now }}
}

func TestLogStoresEncodedEntry(t *testing.T) {
	color.NoColor = true
	b := newBackend(t, time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC))
	out := &bytes.Buffer{}
	l := Log{Backend: b, Rating: 4, Note: "tired", Log: logging.Discard(), Out: out}
	if err := l.Do(context.Background()); err != nil {
		t.Fatal(err)
	}

	recs, err := b.Records(context.Background(), record.ChannelMood, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	logged, skipped := mood.FromRecords(recs)
	if len(logged) != 1 || skipped != 0 || logged[0].Rating != 4 || logged[0].Note != "tired" {
		t.Fatalf("unexpected mood entries %+v (skipped %d)", logged, skipped)
	}
	if !strings.Contains(out.String(), "anxious") {
		t.Fatalf("expected the category in the output:\n%s", out.String())
	}
}

func TestLogRejectsOutOfRange(t *testing.T) {
	l := Log{Backend: newBackend(t, time.Now()), Rating: 11, Out: &bytes.Buffer{}}
	if err := l.Do(context.Background()); err == nil {
		t.Fatal("expected a range error")
	}
}

func TestCalendarPrintsMonth(t *testing.T) {
	color.NoColor = true
	day := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	b := newBackend(t, day)
	if err := (&Log{Backend: b, Rating: 8, Log: logging.Discard(), Out: &bytes.Buffer{}}).Do(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := b.CreateRecord(context.Background(), record.Request{Channel: record.ChannelMood, Content: "not json"}); err != nil {
		t.Fatal(err)
	}

	out := &bytes.Buffer{}
	c := Calendar{Backend: b, On: day, Location: time.UTC, Out: out}
	if err := c.Do(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{"March 2024", "Su Mo Tu We Th Fr Sa", "1 days logged", "1 unreadable mood records skipped"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
}
