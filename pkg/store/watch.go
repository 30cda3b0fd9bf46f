package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
)

// EventType describes the nature of a persistence change notification.
type EventType int

const (
	// EventSessionChanged indicates records of the given channel and session
	// were added or removed.
	EventSessionChanged EventType = iota

	// EventInvalidated signals a change that could not be attributed to a
	// single session; subscribers should re-query.
	EventInvalidated
)

// Event is emitted by Persistence.Watch when underlying storage changes.
type Event struct {
	Type    EventType
	Channel string
	Session string
}

// Matches reports whether the event may affect the given channel and session.
func (e Event) Matches(channel, session string) bool {
	if e.Type == EventInvalidated {
		return true
	}
	return e.Channel == channel && e.Session == session
}

// Watch streams change events until ctx is cancelled. Callers should drain the
// returned channel to avoid blocking the watcher. The channel is closed once
// ctx is done or the watcher encounters an unrecoverable error.
func (p *persistence) Watch(ctx context.Context) (<-chan Event, error) {
	if p.basePath == "" {
		return nil, errors.New("store: persistence base path unknown")
	}

	if err := os.MkdirAll(p.basePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}

	log := logging.OrDefault(p.log)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: create watcher: %w", err)
	}
	var closeOnce sync.Once
	closeWatcher := func() {
		closeOnce.Do(func() {
			if err := watcher.Close(); err != nil {
				log.Warn("store: watcher close", "err", err)
			}
		})
	}

	dirs, err := collectDirs(p.basePath)
	if err != nil {
		closeWatcher()
		return nil, fmt.Errorf("store: enumerate directories: %w", err)
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			closeWatcher()
			return nil, fmt.Errorf("store: watch %s: %w", dir, err)
		}
	}

	events := make(chan Event, 64)

	go func() {
		defer close(events)
		defer closeWatcher()

		watched := make(map[string]struct{}, len(dirs))
		for _, dir := range dirs {
			watched[dir] = struct{}{}
		}

		var sendMu sync.Mutex
		done := false
		send := func(ev Event) {
			sendMu.Lock()
			defer sendMu.Unlock()
			if done {
				return
			}
			select {
			case events <- ev:
			default:
				// Dropped; the next flush carries a fresh event and
				// subscribers re-query the whole session anyway.
			}
		}
		defer func() {
			sendMu.Lock()
			done = true
			sendMu.Unlock()
		}()

		throttle := newEventThrottle(50 * time.Millisecond)
		defer throttle.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("store: watcher error", "err", err)
				throttle.Enqueue(Event{Type: EventInvalidated}, send)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}

				if evt.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						// New channel or session bucket: watch it and pick up
						// files that landed before the watch was added.
						for _, dir := range addTree(watcher, evt.Name, watched, log.Warn) {
							if ch, sess, ok := p.scopeForPath(dir); ok {
								throttle.Enqueue(Event{Type: EventSessionChanged, Channel: ch, Session: sess}, send)
							}
						}
						throttle.Enqueue(Event{Type: EventInvalidated}, send)
						continue
					}
				}

				ch, sess, ok := p.scopeForPath(evt.Name)
				if !ok {
					throttle.Enqueue(Event{Type: EventInvalidated}, send)
					continue
				}
				throttle.Enqueue(Event{Type: EventSessionChanged, Channel: ch, Session: sess}, send)
			}
		}
	}()

	return events, nil
}

// addTree watches root and any directories below it.
func addTree(watcher *fsnotify.Watcher, root string, watched map[string]struct{}, warn func(string, ...any)) []string {
	dirs, err := collectDirs(filepath.Clean(root))
	if err != nil {
		warn("store: enumerate new directory", "path", root, "err", err)
		return nil
	}
	added := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if _, found := watched[dir]; found {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			warn("store: watch directory", "path", dir, "err", err)
			continue
		}
		watched[dir] = struct{}{}
		added = append(added, dir)
	}
	return added
}

// collectDirs walks base and returns all directories that should be watched.
func collectDirs(base string) ([]string, error) {
	dirs := []string{base}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() && path != base {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

// scopeForPath derives channel and session from a diskv path of the form
// base/<channel>/<session>[/<id>].
func (p *persistence) scopeForPath(path string) (string, string, bool) {
	rel, err := filepath.Rel(p.basePath, path)
	if err != nil || rel == "." {
		return "", "", false
	}
	parts := strings.Split(rel, string(os.PathSeparator))
	if len(parts) < 2 {
		return "", "", false
	}
	channel, ok := decodeSegment(parts[0])
	if !ok {
		return "", "", false
	}
	session, ok := decodeSegment(parts[1])
	if !ok {
		return "", "", false
	}
	return channel, session, true
}

type eventScope struct {
	channel string
	session string
}

// eventThrottle coalesces rapid change notifications so subscribers re-query
// once per burst of filesystem activity instead of on every single write.
type eventThrottle struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending map[EventType]map[eventScope]struct{}
	delay   time.Duration
}

func newEventThrottle(delay time.Duration) *eventThrottle {
	return &eventThrottle{
		delay:   delay,
		pending: make(map[EventType]map[eventScope]struct{}),
	}
}

func (t *eventThrottle) Enqueue(ev Event, send func(Event)) {
	t.mu.Lock()
	if t.pending[ev.Type] == nil {
		t.pending[ev.Type] = make(map[eventScope]struct{})
	}
	t.pending[ev.Type][eventScope{channel: ev.Channel, session: ev.Session}] = struct{}{}

	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, func() {
			t.flush(send)
		})
	}
	t.mu.Unlock()
}

func (t *eventThrottle) flush(send func(Event)) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[EventType]map[eventScope]struct{})
	t.timer = nil
	t.mu.Unlock()

	for eventType, scopes := range pending {
		if eventType == EventInvalidated {
			send(Event{Type: EventInvalidated})
			continue
		}
		for scope := range scopes {
			send(Event{Type: eventType, Channel: scope.channel, Session: scope.session})
		}
	}
}

func (t *eventThrottle) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
