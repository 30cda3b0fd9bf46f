package store

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Persistence defines the persistence contract for chat and mood records.
type Persistence interface {
	// Put stores r. If a record with the same ClientKey already exists in
	// the same channel and session, nothing is written and the existing
	// record is returned.
	Put(ctx context.Context, r record.Record) (record.Record, error)
	List(ctx context.Context, channel, session string) []record.Record
	ListChannel(ctx context.Context, channel string) []record.Record
	Channels(ctx context.Context) []string
	Sessions(ctx context.Context, channel string) []string
	DeleteSession(ctx context.Context, channel, session string) (int, error)
	Watch(ctx context.Context) (<-chan Event, error)
}

// Load creates a Persistence backed by diskv using the provided config.
func Load(cfg Config) (Persistence, error) {
	if cfg == nil {
		var err error
		cfg, err = LoadConfig()
		if err != nil {
			return nil, err
		}
	}

	basePath := cfg.BasePath()
	if basePath == "" {
		return nil, errors.New("store: base path required")
	}
	return &persistence{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		CacheSizeMax:      1024 * 1024, // 1MB
	}), basePath: basePath, log: slog.Default()}, nil
}

type persistence struct {
	d        *diskv.Diskv
	basePath string
	log      *slog.Logger

	// mu serialises Put so the ClientKey lookup and the write are atomic.
	mu sync.Mutex
}

// NewID returns a fresh server record id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (p *persistence) read(key string) (record.Record, error) {
	val, err := p.d.Read(key)
	if err != nil {
		return record.Record{}, err
	}
	var r record.Record
	if err := json.Unmarshal(val, &r); err != nil {
		return record.Record{}, err
	}
	k, ok := parseKey(key)
	if !ok {
		return record.Record{}, fmt.Errorf("store: malformed key %q", key)
	}
	r.ID = k.id
	if r.Channel == "" {
		r.Channel = k.channel
	}
	if r.Session == "" {
		r.Session = k.session
	}
	return r, nil
}

func (p *persistence) scan(ctx context.Context, match func(k storeKey) bool) []record.Record {
	all := make([]record.Record, 0)
	for key := range p.d.Keys(ctx.Done()) {
		k, ok := parseKey(key)
		if !ok || !match(k) {
			continue
		}
		r, err := p.read(key)
		if err != nil {
			logging.OrDefault(p.log).Warn("store: skip unreadable record", "key", key, "err", err)
			continue
		}
		all = append(all, r)
	}
	record.Sort(all)
	return all
}

func (p *persistence) List(ctx context.Context, channel, session string) []record.Record {
	channel = strings.TrimSpace(channel)
	session = record.NormalizeSession(session)
	return p.scan(ctx, func(k storeKey) bool {
		return k.channel == channel && k.session == session
	})
}

func (p *persistence) ListChannel(ctx context.Context, channel string) []record.Record {
	channel = strings.TrimSpace(channel)
	return p.scan(ctx, func(k storeKey) bool {
		return k.channel == channel
	})
}

func (p *persistence) Put(ctx context.Context, r record.Record) (record.Record, error) {
	r.Channel = strings.TrimSpace(r.Channel)
	if r.Channel == "" {
		return record.Record{}, errors.New("store: channel required")
	}
	r.Session = record.NormalizeSession(r.Session)

	p.mu.Lock()
	defer p.mu.Unlock()

	if r.ClientKey != "" {
		for _, existing := range p.List(ctx, r.Channel, r.Session) {
			if existing.ClientKey == r.ClientKey {
				return existing, nil
			}
		}
	}
	if r.ID == "" {
		r.ID = NewID()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return record.Record{}, err
	}
	if err := p.d.Write(toKey(r), data); err != nil {
		return record.Record{}, fmt.Errorf("store: write record: %w", err)
	}
	return r, nil
}

func (p *persistence) Channels(ctx context.Context) []string {
	set := make(map[string]struct{})
	for key := range p.d.Keys(ctx.Done()) {
		if k, ok := parseKey(key); ok {
			set[k.channel] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func (p *persistence) Sessions(ctx context.Context, channel string) []string {
	channel = strings.TrimSpace(channel)
	set := make(map[string]struct{})
	for key := range p.d.Keys(ctx.Done()) {
		if k, ok := parseKey(key); ok && (channel == "" || k.channel == channel) {
			set[k.session] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// DeleteSession erases every record of the session. An empty channel matches
// the session in all channels.
func (p *persistence) DeleteSession(ctx context.Context, channel, session string) (int, error) {
	channel = strings.TrimSpace(channel)
	session = strings.TrimSpace(session)
	if session == "" {
		return 0, errors.New("store: session required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var doomed []string
	for key := range p.d.Keys(ctx.Done()) {
		k, ok := parseKey(key)
		if !ok || k.session != session {
			continue
		}
		if channel != "" && k.channel != channel {
			continue
		}
		doomed = append(doomed, key)
	}
	for i, key := range doomed {
		if err := p.d.Erase(key); err != nil && !errors.Is(err, os.ErrNotExist) {
			return i, fmt.Errorf("store: erase %s: %w", key, err)
		}
	}
	return len(doomed), nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Channel and session names are base32 encoded so they are safe as path
// segments and never contain the key separator.
var segmentEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type storeKey struct {
	channel string
	session string
	id      string
}

// toKey makes `channel-session-id`.
func toKey(r record.Record) string {
	return fmt.Sprintf("%s-%s-%s", encodeSegment(r.Channel), encodeSegment(record.NormalizeSession(r.Session)), r.ID)
}

func parseKey(key string) (storeKey, bool) {
	parts := strings.Split(key, "-")
	if len(parts) != 3 || parts[2] == "" {
		return storeKey{}, false
	}
	channel, ok := decodeSegment(parts[0])
	if !ok {
		return storeKey{}, false
	}
	session, ok := decodeSegment(parts[1])
	if !ok {
		return storeKey{}, false
	}
	return storeKey{channel: channel, session: session, id: parts[2]}, true
}

func encodeSegment(s string) string {
	return segmentEncoding.EncodeToString([]byte(s))
}

func decodeSegment(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	b, err := segmentEncoding.DecodeString(s)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.Split(s, "-")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return fmt.Sprintf("%s-%s", strings.Join(pathKey.Path, "-"), pathKey.FileName)
}
