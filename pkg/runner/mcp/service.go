// Package mcp provides the Model Context Protocol server integration for nafsy.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/app"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/identity"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/mood"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/notify"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Service coordinates backend operations that are shared by the MCP server.
type Service struct {
	Backend  app.Backend
	Identity identity.Provider
	// Location buckets mood calendar days; defaults to time.Local.
	Location *time.Location
	// Notifier hears about every write made through the service.
	Notifier notify.Notifier
}

// ErrNoBackend is returned when the service has no backend.
var ErrNoBackend = errors.New("mcp: backend is not configured")

// SendOptions captures the parameters used to create a record.
type SendOptions struct {
	Channel string
	Session string
	Role    string
	Content string
	// ClientKey makes the send idempotent; generated when empty.
	ClientKey string
}

// RecordDTO is a transport-friendly projection of a record.
type RecordDTO struct {
	ID          string `json:"id"`
	Channel     string `json:"channel"`
	Session     string `json:"session"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	ClientKey   string `json:"clientKey,omitempty"`
	CreatedISO  string `json:"created"`
	CreatedUnix int64  `json:"createdUnix"`
}

// SessionSummary describes a session and basic aggregate metadata.
type SessionSummary struct {
	Channel       string `json:"channel"`
	Session       string `json:"session"`
	MessageCount  int    `json:"messageCount"`
	LastUpdated   string `json:"lastUpdated,omitempty"`
	LatestContent string `json:"latestContent,omitempty"`
}

// MoodDTO is a decoded mood record.
type MoodDTO struct {
	ID       string `json:"id"`
	Rating   int    `json:"rating"`
	Category string `json:"category"`
	Note     string `json:"note,omitempty"`
	Created  string `json:"created"`
}

// CalendarDay is one populated day of a mood calendar.
type CalendarDay struct {
	Date     string  `json:"date"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
	Category string  `json:"category"`
}

// CalendarDTO is a month of mood data.
type CalendarDTO struct {
	Year  int           `json:"year"`
	Month string        `json:"month"`
	Weeks int           `json:"weeks"`
	Days  []CalendarDay `json:"days"`
}

// NewService builds a service wrapper around the backend.
func NewService(b app.Backend) *Service {
	return &Service{Backend: b}
}

func (s *Service) backend() (app.Backend, error) {
	if s.Backend == nil {
		return nil, ErrNoBackend
	}
	return s.Backend, nil
}

// Send persists a record. Replaying the same ClientKey returns the original.
func (s *Service) Send(ctx context.Context, opts SendOptions) (*RecordDTO, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	role, err := record.ParseRole(opts.Role)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(opts.ClientKey)
	if key == "" {
		key = uuid.NewString()
	}
	req := record.Request{
		Channel:   strings.TrimSpace(opts.Channel),
		Session:   record.NormalizeSession(opts.Session),
		Role:      role,
		Content:   strings.TrimSpace(opts.Content),
		ClientKey: key,
	}
	n := notify.OrNop(s.Notifier)
	r, err := b.CreateRecord(ctx, req)
	if err != nil {
		n.Notify(notify.Event{Kind: notify.KindFailed, Channel: req.Channel, Session: req.Session, LocalID: key, Content: req.Content, Err: err})
		return nil, err
	}
	n.Notify(notify.Event{Kind: notify.KindSent, Channel: r.Channel, Session: r.Session, LocalID: key, Content: r.Content})
	dto := toDTO(r)
	return &dto, nil
}

// History returns the last limit records of a session (all when limit <= 0).
func (s *Service) History(ctx context.Context, channel, session string, limit int) ([]RecordDTO, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("channel is required")
	}
	recs, err := b.Records(ctx, channel, session, limit)
	if err != nil {
		return nil, err
	}
	return toDTOs(recs), nil
}

// Sessions summarises every session of a channel.
func (s *Service) Sessions(ctx context.Context, channel string) ([]SessionSummary, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("channel is required")
	}
	names, err := b.Sessions(ctx, channel)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(names))
	for _, name := range names {
		recs, err := b.Records(ctx, channel, name, 0)
		if err != nil {
			return nil, err
		}
		sum := SessionSummary{Channel: channel, Session: name, MessageCount: len(recs)}
		if len(recs) > 0 {
			last := recs[len(recs)-1]
			sum.LastUpdated = record.FormatTime(last.Created.Time)
			sum.LatestContent = last.Content
		}
		out = append(out, sum)
	}
	return out, nil
}

// DeleteSession removes a session of a channel.
func (s *Service) DeleteSession(ctx context.Context, channel, session string) error {
	b, err := s.backend()
	if err != nil {
		return err
	}
	if strings.TrimSpace(channel) == "" || strings.TrimSpace(session) == "" {
		return errors.New("channel and session are required")
	}
	return b.DeleteSession(ctx, channel, session)
}

// LogMood stores a mood rating in the mood channel.
func (s *Service) LogMood(ctx context.Context, rating int, note string) (*MoodDTO, error) {
	content, err := mood.Encode(mood.Entry{Rating: rating, Note: note})
	if err != nil {
		return nil, err
	}
	dto, err := s.Send(ctx, SendOptions{Channel: record.ChannelMood, Content: content})
	if err != nil {
		return nil, err
	}
	e, _ := mood.Decode(dto.Content)
	return &MoodDTO{
		ID:       dto.ID,
		Rating:   e.Rating,
		Category: string(e.Category()),
		Note:     e.Note,
		Created:  dto.CreatedISO,
	}, nil
}

// Moods returns every decodable mood entry.
func (s *Service) Moods(ctx context.Context) ([]mood.Logged, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	recs, err := b.Records(ctx, record.ChannelMood, "", 0)
	if err != nil {
		return nil, err
	}
	logged, _ := mood.FromRecords(recs)
	return logged, nil
}

// MoodCalendar buckets mood entries for a month.
func (s *Service) MoodCalendar(ctx context.Context, year int, month time.Month) (*CalendarDTO, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	logged, err := s.Moods(ctx)
	if err != nil {
		return nil, err
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	cal := mood.NewCalendar(year, month, loc, logged)
	dto := &CalendarDTO{Year: year, Month: month.String(), Weeks: len(cal.Weeks), Days: []CalendarDay{}}
	for _, w := range cal.Weeks {
		for _, d := range w {
			if d.Count == 0 {
				continue
			}
			dto.Days = append(dto.Days, CalendarDay{
				Date:     d.Date.Format("2006-01-02"),
				Count:    d.Count,
				Average:  d.Average,
				Category: string(d.Category),
			})
		}
	}
	return dto, nil
}

// WhoAmI returns the configured user.
func (s *Service) WhoAmI(ctx context.Context) (identity.User, error) {
	if s.Identity == nil {
		return identity.User{}, identity.ErrNoUser
	}
	return s.Identity.Current(ctx)
}

func toDTO(r record.Record) RecordDTO {
	return RecordDTO{
		ID:          r.ID,
		Channel:     r.Channel,
		Session:     r.Session,
		Role:        string(r.Role),
		Content:     r.Content,
		ClientKey:   r.ClientKey,
		CreatedISO:  record.FormatTime(r.Created.Time),
		CreatedUnix: r.Created.Unix(),
	}
}

func toDTOs(recs []record.Record) []RecordDTO {
	out := make([]RecordDTO, 0, len(recs))
	for _, r := range recs {
		out = append(out, toDTO(r))
	}
	return out
}
