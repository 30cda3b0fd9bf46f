// Package mood maps mood ratings to categories and stores them as records in
// the mood channel.
package mood

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// Category is the coarse label shown for a rating.
type Category string

const (
	Sad     Category = "sad"
	Anxious Category = "anxious"
	Neutral Category = "neutral"
	Happy   Category = "happy"
	Excited Category = "excited"
)

const (
	MinRating = 1
	MaxRating = 10
)

// Categories lists every category from lowest to highest.
func Categories() []Category {
	return []Category{Sad, Anxious, Neutral, Happy, Excited}
}

// CategoryFor maps a 1-10 rating onto a category, two ratings per step.
func CategoryFor(rating int) (Category, error) {
	if rating < MinRating || rating > MaxRating {
		return "", fmt.Errorf("mood: rating %d out of range %d-%d", rating, MinRating, MaxRating)
	}
	return Categories()[(rating-1)/2], nil
}

// ParseCategory accepts a category name in any case.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("mood: unknown category %q", raw)
}

// Rating returns the upper rating of the category's band.
func (c Category) Rating() int {
	for i, known := range Categories() {
		if c == known {
			return (i + 1) * 2
		}
	}
	return 0
}

// Entry is the content of a mood record.
type Entry struct {
	Rating int    `json:"rating"`
	Note   string `json:"note,omitempty"`
}

// Validate checks the rating range.
func (e Entry) Validate() error {
	_, err := CategoryFor(e.Rating)
	return err
}

// Category returns the entry's category, or "" if the rating is invalid.
func (e Entry) Category() Category {
	c, _ := CategoryFor(e.Rating)
	return c
}

// Encode renders e as record content.
func Encode(e Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	e.Note = strings.TrimSpace(e.Note)
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("mood: encode: %w", err)
	}
	return string(b), nil
}

// Decode parses record content written by Encode.
func Decode(content string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(content), &e); err != nil {
		return Entry{}, fmt.Errorf("mood: decode: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Logged is a decoded mood record.
type Logged struct {
	Entry
	ID      string
	Created time.Time
}

// FromRecords decodes the mood records among recs, in record order. Records
// that do not decode are skipped and counted.
func FromRecords(recs []record.Record) ([]Logged, int) {
	var out []Logged
	skipped := 0
	for _, r := range recs {
		if r.Channel != "" && r.Channel != record.ChannelMood {
			continue
		}
		e, err := Decode(r.Content)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, Logged{Entry: e, ID: r.ID, Created: r.Created.Time})
	}
	return out, skipped
}

// Average returns the mean rating of entries, or 0 when there are none.
func Average(entries []Logged) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0
	for _, e := range entries {
		sum += e.Rating
	}
	return float64(sum) / float64(len(entries))
}

// CategoryForAverage rounds an average rating to its category.
func CategoryForAverage(avg float64) Category {
	r := int(math.Round(avg))
	if r < MinRating {
		r = MinRating
	}
	if r > MaxRating {
		r = MaxRating
	}
	c, _ := CategoryFor(r)
	return c
}
