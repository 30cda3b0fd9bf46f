package printers

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/mood"
)

const width = len("11 12 13 14 15 16 17") // an example week

func moodColor(c mood.Category) *color.Color {
	switch c {
	case mood.Sad:
		return color.New(color.FgBlue, color.Bold)
	case mood.Anxious:
		return color.New(color.FgMagenta, color.Bold)
	case mood.Neutral:
		return color.New(color.FgHiWhite, color.Bold)
	case mood.Happy:
		return color.New(color.FgGreen, color.Bold)
	case mood.Excited:
		return color.New(color.FgYellow, color.Bold)
	}
	return color.New(color.Faint, color.FgWhite)
}

// MoodCalendar prints a month grid with each logged day colored by its
// average mood.
func (pp *PrettyPrint) MoodCalendar(cal mood.Calendar) {
	tf := color.New(color.FgWhite, color.Italic)

	m := fmt.Sprintf("%s %d", cal.Month, cal.Year)
	mid := (width - len(m)) / 2
	if mid < 0 {
		mid = 0
	}
	_, _ = tf.Fprintf(pp.out(), "%s%s\n", strings.Repeat(" ", mid), m)
	_, _ = color.New(color.Faint).Fprintln(pp.out(), "Su Mo Tu We Th Fr Sa")

	for _, week := range cal.Weeks {
		for _, d := range week {
			if !d.InMonth {
				_, _ = fmt.Fprint(pp.out(), "   ")
				continue
			}
			_, _ = moodColor(d.Category).Fprintf(pp.out(), "%2d ", d.Date.Day())
		}
		_, _ = fmt.Fprintln(pp.out(), "")
	}
	_, _ = fmt.Fprintln(pp.out(), "")
	pp.moodLegend()
	_, _ = color.New(color.Faint).Fprintf(pp.out(), "%d days logged\n\n", cal.Logged())
}

func (pp *PrettyPrint) moodLegend() {
	for i, c := range mood.Categories() {
		if i > 0 {
			_, _ = fmt.Fprint(pp.out(), " ")
		}
		_, _ = moodColor(c).Fprintf(pp.out(), "■ %s", c)
	}
	_, _ = fmt.Fprintln(pp.out(), "")
}

// Mood prints logged mood entries with their category.
func (pp *PrettyPrint) Mood(entries ...mood.Logged) {
	if len(entries) == 0 {
		pp.none()
		return
	}
	f := color.New(color.Faint)
	for _, e := range entries {
		pp.id(e.ID)
		_, _ = f.Fprintf(pp.out(), "%s ", e.Created.Format("Jan 02 15:04"))
		_, _ = moodColor(e.Category()).Fprintf(pp.out(), "%2d %-8s", e.Rating, e.Category())
		if e.Note != "" {
			_, _ = fmt.Fprintf(pp.out(), " %s", e.Note)
		}
		_, _ = fmt.Fprintln(pp.out(), "")
	}
	_, _ = fmt.Fprintln(pp.out(), "")
}
