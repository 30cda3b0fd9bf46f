package mood

import "time"

// Day is one cell of the calendar grid.
type Day struct {
	Date    time.Time
	InMonth bool
	Count   int
	Average float64
	// Category is empty when nothing was logged that day.
	Category Category
}

// Calendar is a month laid out as weeks of seven days, Sunday first.
type Calendar struct {
	Year  int
	Month time.Month
	Weeks [][7]Day
}

// NewCalendar buckets entries by calendar day in loc and lays the month out
// as a grid. Days outside the month pad the first and last weeks and carry
// no data.
func NewCalendar(year int, month time.Month, loc *time.Location, entries []Logged) Calendar {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)

	type bucket struct{ sum, n int }
	buckets := make(map[int]*bucket)
	for _, e := range entries {
		t := e.Created.In(loc)
		if t.Year() != year || t.Month() != month {
			continue
		}
		b := buckets[t.Day()]
		if b == nil {
			b = &bucket{}
			buckets[t.Day()] = b
		}
		b.sum += e.Rating
		b.n++
	}

	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, 6-int(last.Weekday()))

	cal := Calendar{Year: year, Month: month}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 7) {
		var week [7]Day
		for i := range week {
			d := day.AddDate(0, 0, i)
			cell := Day{Date: d, InMonth: d.Month() == month}
			if b := buckets[d.Day()]; cell.InMonth && b != nil {
				cell.Count = b.n
				cell.Average = float64(b.sum) / float64(b.n)
				cell.Category = CategoryForAverage(cell.Average)
			}
			week[i] = cell
		}
		cal.Weeks = append(cal.Weeks, week)
	}
	return cal
}

// Logged returns the number of days with at least one entry.
func (c Calendar) Logged() int {
	n := 0
	for _, w := range c.Weeks {
		for _, d := range w {
			if d.Count > 0 {
				n++
			}
		}
	}
	return n
}
