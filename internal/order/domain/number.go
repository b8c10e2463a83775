package domain

import (
	"fmt"
	"time"
)

// BusinessDay returns the calendar day of t in loc, as midnight UTC so it
// maps cleanly onto a DATE column.
func BusinessDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBounds returns the [start, end) instants of t's calendar day in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// FormatOrderNumber renders the seq-th order of day, e.g. 20260501-0042.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d", day.Format("20060102"), seq)
}
