package core

import (
	"fmt"
	"time"
)

// DateFormat is the stored, lexicographically sortable date form.
const DateFormat = "2006-01-02"

// Date is a calendar date with day granularity, anchored at midnight UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Values that would be normalized by
// time.Date (2024-02-30) are rejected by time.Parse.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// String returns the YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(DateFormat)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// YearStart returns January 1st of year as a stored date string.
func YearStart(year int) string {
	return NewDate(year, time.January, 1).String()
}

// YearEnd returns December 31st of year as a stored date string.
func YearEnd(year int) string {
	return NewDate(year, time.December, 31).String()
}
