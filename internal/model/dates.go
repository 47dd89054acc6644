package model

import (
	"time"
)

// DateLayout is the ISO calendar date layout used on every wire format.
const DateLayout = "2006-01-02"

// Date builds a UTC midnight time for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MonthLayout is the ISO year-month layout; it resolves to the 1st.
const MonthLayout = "2006-01"

// ParseDate parses an ISO date or year-month. Full timestamps are truncated
// to the day.
func ParseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(MonthLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Date(t.Year(), t.Month(), t.Day()), true
	}
	return time.Time{}, false
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DatePtr returns a pointer to the ISO rendering of t, or nil for nil input.
func DatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatDate(*t)
	return &s
}

// HumanizeDate renders first-of-month dates as "June 2014" and other days
// as "June 15, 2014".
func HumanizeDate(d time.Time) string {
	if d.Day() == 1 {
		return d.Format("January 2006")
	}
	return d.Format("January 2, 2006")
}
