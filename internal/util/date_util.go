package util

import (
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

func FormatDay(t time.Time) string {
	return Day(t).Format(DayLayout)
}

// NextDaily returns the next occurrence of hour:minute UTC strictly after now.
func NextDaily(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
