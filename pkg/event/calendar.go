package event

import (
	"fmt"
	"time"
)

// Key formats for aggregate documents.
const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// DayID identifies one calendar day ("YYYY-MM-DD") in a tenant's reporting
// timezone. Bucketing uses the tenant timezone uniformly for both the live
// reactor path and backfill, so the two views can never disagree on which
// day an event belongs to.
type DayID string

// MonthID identifies one calendar month ("YYYY-MM").
type MonthID string

// ParseDayID validates and returns a DayID from a "YYYY-MM-DD" string.
func ParseDayID(s string) (DayID, error) {
	if _, err := time.Parse(dayLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return DayID(s), nil
}

// ParseMonthID validates and returns a MonthID from a "YYYY-MM" string.
func ParseMonthID(s string) (MonthID, error) {
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", fmt.Errorf("invalid month %q (want YYYY-MM): %w", s, err)
	}
	return MonthID(s), nil
}

// MonthIDOf builds a MonthID from a year and one-based month.
func MonthIDOf(year int, month time.Month) MonthID {
	return MonthID(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// DayOf buckets a millisecond timestamp into the calendar day of loc.
func DayOf(tsMillis int64, loc *time.Location) DayID {
	return DayID(time.UnixMilli(tsMillis).In(loc).Format(dayLayout))
}

// MonthOf buckets a millisecond timestamp into the calendar month of loc.
func MonthOf(tsMillis int64, loc *time.Location) MonthID {
	return MonthID(time.UnixMilli(tsMillis).In(loc).Format(monthLayout))
}

// Month returns the month containing the day.
func (d DayID) Month() MonthID {
	if len(d) < len(monthLayout) {
		return ""
	}
	return MonthID(d[:len(monthLayout)])
}

// Bounds returns the half-open [start, end) window of the day in loc,
// as millisecond timestamps.
func (d DayID) Bounds(loc *time.Location) (startMillis, endMillis int64, err error) {
	t, err := time.ParseInLocation(dayLayout, string(d), loc)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid day id %q: %w", d, err)
	}
	return t.UnixMilli(), t.AddDate(0, 0, 1).UnixMilli(), nil
}

// Bounds returns the half-open [start, end) window of the month in loc,
// as millisecond timestamps.
func (m MonthID) Bounds(loc *time.Location) (startMillis, endMillis int64, err error) {
	t, err := time.ParseInLocation(monthLayout, string(m), loc)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month id %q: %w", m, err)
	}
	return t.UnixMilli(), t.AddDate(0, 1, 0).UnixMilli(), nil
}

// Days lists every DayID inside the month.
func (m MonthID) Days() ([]DayID, error) {
	t, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return nil, fmt.Errorf("invalid month id %q: %w", m, err)
	}
	end := t.AddDate(0, 1, 0)
	var days []DayID
	for d := t; d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, DayID(d.Format(dayLayout)))
	}
	return days, nil
}

// Contains reports whether the day falls inside the month.
func (m MonthID) Contains(d DayID) bool {
	return d.Month() == m
}
