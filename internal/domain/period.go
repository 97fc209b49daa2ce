package domain

import (
	"fmt"
	"time"
)

// PeriodKind identifies the rolling window over which a caption quota resets.
type PeriodKind string

const (
	PeriodWeekly  PeriodKind = "weekly"
	PeriodMonthly PeriodKind = "monthly"
)

// Period is a half-open time interval [Start, End) over which usage is
// accounted. For a fixed kind, the mapping from an instant to its period is
// pure: the same instant always yields the same boundaries.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the period.
// The start is inclusive and the end exclusive, so an instant exactly on a
// boundary belongs to exactly one period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}

// ComputePeriod returns the accounting period containing now for the given
// kind, in now's time zone.
//
// Weekly periods start on the most recent Monday at midnight and run seven
// days. Monthly periods start on the first of the calendar month and run to
// the first instant of the following month. Both use calendar arithmetic, so
// DST shifts, leap years, and 28-31 day months come out right.
func ComputePeriod(now time.Time, kind PeriodKind) Period {
	switch kind {
	case PeriodWeekly:
		// time.Weekday puts Sunday at 0; shift so Monday is day 0.
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		start = start.AddDate(0, 0, -daysSinceMonday)
		return Period{Start: start, End: start.AddDate(0, 0, 7)}
	case PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Period{Start: start, End: start.AddDate(0, 1, 0)}
	default:
		// PeriodKind comes from the static tier catalog, so this is
		// unreachable for any canonical tier; fall back to monthly rather
		// than return a zero period that would never contain now.
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Period{Start: start, End: start.AddDate(0, 1, 0)}
	}
}
