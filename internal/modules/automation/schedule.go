package automation

import (
	"time"
)

// NextAfter computes the next execution instant following `from` for a
// frequency. Monthly and quarterly steps clamp to the last day of the
// target month rather than normalizing (Jan 31 + 1 month is Feb 28, not
// Mar 3).
func NextAfter(from time.Time, frequency Frequency) time.Time {
	switch frequency {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return addMonthsClamped(from, 1)
	case FrequencyQuarterly:
		return addMonthsClamped(from, 3)
	default:
		return from.AddDate(0, 0, 1)
	}
}

// FirstExecution computes the initial next-execution instant for a new
// automation. A future start date is the first run; a past or zero start
// date schedules one frequency step from now.
func FirstExecution(now, startDate time.Time, frequency Frequency) time.Time {
	if startDate.After(now) {
		return startDate
	}
	if startDate.IsZero() {
		startDate = now
	}
	next := NextAfter(startDate, frequency)
	for !next.After(now) {
		next = NextAfter(next, frequency)
	}
	return next
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	year += (m - 1) / 12
	month = time.Month((m-1)%12 + 1)

	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the next month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
