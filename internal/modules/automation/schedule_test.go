package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestNextAfterFixedSteps(t *testing.T) {
	from := date(2026, time.March, 10)

	assert.Equal(t, date(2026, time.March, 11), NextAfter(from, FrequencyDaily))
	assert.Equal(t, date(2026, time.March, 17), NextAfter(from, FrequencyWeekly))
	assert.Equal(t, date(2026, time.March, 24), NextAfter(from, FrequencyBiweekly))
	assert.Equal(t, date(2026, time.April, 10), NextAfter(from, FrequencyMonthly))
	assert.Equal(t, date(2026, time.June, 10), NextAfter(from, FrequencyQuarterly))
}

func TestNextAfterMonthlyClampsToMonthEnd(t *testing.T) {
	// Jan 31 + 1 month is Feb 28, not Mar 3.
	assert.Equal(t, date(2026, time.February, 28), NextAfter(date(2026, time.January, 31), FrequencyMonthly))
	// Leap year.
	assert.Equal(t, date(2028, time.February, 29), NextAfter(date(2028, time.January, 31), FrequencyMonthly))
	// Quarterly across a year boundary.
	assert.Equal(t, date(2027, time.February, 28), NextAfter(date(2026, time.November, 30), FrequencyQuarterly))
	assert.Equal(t, date(2027, time.January, 31), NextAfter(date(2026, time.October, 31), FrequencyQuarterly))
}

func TestFirstExecutionFutureStartDate(t *testing.T) {
	now := date(2026, time.March, 10)
	start := date(2026, time.April, 1)

	assert.Equal(t, start, FirstExecution(now, start, FrequencyDaily))
}

func TestFirstExecutionPastStartDateAdvances(t *testing.T) {
	now := date(2026, time.March, 10)
	start := date(2026, time.March, 1)

	// Weekly from Mar 1: Mar 8 is past, Mar 15 is the first future run.
	assert.Equal(t, date(2026, time.March, 15), FirstExecution(now, start, FrequencyWeekly))
}

func TestFirstExecutionZeroStartDate(t *testing.T) {
	now := date(2026, time.March, 10)

	assert.Equal(t, date(2026, time.March, 11), FirstExecution(now, time.Time{}, FrequencyDaily))
}
