package scheduler

import (
	"time"

	"marketalerts/internal/models"
)

// NextTrigger returns when a recurring alert becomes due again after
// firing at the given time. Daily and weekly add whole calendar days;
// monthly adds one calendar month, clamping the day-of-month to the last
// valid day (Jan 31 -> Feb 28) instead of rolling into the month after.
func NextTrigger(interval models.Interval, from time.Time) time.Time {
	switch interval {
	case models.IntervalDaily:
		return from.AddDate(0, 0, 1)
	case models.IntervalWeekly:
		return from.AddDate(0, 0, 7)
	case models.IntervalMonthly:
		return addMonthClamped(from)
	default:
		// Unknown intervals behave as daily so a malformed alert still
		// makes forward progress instead of refiring every pass.
		return from.AddDate(0, 0, 1)
	}
}

func addMonthClamped(from time.Time) time.Time {
	year, month, day := from.Date()
	firstOfNext := time.Date(year, month, 1, 0, 0, 0, 0, from.Location()).AddDate(0, 1, 0)
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	hour, minute, second := from.Clock()
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, hour, minute, second, from.Nanosecond(), from.Location())
}
