package plan

import "time"

// payPeriodDays is the length of one pay period.
const payPeriodDays = 14

// NextPayday returns the first payday strictly after today, where paydays
// fall every 14 days from the anchor date, along with the number of days
// until it. Both inputs are treated as calendar dates; time-of-day is
// discarded.
func NextPayday(today, anchor time.Time) (time.Time, int) {
	today = dateOnly(today)
	anchor = dateOnly(anchor)

	delta := daysBetween(anchor, today)

	var next time.Time
	if delta >= 0 {
		periodsPassed := delta / payPeriodDays
		next = anchor.AddDate(0, 0, (periodsPassed+1)*payPeriodDays)
	} else {
		// Today precedes the anchor: step the anchor back whole periods,
		// then forward until it lands after today.
		periodsBehind := (-delta) / payPeriodDays
		next = anchor.AddDate(0, 0, -periodsBehind*payPeriodDays)
		for !next.After(today) {
			next = next.AddDate(0, 0, payPeriodDays)
		}
	}

	return next, daysBetween(today, next)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
