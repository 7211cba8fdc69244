package schedule

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// AddAge returns dob shifted by a recommended age. Months are added on the
// calendar and clamped to the last day of the target month (Jan 31 + 1 month
// is Feb 28, or Feb 29 in a leap year); weeks are then added as whole days.
func AddAge(dob time.Time, a Age) time.Time {
	return addMonthsClamped(dob, a.Months).AddDate(0, 0, a.Weeks*7)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// AgeInMonths is the calendar-month difference between dob and now, floored
// at zero. Days of the month are ignored.
func AgeInMonths(dob, now time.Time) int {
	months := (now.Year()-dob.Year())*12 + int(now.Month()) - int(dob.Month())
	if months < 0 {
		return 0
	}
	return months
}

// daysUntil rounds the distance from now to due up to whole days.
func daysUntil(due, now time.Time) int {
	d := math.Ceil(float64(due.Sub(now)) / float64(day))
	if d == 0 {
		// Ceil of a small negative fraction yields -0.
		return 0
	}
	return int(d)
}
