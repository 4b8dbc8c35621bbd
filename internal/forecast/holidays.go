package forecast

import "time"

// IsHoliday reports whether t falls on a major US holiday. Holidays carry
// strong demand signal, so they feed the calendar features of both the
// forecasting models and the anomaly detector's input vectors.
func IsHoliday(t time.Time) bool {
	y, m, d := t.Date()
	switch m {
	case time.January:
		return d == 1 || sameDay(t, nthWeekday(y, time.January, time.Monday, 3))
	case time.February:
		return sameDay(t, nthWeekday(y, time.February, time.Monday, 3))
	case time.May:
		return sameDay(t, lastWeekday(y, time.May, time.Monday))
	case time.June:
		return d == 19
	case time.July:
		return d == 4
	case time.September:
		return sameDay(t, nthWeekday(y, time.September, time.Monday, 1))
	case time.November:
		return sameDay(t, nthWeekday(y, time.November, time.Thursday, 4))
	case time.December:
		return d == 25 || d == 31
	}
	return false
}

// nthWeekday returns the nth given weekday of a month
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last given weekday of a month
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	last := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
