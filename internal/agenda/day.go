package agenda

import "time"

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// compareDay compares the calendar days of a and b as seen in loc.
func compareDay(a, b time.Time, loc *time.Location) int {
	return StartOfDay(a.In(loc)).Compare(StartOfDay(b.In(loc)))
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	return compareDay(a, b, loc) == 0
}

func containsDay(days []time.Time, day time.Time) bool {
	loc := day.Location()
	for _, d := range days {
		if sameDay(d, day, loc) {
			return true
		}
	}
	return false
}
