package agenda

import "time"

// ExceptionIndex maps a recurring event's UID to the days on which its
// recurrence must not produce an occurrence, either because of EXDATE or
// because a separate override instance replaces it.
type ExceptionIndex map[string][]time.Time

// Excluded reports whether day is listed for uid.
func (x ExceptionIndex) Excluded(uid string, day time.Time) bool {
	return containsDay(x[uid], day)
}

// BuildExceptionIndex scans one calendar's events once and collects the
// excluded days per UID. Overrides are recorded under the master's UID,
// which they share. Values accumulate across every EXDATE property and
// every override targeting the same UID.
func BuildExceptionIndex(events []RawEvent) ExceptionIndex {
	index := make(ExceptionIndex)

	for _, ev := range events {
		var days []time.Time

		switch {
		case ev.IsRecurring():
			for _, values := range ev.ExDates() {
				days = append(days, values...)
			}
			if len(days) == 0 {
				continue
			}
		case ev.RecurrenceID().IsPresent():
			days = []time.Time{ev.RecurrenceID().MustGet()}
		default:
			continue
		}

		index[ev.UID()] = append(index[ev.UID()], days...)
	}

	return index
}
