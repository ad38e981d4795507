package agenda

import "time"

// Relevant is a cheap test telling whether ev could possibly appear today
// or tomorrow. Recurring events and override instances always pass since
// deciding for them needs the full evaluation; single events pass only when
// they start on one of the two days. Dropping an event here must never
// change the result, only the cost of computing it.
func Relevant(ev RawEvent, today, tomorrow time.Time) bool {
	if ev.IsRecurring() || ev.RecurrenceID().IsPresent() {
		return true
	}

	start := ev.Start()
	if start.IsZero() {
		return false
	}

	loc := today.Location()
	return sameDay(start, today, loc) || sameDay(start, tomorrow, loc)
}

// Prepare is the per-calendar parse step: it keeps only the events that
// may matter for today or tomorrow and builds the exception index over
// them.
func Prepare(src Source, events []RawEvent, today, tomorrow time.Time) Calendar {
	kept := make([]RawEvent, 0, len(events))
	for _, ev := range events {
		if Relevant(ev, today, tomorrow) {
			kept = append(kept, ev)
		}
	}

	return Calendar{
		Source:     src,
		Events:     kept,
		Exceptions: BuildExceptionIndex(kept),
	}
}
