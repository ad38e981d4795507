package model

import "time"

// ResolvedEvent is one concrete occurrence of a calendar event on a single
// day. It carries copied values only; nothing points back at the parsed
// calendar, so the "today" and "tomorrow" passes never share state.
type ResolvedEvent struct {
	UID string // iCalendar UID

	Summary  string
	Location string

	// Color is the CSS colour configured for the owning calendar.
	Color string

	AllDay bool

	// InstanceStart / InstanceEnd bound this occurrence. InstanceEnd is never
	// before InstanceStart; events without DTEND have InstanceEnd == InstanceStart.
	InstanceStart time.Time
	InstanceEnd   time.Time
}

// DisplaySelection is the result of one resolution pass: the occurrences to
// show and the day the header should name. It is rebuilt on every refresh
// and never mutated afterwards.
type DisplaySelection struct {
	Events     []ResolvedEvent
	HeaderDate time.Time

	// Tomorrow is true when no occurrence remained for today and the
	// selection fell back to the next day.
	Tomorrow bool

	GeneratedAt time.Time
}

// HeaderLabel returns "Today" or "Tomorrow" for the header date.
func (s DisplaySelection) HeaderLabel() string {
	if s.Tomorrow {
		return "Tomorrow"
	}
	return "Today"
}
