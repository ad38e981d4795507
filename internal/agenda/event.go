// Package agenda decides which calendar occurrences belong on the board:
// everything still happening today or, when nothing is left, everything
// happening tomorrow. It works on already-parsed events and never touches
// the network or the clock on its own.
package agenda

import (
	"time"

	"github.com/samber/mo"
)

// Next yields the following recurrence instant. ok is false once the rule
// is exhausted.
type Next func() (value time.Time, ok bool)

// Rule is a recurrence rule able to produce its instants in order,
// starting at dtstart.
type Rule interface {
	Iterator(dtstart time.Time) Next
}

// RawEvent is the read-only view of a parsed VEVENT.
type RawEvent interface {
	UID() string
	Summary() string
	Location() string

	Start() time.Time
	// End is absent for instantaneous events.
	End() mo.Option[time.Time]
	AllDay() bool

	Status() mo.Option[string]

	// IsRecurring reports whether the event carries an RRULE. Rule returns
	// an error when the rule is flagged but cannot be used.
	IsRecurring() bool
	Rule() (Rule, error)

	// RecurrenceID is present on override instances only.
	RecurrenceID() mo.Option[time.Time]

	// ExDates returns one slice per EXDATE property, each holding that
	// property's values.
	ExDates() [][]time.Time
}

// Source is one configured calendar feed.
type Source struct {
	ID    string
	Name  string
	URL   string
	Color string
}

// Calendar bundles one source with the events parsed from it in the
// current pass. A non-nil Err marks a source that failed to fetch or parse;
// such a calendar contributes no events.
type Calendar struct {
	Source     Source
	Events     []RawEvent
	Exceptions ExceptionIndex
	Err        error
}

// Failed builds the bundle for a source that could not be loaded.
func Failed(src Source, err error) Calendar {
	return Calendar{Source: src, Err: err}
}
