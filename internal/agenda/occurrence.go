package agenda

import (
	"errors"
	"time"
)

// MaxIterations bounds how many instants OccursOn pulls from a rule. A
// well-formed rule stops far earlier because it passes the target day; the
// cap only guards against rules that never move forward. It is sized so a
// daily rule started decades ago still reaches today.
const MaxIterations = 100_000

// ErrIterationCap is returned when a rule produced MaxIterations instants
// without reaching the target day.
var ErrIterationCap = errors.New("agenda: recurrence iteration cap reached")

// OccursOn reports whether rule, seeded at dtstart, produces an instant on
// day. Days are compared in day's location. An instant on an excluded day
// counts as no occurrence: a rule is not expected to hit the same calendar
// day twice, so the search stops there.
//
// Iteration stops as soon as an instant lands after day, which relies on
// the rule yielding instants in non-decreasing order.
func OccursOn(rule Rule, dtstart time.Time, exdates []time.Time, day time.Time) (bool, error) {
	loc := day.Location()
	next := rule.Iterator(dtstart)

	for i := 0; i < MaxIterations; i++ {
		candidate, ok := next()
		if !ok {
			return false, nil
		}

		switch compareDay(candidate, day, loc) {
		case 1:
			return false, nil
		case 0:
			return !containsDay(exdates, day), nil
		}
	}

	return false, ErrIterationCap
}
