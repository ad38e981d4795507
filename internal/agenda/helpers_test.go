package agenda

import (
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// fakeEvent is an in-memory RawEvent.
type fakeEvent struct {
	uid      string
	summary  string
	location string

	start  time.Time
	end    mo.Option[time.Time]
	allDay bool

	status mo.Option[string]

	recurring bool
	rule      Rule
	ruleErr   error

	recurrenceID mo.Option[time.Time]
	exdates      [][]time.Time
}

func (e *fakeEvent) UID() string { return e.uid }
func (e *fakeEvent) Summary() string { return e.summary }
func (e *fakeEvent) Location() string { return e.location }
func (e *fakeEvent) Start() time.Time { return e.start }
func (e *fakeEvent) End() mo.Option[time.Time] { return e.end }
func (e *fakeEvent) AllDay() bool { return e.allDay }
func (e *fakeEvent) Status() mo.Option[string] { return e.status }
func (e *fakeEvent) IsRecurring() bool { return e.recurring }
func (e *fakeEvent) Rule() (Rule, error) { return e.rule, e.ruleErr }
func (e *fakeEvent) RecurrenceID() mo.Option[time.Time] { return e.recurrenceID }
func (e *fakeEvent) ExDates() [][]time.Time { return e.exdates }

func single(uid string, start, end time.Time) *fakeEvent {
	return &fakeEvent{uid: uid, summary: uid, start: start, end: mo.Some(end)}
}

func recurring(uid string, freq rrule.Frequency, start, end time.Time, exdates ...[]time.Time) *fakeEvent {
	return &fakeEvent{
		uid:       uid,
		summary:   uid,
		start:     start,
		end:       mo.Some(end),
		recurring: true,
		rule:      rruleRule{opt: rrule.ROption{Freq: freq}},
		exdates:   exdates,
	}
}

func override(uid string, recurrenceID, start, end time.Time) *fakeEvent {
	ev := single(uid, start, end)
	ev.recurrenceID = mo.Some(recurrenceID)
	return ev
}

// rruleRule adapts an rrule-go option set to Rule.
type rruleRule struct {
	opt rrule.ROption
}

func (r rruleRule) Iterator(dtstart time.Time) Next {
	opt := r.opt
	opt.Dtstart = dtstart
	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return func() (time.Time, bool) { return time.Time{}, false }
	}
	return Next(rr.Iterator())
}

// stuckRule yields the same instant forever.
type stuckRule struct{}

func (stuckRule) Iterator(dtstart time.Time) Next {
	return func() (time.Time, bool) { return dtstart, true }
}

// countingRule wraps a rule and counts how many instants were pulled.
type countingRule struct {
	inner Rule
	calls *int
}

func (c countingRule) Iterator(dtstart time.Time) Next {
	next := c.inner.Iterator(dtstart)
	return func() (time.Time, bool) {
		*c.calls++
		return next()
	}
}

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func calendarOf(src Source, events ...RawEvent) Calendar {
	return Calendar{Source: src, Events: events, Exceptions: BuildExceptionIndex(events)}
}
