package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	"statusboard/internal/agenda"
	appLog "statusboard/internal/log"
)

// ErrEmptyBody is returned when a feed has no content.
var ErrEmptyBody = errors.New("empty ICS body")

// Event is a VEVENT as read from an ICS payload. It implements
// agenda.RawEvent. Parsing only extracts plain property values; the RRULE
// is compiled lazily the first time the agenda asks for it, so events the
// agenda pre-filter drops never pay for it.
type Event struct {
	uid      string
	summary  string
	location string
	status   mo.Option[string]

	start  time.Time
	end    mo.Option[time.Time]
	allDay bool

	rawRRule     string
	exDates      [][]time.Time
	recurrenceID mo.Option[time.Time]

	ruleOnce sync.Once
	rule     agenda.Rule
	ruleErr  error
}

var _ agenda.RawEvent = (*Event)(nil)

func (e *Event) UID() string { return e.uid }
func (e *Event) Summary() string { return e.summary }
func (e *Event) Location() string { return e.location }
func (e *Event) Status() mo.Option[string] { return e.status }
func (e *Event) Start() time.Time { return e.start }
func (e *Event) End() mo.Option[time.Time] { return e.end }
func (e *Event) AllDay() bool { return e.allDay }
func (e *Event) IsRecurring() bool { return e.rawRRule != "" }
func (e *Event) RecurrenceID() mo.Option[time.Time] { return e.recurrenceID }
func (e *Event) ExDates() [][]time.Time { return e.exDates }

// Rule compiles the event's RRULE.
func (e *Event) Rule() (agenda.Rule, error) {
	e.ruleOnce.Do(func() {
		if e.rawRRule == "" {
			e.ruleErr = errors.New("event has no RRULE")
			return
		}
		e.rule, e.ruleErr = ParseRule(e.rawRRule)
	})
	return e.rule, e.ruleErr
}

// RawEvents converts parsed events to the agenda's view.
func RawEvents(events []*Event) []agenda.RawEvent {
	out := make([]agenda.RawEvent, len(events))
	for i, ev := range events {
		out[i] = ev
	}
	return out
}

// ParseICS parses a single ICS payload. Floating and date-only values are
// read in loc (time.Local when nil).
//
//   - TZID parameters resolve through the Go timezone database, Windows
//     zone names or the feed's VTIMEZONE blocks; unknown ones are logged and
//     read in loc.
//   - Without DTEND, the end is DTSTART plus DURATION.
//   - Events that cannot be read (no UID, no DTSTART) are logged and
//     skipped; the rest of the feed is still returned.
//   - Recurrence is recorded, not expanded.
func ParseICS(src Source, body []byte, loc *time.Location) ([]*Event, error) {
	if loc == nil {
		loc = time.Local
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	zones := newZoneResolver(src, cal, loc)
	events := make([]*Event, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, zones)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, zones *zoneResolver) (*Event, error) {
	out := &Event{}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, errors.New("missing UID")
	}
	out.uid = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && p.Value != "" {
		out.status = mo.Some(p.Value)
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil {
		return nil, fmt.Errorf("event %s: missing DTSTART", out.uid)
	}
	out.allDay = isDateValue(dtStartProp)

	// Values that are not basic DATE or DATE-TIME go through the
	// library's helpers.
	start, err := zones.propTime(dtStartProp)
	if err != nil {
		if start, err = ve.GetStartAt(); err != nil {
			return nil, fmt.Errorf("event %s: DTSTART: %w", out.uid, err)
		}
	}
	out.start = start

	if dtEndProp := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEndProp != nil {
		end, err := zones.propTime(dtEndProp)
		if err != nil {
			end, err = ve.GetEndAt()
		}
		if err == nil && !end.Before(start) {
			out.end = mo.Some(end)
		}
	} else if p := ve.GetProperty(ical.ComponentPropertyDuration); p != nil {
		d, err := parseDuration(p.Value)
		if err != nil {
			appLog.Debug("ics: ignoring unreadable DURATION", "uid", out.uid, "value", p.Value)
		} else if end := d.addTo(start); !end.Before(start) {
			out.end = mo.Some(end)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rawRRule = strings.TrimSpace(p.Value)
	}

	// EXDATE may repeat and each property may hold several values.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		values := make([]time.Time, 0, 1)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := zones.timeIn(part, tzidOf(p))
			if err != nil {
				appLog.Debug("ics: ignoring unreadable EXDATE", "uid", out.uid, "value", part)
				continue
			}
			values = append(values, t)
		}
		if len(values) > 0 {
			out.exDates = append(out.exDates, values)
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId); ridProp != nil {
		if t, err := zones.propTime(ridProp); err == nil {
			out.recurrenceID = mo.Some(t)
		}
	}

	return out, nil
}

// isDateValue detects VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses a basic ICS date or date-time. Floating values are
// placed in loc; values with a trailing Z are UTC.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
