package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"statusboard/internal/agenda"
	appLog "statusboard/internal/log"
)

// zoneResolver turns TZID parameters into times for one feed. A TZID is
// looked up in the Go timezone database, then among the Windows names
// Outlook uses, then in the feed's own VTIMEZONE definitions. Anything else
// is read in the display zone and logged once.
type zoneResolver struct {
	src    Source
	def    *time.Location
	feed   map[string]*feedZone
	cache  map[string]*time.Location
	warned map[string]bool
}

func newZoneResolver(src Source, cal *ical.Calendar, def *time.Location) *zoneResolver {
	r := &zoneResolver{
		src:    src,
		def:    def,
		feed:   make(map[string]*feedZone),
		cache:  make(map[string]*time.Location),
		warned: make(map[string]bool),
	}
	for _, tz := range cal.Timezones() {
		p := tz.GetProperty(ical.ComponentPropertyTzid)
		if p == nil || p.Value == "" {
			continue
		}
		if z := newFeedZone(tz); len(z.observances) > 0 {
			r.feed[p.Value] = z
		}
	}
	return r
}

// propTime reads a DATE or DATE-TIME property honouring its TZID.
func (r *zoneResolver) propTime(p *ical.IANAProperty) (time.Time, error) {
	return r.timeIn(p.Value, tzidOf(p))
}

// timeIn reads v as a wall-clock value in the zone named tzid. UTC values
// ignore tzid; an empty tzid means the display zone.
func (r *zoneResolver) timeIn(v, tzid string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if tzid == "" || strings.HasSuffix(v, "Z") {
		return parseICSTime(v, r.def)
	}

	if loc := r.location(tzid); loc != nil {
		return parseICSTime(v, loc)
	}

	if z, ok := r.feed[tzid]; ok {
		wall, err := parseICSTime(v, time.UTC)
		if err != nil {
			return time.Time{}, err
		}
		off := z.offsetAt(wall)
		return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0,
			time.FixedZone(tzid, off)), nil
	}

	if !r.warned[tzid] {
		r.warned[tzid] = true
		appLog.Warn("ics: unknown TZID, reading times in display timezone",
			"id", r.src.ID, "tzid", tzid, "timezone", r.def.String())
	}
	return parseICSTime(v, r.def)
}

// location resolves tzid through the timezone database, directly or via its
// Windows name. It returns nil when neither knows it.
func (r *zoneResolver) location(tzid string) *time.Location {
	if loc, ok := r.cache[tzid]; ok {
		return loc
	}

	var loc *time.Location
	if l, err := time.LoadLocation(tzid); err == nil {
		loc = l
	} else if name, ok := windowsZones[tzid]; ok {
		if l, err := time.LoadLocation(name); err == nil {
			loc = l
		}
	}
	r.cache[tzid] = loc
	return loc
}

func tzidOf(p *ical.IANAProperty) string {
	tzs, ok := p.ICalParameters[string(ical.ParameterTzid)]
	if !ok || len(tzs) == 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(tzs[0]), `"`)
}

// observance is one STANDARD or DAYLIGHT block of a VTIMEZONE. Onsets are
// local wall-clock times stored as UTC.
type observance struct {
	start time.Time
	from  int
	to    int
	rule  agenda.Rule
}

// feedZone is a timezone defined only by the feed's VTIMEZONE.
type feedZone struct {
	observances []observance
}

func newFeedZone(tz *ical.VTimezone) *feedZone {
	z := &feedZone{}
	for _, sub := range tz.SubComponents() {
		var base *ical.ComponentBase
		switch c := sub.(type) {
		case *ical.Standard:
			base = &c.ComponentBase
		case *ical.Daylight:
			base = &c.ComponentBase
		default:
			continue
		}

		startProp := base.GetProperty(ical.ComponentPropertyDtStart)
		toProp := base.GetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto))
		if startProp == nil || toProp == nil {
			continue
		}
		start, err := parseICSTime(strings.TrimSuffix(startProp.Value, "Z"), time.UTC)
		if err != nil {
			continue
		}
		to, err := parseUTCOffset(toProp.Value)
		if err != nil {
			continue
		}
		from := to
		if p := base.GetProperty(ical.ComponentProperty(ical.PropertyTzoffsetfrom)); p != nil {
			if v, err := parseUTCOffset(p.Value); err == nil {
				from = v
			}
		}

		obs := observance{start: start, from: from, to: to}
		if p := base.GetProperty(ical.ComponentPropertyRrule); p != nil {
			if rule, err := ParseRule(p.Value); err == nil {
				obs.rule = rule
			}
		}
		z.observances = append(z.observances, obs)
	}
	return z
}

// offsetAt returns the UTC offset in seconds in effect at the wall-clock
// time wall (given as UTC). Before the first onset the earliest
// observance's TZOFFSETFROM applies.
func (z *feedZone) offsetAt(wall time.Time) int {
	var (
		best     time.Time
		offset   int
		found    bool
		earliest = z.observances[0]
	)
	for _, obs := range z.observances {
		if obs.start.Before(earliest.start) {
			earliest = obs
		}
		onset, ok := obs.lastOnset(wall)
		if ok && (!found || onset.After(best)) {
			best, offset, found = onset, obs.to, true
		}
	}
	if !found {
		return earliest.from
	}
	return offset
}

// lastOnset is the latest onset of obs at or before wall.
func (obs observance) lastOnset(wall time.Time) (time.Time, bool) {
	if obs.start.After(wall) {
		return time.Time{}, false
	}
	if obs.rule == nil {
		return obs.start, true
	}

	last, found := time.Time{}, false
	next := obs.rule.Iterator(obs.start)
	for i := 0; i < agenda.MaxIterations; i++ {
		t, ok := next()
		if !ok || t.After(wall) {
			break
		}
		last, found = t, true
	}
	if !found {
		return obs.start, true
	}
	return last, true
}

// parseUTCOffset reads a UTC offset such as "+0100", "-0530" or "+013045".
func parseUTCOffset(v string) (int, error) {
	v = strings.TrimSpace(v)
	if (len(v) != 5 && len(v) != 7) || (v[0] != '+' && v[0] != '-') {
		return 0, fmt.Errorf("invalid UTC offset %q", v)
	}
	parts := []string{v[1:3], v[3:5]}
	if len(v) == 7 {
		parts = append(parts, v[5:7])
	}

	secs := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid UTC offset %q", v)
		}
		secs += n * []int{3600, 60, 1}[i]
	}
	if v[0] == '-' {
		secs = -secs
	}
	return secs, nil
}
