package ics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationRgx = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// icsDuration is a DURATION value. Weeks and days are nominal and follow
// the calendar across DST changes; hours, minutes and seconds are exact.
type icsDuration struct {
	negative bool
	days     int
	clock    time.Duration
}

// parseDuration reads an RFC 5545 dur-value such as "PT2H", "P1D",
// "P1W" or "-PT15M".
func parseDuration(v string) (icsDuration, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	m := durationRgx.FindStringSubmatch(v)
	if m == nil || v == "P" || strings.HasSuffix(v, "T") || m[2]+m[3]+m[4]+m[5]+m[6] == "" {
		return icsDuration{}, fmt.Errorf("invalid DURATION %q", v)
	}

	num := func(s string) int {
		if s == "" {
			return 0
		}
		n, _ := strconv.Atoi(s)
		return n
	}

	return icsDuration{
		negative: m[1] == "-",
		days:     num(m[2])*7 + num(m[3]),
		clock: time.Duration(num(m[4]))*time.Hour +
			time.Duration(num(m[5]))*time.Minute +
			time.Duration(num(m[6]))*time.Second,
	}, nil
}

// addTo returns t moved by d.
func (d icsDuration) addTo(t time.Time) time.Time {
	if d.negative {
		return t.AddDate(0, 0, -d.days).Add(-d.clock)
	}
	return t.AddDate(0, 0, d.days).Add(d.clock)
}
