package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"statusboard/internal/agenda"
)

// rule is an RRULE compiled by rrule-go, re-seeded for every iteration.
type rule struct {
	opt rrule.ROption
}

// ParseRule compiles an RRULE property value (without the "RRULE:" prefix)
// into an agenda.Rule.
func ParseRule(raw string) (agenda.Rule, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "RRULE:")
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", raw, err)
	}
	// Validate once up front so iteration never meets a broken rule.
	if _, err := rrule.NewRRule(*opt); err != nil {
		return nil, fmt.Errorf("build RRULE %q: %w", raw, err)
	}
	return rule{opt: *opt}, nil
}

// Iterator returns the rule's instants starting at dtstart, in dtstart's
// location.
func (r rule) Iterator(dtstart time.Time) agenda.Next {
	opt := r.opt
	opt.Dtstart = dtstart
	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return func() (time.Time, bool) { return time.Time{}, false }
	}
	return agenda.Next(rr.Iterator())
}
