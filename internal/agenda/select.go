package agenda

import (
	"errors"
	"strings"
	"time"

	appLog "statusboard/internal/log"
	"statusboard/internal/metrics"
	"statusboard/internal/model"
)

// SelectDay returns the occurrences of cal's events that fall on day, in
// the order the events were encountered. day is interpreted in its own
// location; only its date matters.
func SelectDay(cal Calendar, day time.Time) []model.ResolvedEvent {
	day = StartOfDay(day)
	out := make([]model.ResolvedEvent, 0)

	for _, ev := range cal.Events {
		if isCancelled(ev) {
			continue
		}

		if ev.IsRecurring() {
			occ, ok := recurringInstance(cal, ev, day)
			if ok {
				out = append(out, occ)
			}
			continue
		}

		if !sameDay(ev.Start(), day, day.Location()) {
			continue
		}
		start := ev.Start()
		out = append(out, resolved(cal.Source, ev, start, ev.End().OrElse(start), day.Location()))
	}

	return out
}

// recurringInstance evaluates a recurring event for day. Events whose rule
// is unusable or never reaches day are logged and skipped.
func recurringInstance(cal Calendar, ev RawEvent, day time.Time) (model.ResolvedEvent, bool) {
	rule, err := ev.Rule()
	if err != nil || rule == nil {
		if err == nil {
			err = errors.New("recurring event has no rule")
		}
		metrics.SkippedEvents.Inc()
		appLog.Error("agenda: skipping recurring event", err, "uid", ev.UID(), "calendar", cal.Source.ID)
		return model.ResolvedEvent{}, false
	}

	// An excluded day never yields an occurrence; skip the rule walk.
	if cal.Exceptions.Excluded(ev.UID(), day) {
		return model.ResolvedEvent{}, false
	}

	ok, err := OccursOn(rule, ev.Start(), cal.Exceptions[ev.UID()], day)
	if err != nil {
		metrics.IterationCapHits.Inc()
		appLog.Error("agenda: recurrence evaluation stopped", err,
			"uid", ev.UID(),
			"calendar", cal.Source.ID,
			"day", day.Format(time.DateOnly),
			"cap", MaxIterations,
		)
		return model.ResolvedEvent{}, false
	}
	if !ok {
		return model.ResolvedEvent{}, false
	}

	// Recurring events repeat at the same wall-clock time; move the
	// original hour and minute onto the target date and keep the duration.
	orig := ev.Start().In(day.Location())
	start := time.Date(day.Year(), day.Month(), day.Day(), orig.Hour(), orig.Minute(), 0, 0, day.Location())
	duration := ev.End().OrElse(ev.Start()).Sub(ev.Start())
	if duration < 0 {
		duration = 0
	}

	return resolved(cal.Source, ev, start, start.Add(duration), day.Location()), true
}

// resolved copies ev into a ResolvedEvent with times shown in loc.
func resolved(src Source, ev RawEvent, start, end time.Time, loc *time.Location) model.ResolvedEvent {
	start, end = start.In(loc), end.In(loc)
	if end.Before(start) {
		end = start
	}
	return model.ResolvedEvent{
		UID:           ev.UID(),
		Summary:       ev.Summary(),
		Location:      ev.Location(),
		Color:         src.Color,
		AllDay:        ev.AllDay(),
		InstanceStart: start,
		InstanceEnd:   end,
	}
}

func isCancelled(ev RawEvent) bool {
	status, ok := ev.Status().Get()
	return ok && strings.EqualFold(strings.TrimSpace(status), "cancelled")
}
