package agenda

import (
	"slices"
	"time"

	"statusboard/internal/model"
)

// Resolve merges every calendar's occurrences into the selection shown on
// the board. now is the current moment; its location defines the days.
//
// Occurrences of today that already ended are dropped. If nothing is left
// for today across all calendars, tomorrow's occurrences are shown instead
// and the header names tomorrow. Failed calendars contribute nothing; when
// no calendar loaded at all the selection is empty and names today.
func Resolve(calendars []Calendar, now time.Time) model.DisplaySelection {
	today := StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	loaded := make([]Calendar, 0, len(calendars))
	for _, cal := range calendars {
		if cal.Err == nil {
			loaded = append(loaded, cal)
		}
	}

	selection := model.DisplaySelection{
		Events:      []model.ResolvedEvent{},
		HeaderDate:  today,
		GeneratedAt: now,
	}
	if len(loaded) == 0 {
		return selection
	}

	for _, cal := range loaded {
		for _, occ := range SelectDay(cal, today) {
			if endsAfter(occ, now) {
				selection.Events = append(selection.Events, occ)
			}
		}
	}

	if len(selection.Events) == 0 {
		selection.HeaderDate = tomorrow
		selection.Tomorrow = true
		for _, cal := range loaded {
			selection.Events = append(selection.Events, SelectDay(cal, tomorrow)...)
		}
	}

	slices.SortStableFunc(selection.Events, func(a, b model.ResolvedEvent) int {
		return a.InstanceStart.Compare(b.InstanceStart)
	})

	return selection
}

// endsAfter reports whether occ is still running or upcoming at now.
// All-day events last until the end of their start day at least, even when
// the feed gives them no end.
func endsAfter(occ model.ResolvedEvent, now time.Time) bool {
	end := occ.InstanceEnd
	if occ.AllDay {
		dayEnd := StartOfDay(occ.InstanceStart.In(now.Location())).AddDate(0, 0, 1)
		if dayEnd.After(end) {
			end = dayEnd
		}
	}
	return end.After(now)
}
