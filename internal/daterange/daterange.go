// Package daterange maps a (view, reference date, week-start convention)
// triple to the closed calendar window the view renders. Resolution is pure:
// no clocks, no timezones, only date arithmetic.
package daterange

import (
	"time"

	"calwidget/internal/model"
	"calwidget/internal/view"
)

// Resolve computes the visible window for the given view anchored at date.
//
//   - Day: the single date.
//   - Week: the week containing date under the configured first weekday.
//   - Month: the month containing date, padded out to whole weeks on both
//     sides so the grid always renders complete rows.
//   - Year: January 1 through December 31 of date's year. Search shares the
//     year window, since its fetches are term-driven rather than
//     window-driven.
func Resolve(v view.Kind, date model.Date, startWeekOnSunday bool) model.TimeWindow {
	switch v {
	case view.Day:
		return model.TimeWindow{Anchor: date, Start: date, End: date}
	case view.Week:
		start := startOfWeek(date, startWeekOnSunday)
		// The end is derived from the computed start, never independently
		// from date: deriving both from date drifts across month rollovers.
		return model.TimeWindow{Anchor: date, Start: start, End: start.AddDays(6)}
	case view.Month:
		first := model.Date{Year: date.Year, Month: date.Month, Day: 1}
		last := lastOfMonth(date)
		start := startOfWeek(first, startWeekOnSunday)
		end := endOfWeek(last, startWeekOnSunday)
		return model.TimeWindow{Anchor: date, Start: start, End: end}
	default: // view.Year and the search overlay
		return model.TimeWindow{
			Anchor: date,
			Start:  model.Date{Year: date.Year, Month: time.January, Day: 1},
			End:    model.Date{Year: date.Year, Month: time.December, Day: 31},
		}
	}
}

// startOfWeek shifts d back to the configured first weekday.
func startOfWeek(d model.Date, startWeekOnSunday bool) model.Date {
	wd := int(d.Weekday()) // Sunday = 0
	var back int
	if startWeekOnSunday {
		back = wd
	} else {
		back = (wd + 6) % 7
	}
	return d.AddDays(-back)
}

// endOfWeek shifts d forward to the configured last weekday.
func endOfWeek(d model.Date, startWeekOnSunday bool) model.Date {
	return startOfWeek(d, startWeekOnSunday).AddDays(6)
}

func lastOfMonth(d model.Date) model.Date {
	// Day 0 of the following month normalizes to the last day of this one.
	t := time.Date(d.Year, d.Month+1, 0, 0, 0, 0, 0, time.UTC)
	return model.DateOf(t)
}

// WeekNumber returns the ISO-8601 week number of d (Thursday-anchored,
// Monday-based). It exists purely for display labeling; window boundaries
// never depend on it.
func WeekNumber(d model.Date) int {
	_, week := d.Time(time.UTC).ISOWeek()
	return week
}
