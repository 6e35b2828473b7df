// Package normalize turns raw data-source records into the display-ready
// form the layout engine consumes: clamped all-day bounds, computed
// durations, and one display segment per calendar day touched.
package normalize

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"calwidget/internal/daterange"
	"calwidget/internal/log"
	"calwidget/internal/model"
	"calwidget/internal/view"
)

// Params is the context one normalization pass runs under. The week and
// month windows are the padded grids currently rendered; segment visibility
// flags are computed against them, so a multi-day appointment can carry
// segments that exist but are excluded from rendering.
type Params struct {
	View              view.Kind
	SearchMode        bool
	Date              model.Date
	StartWeekOnSunday bool
	Location          *time.Location
	Now               func() time.Time
}

func (p Params) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Params) loc() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

// Appointments normalizes raw rows for day/week/month/search rendering.
//
// All-day bounds are clamped to 00:00:00–23:59:59 of their calendar days.
// Rows sort ascending by start with all-day rows first, except in search
// mode where server-provided order is preserved. The isToday/isNow flags are
// computed once against wall-clock now; staleness within one render cycle is
// accepted.
func Appointments(rows []model.Appointment, p Params) []model.Normalized {
	loc := p.loc()
	now := p.now()
	today := model.DateOf(now.In(loc))

	weekWin := daterange.Resolve(view.Week, p.Date, p.StartWeekOnSunday)
	monthWin := daterange.Resolve(view.Month, p.Date, p.StartWeekOnSunday)

	out := make([]model.Normalized, 0, len(rows))
	for _, raw := range rows {
		if raw.Start.IsZero() || raw.End.IsZero() {
			log.Debug("normalize: dropping record without valid bounds", "id", raw.ID, "title", raw.Title)
			continue
		}

		n := model.Normalized{Appointment: raw}
		n.Title = strings.TrimSpace(n.Title)
		n.Location = strings.TrimSpace(n.Location)

		start := raw.Start.In(loc)
		end := raw.End.In(loc)
		if end.Before(start) {
			start, end = end, start
		}
		if raw.AllDay {
			start = model.DateOf(start).Time(loc)
			end = model.DateOf(end).EndOfDay(loc)
		}
		n.Start = start
		n.End = end

		n.Duration = duration(start, end, raw.AllDay)
		n.Segments = segments(start, end, loc, weekWin, monthWin)
		n.IsToday = spanTouchesDate(n.Segments, today)
		n.IsNow = !now.Before(start) && !now.After(end)

		out = append(out, n)
	}

	if !p.SearchMode {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].AllDay != out[j].AllDay {
				return out[i].AllDay
			}
			return out[i].Start.Before(out[j].Start)
		})
	}

	return out
}

// duration breaks the span down into days/hours/minutes/seconds. All-day
// spans count whole calendar days inclusive of both endpoints and ignore
// time-of-day entirely.
func duration(start, end time.Time, allDay bool) model.Duration {
	if allDay {
		days := model.DateOf(start).DaysUntil(model.DateOf(end)) + 1
		return model.Duration{Days: days}
	}
	total := int(end.Sub(start).Seconds())
	if total < 0 {
		total = 0
	}
	return model.Duration{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}

// segments produces one DisplaySegment per calendar day in [start, end].
// The first and last day keep the real start/end times; interior days cover
// the full day.
func segments(start, end time.Time, loc *time.Location, weekWin, monthWin model.TimeWindow) []model.DisplaySegment {
	first := model.DateOf(start)
	last := model.DateOf(end)

	segs := make([]model.DisplaySegment, 0, first.DaysUntil(last)+1)
	for d := first; !d.After(last); d = d.AddDays(1) {
		ts := d.Time(loc)
		te := d.EndOfDay(loc)
		if d == first {
			ts = start
		}
		if d == last {
			te = end
		}
		segs = append(segs, model.DisplaySegment{
			Date:           d,
			Weekday:        d.Weekday(),
			TimeStart:      ts,
			TimeEnd:        te,
			VisibleInWeek:  weekWin.Contains(d),
			VisibleInMonth: monthWin.Contains(d),
		})
	}
	return segs
}

func spanTouchesDate(segs []model.DisplaySegment, d model.Date) bool {
	for _, s := range segs {
		if s.Date == d {
			return true
		}
	}
	return false
}

// YearTotals filters and coerces pre-aggregated year-view rows. Records
// missing a valid date are silently dropped, as are totals that fail to
// parse or are not positive; string totals are coerced to integers.
func YearTotals(rows []model.Appointment) []model.DayCount {
	out := make([]model.DayCount, 0, len(rows))
	for _, raw := range rows {
		d, err := model.ParseDate(strings.TrimSpace(raw.Date))
		if err != nil {
			log.Debug("normalize: dropping year record with invalid date", "date", raw.Date)
			continue
		}
		total, err := strconv.Atoi(strings.TrimSpace(raw.Total))
		if err != nil || total <= 0 {
			continue
		}
		out = append(out, model.DayCount{Date: d, Count: total})
	}
	return out
}
