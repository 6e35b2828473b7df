package icsfeed

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"calwidget/internal/log"
	"calwidget/internal/model"
)

// maxOccurrences caps expansion per event so a malformed RRULE cannot blow
// up a fetch.
const maxOccurrences = 5000

// expandEvents turns parsed feed events into discrete appointment instances
// within [rangeStart, rangeEnd]. The widget core never sees recurrence
// rules: RRULE/EXDATE/RECURRENCE-ID are all resolved here, in the adapter.
func expandEvents(events []feedEvent, rangeStart, rangeEnd time.Time, loc *time.Location) []model.Appointment {
	overrides := make(map[string][]feedEvent)
	var bases []feedEvent
	for _, ev := range events {
		if ev.recurrence != nil {
			overrides[ev.uid] = append(overrides[ev.uid], ev)
		} else {
			bases = append(bases, ev)
		}
	}

	var out []model.Appointment
	for _, ev := range bases {
		if ev.rawRRule == "" {
			if rangesOverlap(ev.start, ev.end, rangeStart, rangeEnd) {
				out = append(out, toAppointment(applyOverride(ev, overrides[ev.uid], ev.start), ev.start, ev.end, loc))
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.uid], rangeStart, rangeEnd, loc)...)
	}
	return out
}

func expandRecurring(ev feedEvent, overrides []feedEvent, rangeStart, rangeEnd time.Time, loc *time.Location) []model.Appointment {
	r, err := rrule.StrToRRule(ev.rawRRule)
	if err != nil {
		log.Error("ics: unparseable RRULE, event skipped", err, "uid", ev.uid)
		return nil
	}
	r.DTStart(ev.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.exDates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	starts := set.Between(rangeStart.In(ev.start.Location()), rangeEnd.In(ev.start.Location()), true)
	if len(starts) > maxOccurrences {
		log.Warn("ics: recurrence expansion truncated", "uid", ev.uid, "cap", maxOccurrences)
		starts = starts[:maxOccurrences]
	}

	dur := ev.end.Sub(ev.start)
	out := make([]model.Appointment, 0, len(starts))
	for _, start := range starts {
		var end time.Time
		if ev.allDay {
			day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			start = day
			end = day.Add(24 * time.Hour)
		} else {
			end = start.Add(dur)
		}
		inst := applyOverride(ev, overrides, start)
		if inst.recurrence != nil {
			start, end = inst.start, inst.end
		}
		out = append(out, toAppointment(inst, start, end, loc))
	}
	return out
}

// applyOverride substitutes the override whose RECURRENCE-ID matches the
// occurrence start, if any.
func applyOverride(base feedEvent, overrides []feedEvent, start time.Time) feedEvent {
	for _, ov := range overrides {
		if ov.recurrence != nil && ov.recurrence.In(start.Location()).Equal(start) {
			return ov
		}
	}
	return base
}

func toAppointment(ev feedEvent, start, end time.Time, loc *time.Location) model.Appointment {
	start = start.In(loc)
	end = end.In(loc)
	return model.Appointment{
		// One recurring event yields many instances; the start time keys
		// each instance apart.
		ID:          fmt.Sprintf("%s/%s/%s", ev.sub.ID, ev.uid, start.Format(time.RFC3339)),
		Title:       ev.summary,
		Description: ev.description,
		Location:    ev.location,
		AllDay:      ev.allDay,
		Start:       start,
		End:         end,
	}
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
