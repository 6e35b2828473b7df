// Package layout packs overlapping appointments into display columns and
// converts time-of-day to pixel geometry for the day/week time grids. It is
// purely computational; the embedding host owns actual rendering.
package layout

import (
	"sort"
	"time"

	"calwidget/internal/model"
	"calwidget/internal/view"
)

// Config is the geometry of the time grid.
type Config struct {
	// HourStart/HourEnd bound the visible hour range. Intervals entirely
	// outside collapse to zero height (hidden, not an error).
	HourStart int
	HourEnd   int
	// RowHeight is the pixel height of one hour.
	RowHeight float64
}

// Slot is one appointment interval on a single weekday, before packing.
type Slot struct {
	AppointmentID string
	Start         time.Time
	End           time.Time
}

// Geometry is the resolved placement of one slot. The host looks the
// appointment up by ID; domain objects are never embedded in geometry.
type Geometry struct {
	AppointmentID string  `json:"id"`
	TopPx         float64 `json:"topPx"`
	HeightPx      float64 `json:"heightPx"`
	LeftPercent   float64 `json:"leftPercent"`
	WidthPercent  float64 `json:"widthPercent"`
	FullWidth     bool    `json:"fullWidth"`
	Hidden        bool    `json:"hidden"`
}

// Day is the layout of one weekday cell: packed time-grid geometry plus the
// always-visible all-day lane.
type Day struct {
	Date    model.Date `json:"date"`
	Week    int        `json:"week"`
	AllDay  []string   `json:"allDay"`
	Items   []Geometry `json:"items"`
	Columns int        `json:"columns"`
}

// BuildDays lays out normalized appointments over every day of the window.
// Only segments visible in the active view participate; all-day
// appointments bypass column packing and land in the per-day lane.
func BuildDays(appts []model.Normalized, win model.TimeWindow, active view.Kind, cfg Config) []Day {
	days := make([]Day, 0, win.Days())
	for d := win.Start; !d.After(win.End); d = d.AddDays(1) {
		day := Day{Date: d}

		var slots []Slot
		for i := range appts {
			a := &appts[i]
			for _, seg := range a.Segments {
				if seg.Date != d || !segmentVisible(seg, active) {
					continue
				}
				if a.AllDay {
					day.AllDay = append(day.AllDay, a.ID)
				} else {
					slots = append(slots, Slot{AppointmentID: a.ID, Start: seg.TimeStart, End: seg.TimeEnd})
				}
			}
		}

		day.Items, day.Columns = Pack(slots, cfg)
		days = append(days, day)
	}
	return days
}

func segmentVisible(seg model.DisplaySegment, active view.Kind) bool {
	switch active {
	case view.Week:
		return seg.VisibleInWeek
	case view.Month:
		return seg.VisibleInMonth
	default:
		return true
	}
}

// Pack assigns overlapping slots to non-overlapping columns (greedy interval
// coloring) and resolves each into pixel geometry.
//
// One cosmetic rule rides on top of the packing: a slot that overlaps no
// other slot, encountered while no columns exist yet, renders full-width
// instead of opening a column. This is not geometrically required, it
// preserves the look of sparse days.
func Pack(slots []Slot, cfg Config) ([]Geometry, int) {
	if len(slots) == 0 {
		return nil, 0
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})

	type placed struct {
		slot      Slot
		column    int
		fullWidth bool
	}

	// columns[i] holds the slots already assigned to column i.
	var columns [][]Slot
	items := make([]placed, 0, len(slots))

	for idx, s := range slots {
		if !overlapsAny(slots, idx) && len(columns) == 0 {
			items = append(items, placed{slot: s, fullWidth: true})
			continue
		}

		col := -1
		for i := range columns {
			last := columns[i][len(columns[i])-1]
			if !overlaps(last, s) {
				col = i
				break
			}
		}
		if col == -1 {
			columns = append(columns, nil)
			col = len(columns) - 1
		}
		columns[col] = append(columns[col], s)
		items = append(items, placed{slot: s, column: col})
	}

	total := len(columns)
	out := make([]Geometry, 0, len(items))
	for _, p := range items {
		g := vertical(p.slot, cfg)
		g.AppointmentID = p.slot.AppointmentID
		if p.fullWidth {
			g.FullWidth = true
			g.LeftPercent = 0
			g.WidthPercent = 100
		} else {
			span := 1
			// Reclaim trailing horizontal space: widen across later columns
			// until one of them holds an interval overlapping ours.
			for j := p.column + 1; j < total; j++ {
				if columnOverlaps(columns[j], p.slot) {
					break
				}
				span++
			}
			width := 100.0 / float64(total)
			g.LeftPercent = float64(p.column) * width
			g.WidthPercent = float64(span) * width
		}
		out = append(out, g)
	}
	return out, total
}

// vertical clips the interval to the visible hour range and converts it to
// pixel offsets. Intervals entirely outside the range are hidden.
func vertical(s Slot, cfg Config) Geometry {
	startMin := minuteOfDay(s.Start)
	endMin := minuteOfDay(s.End)
	if endMin == 0 && s.End.After(s.Start) {
		// An end at exactly midnight belongs to the previous day's grid.
		endMin = 24 * 60
	}

	loMin := cfg.HourStart * 60
	hiMin := cfg.HourEnd * 60

	if endMin <= loMin || startMin >= hiMin {
		return Geometry{Hidden: true}
	}
	if startMin < loMin {
		startMin = loMin
	}
	if endMin > hiMin {
		endMin = hiMin
	}

	return Geometry{
		TopPx:    float64(startMin-loMin) / 60 * cfg.RowHeight,
		HeightPx: float64(endMin-startMin) / 60 * cfg.RowHeight,
	}
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// overlaps reports whether two intervals share any time. Touching endpoints
// do not overlap.
func overlaps(a, b Slot) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func overlapsAny(slots []Slot, idx int) bool {
	for i, s := range slots {
		if i != idx && overlaps(s, slots[idx]) {
			return true
		}
	}
	return false
}

func columnOverlaps(col []Slot, s Slot) bool {
	for _, c := range col {
		if overlaps(c, s) {
			return true
		}
	}
	return false
}
