package layout

import "calwidget/internal/model"

// YearCell is one calendar day of the year view. Count stays zero when no
// aggregate matched the day.
type YearCell struct {
	Date  model.Date `json:"date"`
	Count int        `json:"count"`
}

// YearCounts indexes already-filtered per-day aggregates by date. Duplicate
// dates accumulate.
func YearCounts(rows []model.DayCount) map[model.Date]int {
	counts := make(map[model.Date]int, len(rows))
	for _, r := range rows {
		counts[r.Date] += r.Count
	}
	return counts
}

// YearCells expands a year window into per-day cells with their counters.
// No overlap logic is involved; the year view is a plain accumulation path.
func YearCells(win model.TimeWindow, counts map[model.Date]int) []YearCell {
	cells := make([]YearCell, 0, win.Days())
	for d := win.Start; !d.After(win.End); d = d.AddDays(1) {
		cells = append(cells, YearCell{Date: d, Count: counts[d]})
	}
	return cells
}
