package layout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwidget/internal/model"
	"calwidget/internal/view"
)

var fullDay = Config{HourStart: 0, HourEnd: 24, RowHeight: 40}

func slot(id string, startH, startM, endH, endM int) Slot {
	day := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	return Slot{
		AppointmentID: id,
		Start:         day.Add(time.Duration(startH)*time.Hour + time.Duration(startM)*time.Minute),
		End:           day.Add(time.Duration(endH)*time.Hour + time.Duration(endM)*time.Minute),
	}
}

func TestPackOverlappingSlotsGetDistinctColumns(t *testing.T) {
	items, columns := Pack([]Slot{
		slot("a", 9, 0, 10, 0),
		slot("b", 9, 30, 10, 30),
	}, fullDay)

	require.Len(t, items, 2)
	assert.Equal(t, 2, columns)

	assert.Equal(t, 0.0, items[0].LeftPercent)
	assert.Equal(t, 50.0, items[0].WidthPercent)
	assert.Equal(t, 50.0, items[1].LeftPercent)
	assert.Equal(t, 50.0, items[1].WidthPercent)
}

func TestPackSingleSlotIsFullWidth(t *testing.T) {
	items, columns := Pack([]Slot{slot("a", 9, 0, 10, 0)}, fullDay)

	require.Len(t, items, 1)
	assert.Equal(t, 0, columns)
	assert.True(t, items[0].FullWidth)
	assert.Equal(t, 100.0, items[0].WidthPercent)
}

func TestPackTouchingEndpointsShareAColumn(t *testing.T) {
	// b and c overlap; a ends exactly when c starts, so a and c stack in
	// the same column.
	items, columns := Pack([]Slot{
		slot("a", 9, 0, 10, 0),
		slot("b", 9, 30, 10, 30),
		slot("c", 10, 0, 11, 0),
	}, fullDay)

	require.Len(t, items, 3)
	assert.Equal(t, 2, columns)

	byID := map[string]Geometry{}
	for _, g := range items {
		byID[g.AppointmentID] = g
	}
	assert.Equal(t, byID["a"].LeftPercent, byID["c"].LeftPercent)
	assert.NotEqual(t, byID["a"].LeftPercent, byID["b"].LeftPercent)
}

func TestPackReclaimsTrailingSpace(t *testing.T) {
	// a, b, c overlap pairwise at 9:00 and occupy three columns. d starts
	// after a and c ended, conflicting only with nothing in columns 1-2,
	// so it widens across them.
	items, columns := Pack([]Slot{
		slot("a", 9, 0, 10, 0),
		slot("b", 9, 0, 12, 0),
		slot("c", 9, 0, 10, 0),
		slot("d", 13, 0, 14, 0),
	}, fullDay)

	require.Len(t, items, 4)
	assert.Equal(t, 3, columns)

	byID := map[string]Geometry{}
	for _, g := range items {
		byID[g.AppointmentID] = g
	}
	assert.InDelta(t, 100.0/3, byID["a"].WidthPercent, 0.001)
	assert.InDelta(t, 100.0, byID["d"].WidthPercent, 0.001, "trailing slot should span all free columns")
}

func TestPackNoOverlapWithinColumn(t *testing.T) {
	slots := []Slot{
		slot("a", 8, 0, 9, 30),
		slot("b", 9, 0, 10, 0),
		slot("c", 9, 45, 11, 0),
		slot("d", 10, 30, 12, 0),
		slot("e", 11, 0, 11, 30),
	}
	items, columns := Pack(slots, fullDay)
	require.Len(t, items, len(slots))
	require.Greater(t, columns, 0)

	byID := map[string]Slot{}
	for _, s := range slots {
		byID[s.AppointmentID] = s
	}
	byCol := map[float64][]Slot{}
	for _, g := range items {
		byCol[g.LeftPercent] = append(byCol[g.LeftPercent], byID[g.AppointmentID])
	}
	for left, col := range byCol {
		for i := range col {
			for j := i + 1; j < len(col); j++ {
				assert.False(t, overlaps(col[i], col[j]),
					"column at %.1f%% holds overlapping slots %s and %s",
					left, col[i].AppointmentID, col[j].AppointmentID)
			}
		}
	}
}

func TestVerticalGeometry(t *testing.T) {
	cfg := Config{HourStart: 8, HourEnd: 18, RowHeight: 40}

	tests := []struct {
		name       string
		slot       Slot
		wantHidden bool
		wantTop    float64
		wantHeight float64
	}{
		{"inside range", slot("a", 9, 0, 10, 30), false, 40, 60},
		{"clipped at start", slot("a", 7, 0, 9, 0), false, 0, 40},
		{"clipped at end", slot("a", 17, 0, 19, 0), false, 360, 40},
		{"entirely before range", slot("a", 5, 0, 7, 0), true, 0, 0},
		{"entirely after range", slot("a", 19, 0, 20, 0), true, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := vertical(tc.slot, cfg)
			assert.Equal(t, tc.wantHidden, g.Hidden)
			if !tc.wantHidden {
				assert.Equal(t, tc.wantTop, g.TopPx)
				assert.Equal(t, tc.wantHeight, g.HeightPx)
			}
		})
	}
}

func TestVerticalMidnightEnd(t *testing.T) {
	day := time.Date(2024, time.March, 14, 23, 0, 0, 0, time.UTC)
	g := vertical(Slot{AppointmentID: "a", Start: day, End: day.Add(time.Hour)}, fullDay)
	assert.False(t, g.Hidden)
	assert.Equal(t, 23.0*40, g.TopPx)
	assert.Equal(t, 40.0, g.HeightPx)
}

func TestBuildDays(t *testing.T) {
	win := model.TimeWindow{
		Anchor: model.Date{Year: 2024, Month: time.March, Day: 14},
		Start:  model.Date{Year: 2024, Month: time.March, Day: 11},
		End:    model.Date{Year: 2024, Month: time.March, Day: 17},
	}

	appts := []model.Normalized{
		{
			Appointment: model.Appointment{ID: "timed"},
			Segments: []model.DisplaySegment{{
				Date:          model.Date{Year: 2024, Month: time.March, Day: 14},
				TimeStart:     time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC),
				TimeEnd:       time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC),
				VisibleInWeek: true,
			}},
		},
		{
			Appointment: model.Appointment{ID: "allday", AllDay: true},
			Segments: []model.DisplaySegment{{
				Date:          model.Date{Year: 2024, Month: time.March, Day: 14},
				VisibleInWeek: true,
			}},
		},
		{
			Appointment: model.Appointment{ID: "outside"},
			Segments: []model.DisplaySegment{{
				Date:           model.Date{Year: 2024, Month: time.March, Day: 14},
				VisibleInWeek:  false,
				VisibleInMonth: true,
			}},
		},
	}

	days := BuildDays(appts, win, view.Week, fullDay)
	require.Len(t, days, 7)

	thursday := days[3]
	assert.Equal(t, model.Date{Year: 2024, Month: time.March, Day: 14}, thursday.Date)
	assert.Equal(t, []string{"allday"}, thursday.AllDay)
	require.Len(t, thursday.Items, 1)
	assert.Equal(t, "timed", thursday.Items[0].AppointmentID)

	for i, d := range days {
		if i == 3 {
			continue
		}
		assert.Empty(t, d.Items, "day %s", d.Date)
		assert.Empty(t, d.AllDay, "day %s", d.Date)
	}
}

func TestYearCountsAndCells(t *testing.T) {
	d1 := model.Date{Year: 2024, Month: time.January, Day: 1}
	d2 := model.Date{Year: 2024, Month: time.January, Day: 2}

	counts := YearCounts([]model.DayCount{
		{Date: d1, Count: 2},
		{Date: d1, Count: 3},
		{Date: d2, Count: 1},
	})
	assert.Equal(t, 5, counts[d1], "duplicate dates accumulate")
	assert.Equal(t, 1, counts[d2])

	win := model.TimeWindow{Anchor: d1, Start: d1, End: d1.AddDays(4)}
	cells := YearCells(win, counts)
	require.Len(t, cells, 5)
	assert.Equal(t, 5, cells[0].Count)
	assert.Equal(t, 1, cells[1].Count)
	assert.Zero(t, cells[2].Count)
}
