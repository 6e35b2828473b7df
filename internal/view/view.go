// Package view holds the per-instance navigation state machine: the active
// calendar view, the reference date, the search overlay and its pagination
// cursor. It is pure state; persistence, events and data fetching are wired
// on top by the widget.
package view

import (
	"calwidget/internal/model"
)

// Kind is a calendar view. Search is not a Kind: it is an overlay flag on
// State, mutually exclusive with date navigation.
type Kind int

const (
	Day Kind = iota
	Week
	Month
	Year
)

var kindNames = map[Kind]string{
	Day:   "day",
	Week:  "week",
	Month: "month",
	Year:  "year",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "month"
}

// ParseKind maps a view name to its Kind. Unknown names report ok=false and
// fall back to Month; the caller decides whether that deserves a warning.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "day":
		return Day, true
	case "week":
		return Week, true
	case "month":
		return Month, true
	case "year":
		return Year, true
	}
	return Month, false
}

// Pagination is the search-mode cursor.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// State is the navigation state of one widget instance.
type State struct {
	View       Kind
	LastView   Kind
	Date       model.Date
	SearchMode bool
	SearchTerm string
	Pagination *Pagination

	searchLimit int
}

// New returns a State anchored at date showing the given view.
func New(v Kind, date model.Date, searchLimit int) *State {
	if searchLimit <= 0 {
		searchLimit = 10
	}
	return &State{
		View:        v,
		LastView:    v,
		Date:        date,
		searchLimit: searchLimit,
	}
}

// SetView switches the active view. It is a no-op when v is already active,
// so callers can gate rebuilds and persistence on the return value.
func (s *State) SetView(v Kind) bool {
	if v == s.View {
		return false
	}
	s.LastView = s.View
	s.View = v
	return true
}

// SetDate moves the reference date. Ignored while the search overlay is
// active, to keep navigation and search from fighting over state.
func (s *State) SetDate(d model.Date) bool {
	if s.SearchMode {
		return false
	}
	s.Date = d
	return true
}

// NavigateBack shifts the reference date one unit of the current view into
// the past. Returns the old and new date, and ok=false when navigation is
// suppressed by search mode.
func (s *State) NavigateBack() (oldDate, newDate model.Date, ok bool) {
	return s.navigate(-1)
}

// NavigateForward shifts the reference date one unit of the current view
// into the future.
func (s *State) NavigateForward() (oldDate, newDate model.Date, ok bool) {
	return s.navigate(1)
}

func (s *State) navigate(dir int) (model.Date, model.Date, bool) {
	if s.SearchMode {
		return s.Date, s.Date, false
	}
	old := s.Date
	switch s.View {
	case Day:
		s.Date = s.Date.AddDays(dir)
	case Week:
		s.Date = s.Date.AddDays(7 * dir)
	case Month:
		s.Date = addMonth(s.Date, dir)
	case Year:
		d := model.Date{Year: s.Date.Year + dir, Month: s.Date.Month, Day: s.Date.Day}
		if d.Day > daysInMonth(d.Year, int(d.Month)) {
			d.Day = 1
		}
		s.Date = d
	}
	return old, s.Date, true
}

// addMonth shifts d by one month. When the day-of-month does not exist in
// the target month (e.g. Jan 31 -> Feb), the date clamps to day 1 rather
// than spilling into the following month.
func addMonth(d model.Date, dir int) model.Date {
	y, m := d.Year, int(d.Month)+dir
	if m < 1 {
		m = 12
		y--
	} else if m > 12 {
		m = 1
		y++
	}
	day := d.Day
	if day > daysInMonth(y, m) {
		day = 1
	}
	return model.Date{Year: y, Month: timeMonth(m), Day: day}
}

// EnterSearch activates the search overlay with the given term. An empty
// term is a no-op: it must not trigger a fetch. Starting a new term resets
// the pagination cursor.
func (s *State) EnterSearch(term string) bool {
	if term == "" {
		return false
	}
	if !s.SearchMode || s.SearchTerm != term {
		s.Pagination = &Pagination{Limit: s.searchLimit, Offset: 0}
	}
	s.SearchMode = true
	s.SearchTerm = term
	return true
}

// NextPage advances the search cursor by one page. No-op outside search.
func (s *State) NextPage() bool {
	if !s.SearchMode || s.Pagination == nil {
		return false
	}
	s.Pagination.Offset += s.Pagination.Limit
	return true
}

// SetPage positions the search cursor at a zero-based page index.
func (s *State) SetPage(page int) bool {
	if !s.SearchMode || s.Pagination == nil || page < 0 {
		return false
	}
	s.Pagination.Offset = page * s.Pagination.Limit
	return true
}

// ExitSearch leaves the overlay and resets the cursor.
func (s *State) ExitSearch() bool {
	if !s.SearchMode {
		return false
	}
	s.SearchMode = false
	s.SearchTerm = ""
	s.Pagination = &Pagination{Limit: s.searchLimit, Offset: 0}
	return true
}
