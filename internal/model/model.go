package model

import "time"

// Appointment is a raw record as supplied by a data source. The widget never
// mutates a raw record; normalization copies it into a Normalized value.
//
// For the year view the backend returns pre-aggregated rows instead of full
// appointments; those carry only Date and Total.
type Appointment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Link        string    `json:"link,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`

	// Year-view aggregate fields. Total is kept as a string because
	// backends are inconsistent about the wire type; normalization
	// coerces it to an integer and drops rows where it is not positive.
	Date  string `json:"date,omitempty"`
	Total string `json:"total,omitempty"`
}

// Result is what a data source hands back: either a plain list of rows or a
// page of rows plus the total number of matches (search mode).
type Result struct {
	Rows  []Appointment
	Total int
}

// Duration is the broken-down length of an appointment. All-day spans count
// whole calendar days inclusive of both endpoints and leave the smaller
// units at zero.
type Duration struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// DisplaySegment is one calendar day touched by an appointment. An
// appointment spanning N days produces N segments. The visibility flags mark
// whether the segment's day falls inside the currently rendered (padded)
// week/month grid; segments outside stay in the slice but are skipped by
// layout and rendering.
type DisplaySegment struct {
	Date           Date         `json:"date"`
	Weekday        time.Weekday `json:"weekday"`
	TimeStart      time.Time    `json:"timeStart"`
	TimeEnd        time.Time    `json:"timeEnd"`
	VisibleInWeek  bool         `json:"visibleInWeek"`
	VisibleInMonth bool         `json:"visibleInMonth"`
}

// Normalized is an appointment after the normalization step, owned by the
// widget until the next fetch cycle replaces it. It is never mutated after
// creation within one cycle.
type Normalized struct {
	Appointment

	Duration Duration         `json:"duration"`
	Segments []DisplaySegment `json:"displayDates"`
	IsToday  bool             `json:"isToday"`
	IsNow    bool             `json:"isNow"`
}

// DayCount is one per-day aggregate for the year view.
type DayCount struct {
	Date  Date `json:"date"`
	Count int  `json:"count"`
}

// PageInfo describes the current search result page.
type PageInfo struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	Total       int `json:"total"`
}
