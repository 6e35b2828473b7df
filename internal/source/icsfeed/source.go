// Package icsfeed is a data source backed by one or more ICS subscription
// feeds. It fetches with HTTP conditional requests, parses with golang-ical
// and expands recurrences locally, so the widget only ever receives
// discrete appointment instances.
package icsfeed

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"calwidget/internal/fetch"
	"calwidget/internal/log"
	"calwidget/internal/model"
)

// Source aggregates ICS subscriptions behind the fetch.Source contract.
type Source struct {
	subs    []Subscription
	fetcher *fetcher
	loc     *time.Location
	now     func() time.Time
}

// New builds a Source. cacheDir holds the conditional-GET cache; empty
// means a temp directory. loc is the display timezone.
func New(subs []Subscription, cacheDir string, loc *time.Location) *Source {
	if loc == nil {
		loc = time.Local
	}
	return &Source{
		subs:    subs,
		fetcher: newFetcher(cacheDir),
		loc:     loc,
		now:     time.Now,
	}
}

// Fetch implements fetch.Source. Window queries expand into the requested
// range; year queries aggregate per-day totals; search queries filter the
// surrounding year of instances by substring and paginate locally.
func (s *Source) Fetch(ctx context.Context, q fetch.Query) (model.Result, error) {
	rangeStart, rangeEnd, err := s.queryRange(q)
	if err != nil {
		return model.Result{}, err
	}

	var appts []model.Appointment
	for _, sub := range s.subs {
		if ctx.Err() != nil {
			return model.Result{}, ctx.Err()
		}
		body, err := s.fetcher.fetchOne(ctx, sub)
		if err != nil {
			log.Error("ics feed unavailable, skipping", err, "id", sub.ID)
			continue
		}
		events, err := parseFeed(sub, body)
		if err != nil {
			log.Error("ics feed unparseable, skipping", err, "id", sub.ID)
			continue
		}
		appts = append(appts, expandEvents(events, rangeStart, rangeEnd, s.loc)...)
	}

	switch {
	case q.IsSearch():
		return searchPage(appts, q), nil
	case q.Year != 0:
		return yearTotals(appts), nil
	default:
		return model.Result{Rows: appts, Total: len(appts)}, nil
	}
}

// queryRange derives the expansion range from the query shape. Search has
// no window of its own, so it scans a year on either side of now.
func (s *Source) queryRange(q fetch.Query) (time.Time, time.Time, error) {
	switch {
	case q.IsSearch():
		now := s.now().In(s.loc)
		return now.AddDate(-1, 0, 0), now.AddDate(1, 0, 0), nil
	case q.Year != 0:
		start := time.Date(q.Year, time.January, 1, 0, 0, 0, 0, s.loc)
		return start, start.AddDate(1, 0, 0).Add(-time.Second), nil
	default:
		from, err := model.ParseDate(q.FromDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("ics source: %w", err)
		}
		to, err := model.ParseDate(q.ToDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("ics source: %w", err)
		}
		return from.Time(s.loc), to.EndOfDay(s.loc), nil
	}
}

// searchPage filters by case-insensitive substring over title, location and
// description, then slices out the requested page.
func searchPage(appts []model.Appointment, q fetch.Query) model.Result {
	term := strings.ToLower(q.Search)
	var matches []model.Appointment
	for _, a := range appts {
		if strings.Contains(strings.ToLower(a.Title), term) ||
			strings.Contains(strings.ToLower(a.Location), term) ||
			strings.Contains(strings.ToLower(a.Description), term) {
			matches = append(matches, a)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Start.Before(matches[j].Start)
	})

	total := len(matches)
	lo := q.Offset
	if lo > total {
		lo = total
	}
	hi := total
	if q.Limit > 0 && lo+q.Limit < total {
		hi = lo + q.Limit
	}
	return model.Result{Rows: matches[lo:hi], Total: total}
}

// yearTotals collapses instances into the per-day aggregate rows the year
// view consumes.
func yearTotals(appts []model.Appointment) model.Result {
	counts := make(map[model.Date]int)
	for _, a := range appts {
		first := model.DateOf(a.Start)
		last := model.DateOf(a.End)
		for d := first; !d.After(last); d = d.AddDays(1) {
			counts[d]++
		}
	}

	dates := make([]model.Date, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rows := make([]model.Appointment, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, model.Appointment{Date: d.String(), Total: strconv.Itoa(counts[d])})
	}
	return model.Result{Rows: rows, Total: len(rows)}
}
