// Package gcal is a data source backed by the Google Calendar API. Window
// queries map to Events.List time bounds; search queries use the API's
// free-text filter with local offset bookkeeping.
package gcal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"calwidget/internal/fetch"
	"calwidget/internal/model"
)

// Source implements fetch.Source over one Google calendar.
type Source struct {
	service    *calendar.Service
	calendarID string
	loc        *time.Location
}

// New creates a Source. The optional endpoint override points the client at
// a mock server in tests.
func New(ctx context.Context, httpClient *http.Client, calendarID string, loc *time.Location, endpoint ...string) (*Source, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if len(endpoint) > 0 && endpoint[0] != "" {
		opts = append(opts, option.WithEndpoint(endpoint[0]))
	}

	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}

	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Source{service: srv, calendarID: calendarID, loc: loc}, nil
}

// NewOAuthClient wraps a static token into an HTTP client suitable for New.
func NewOAuthClient(ctx context.Context, accessToken string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return oauth2.NewClient(ctx, src)
}

// Fetch implements fetch.Source.
func (s *Source) Fetch(ctx context.Context, q fetch.Query) (model.Result, error) {
	call := s.service.Events.List(s.calendarID).
		Context(ctx).
		SingleEvents(true).
		OrderBy("startTime")

	switch {
	case q.IsSearch():
		call = call.Q(q.Search)
		if q.Limit > 0 {
			// The API has no offset; over-fetch one page worth and slice.
			call = call.MaxResults(int64(q.Offset + q.Limit))
		}
	case q.Year != 0:
		from := time.Date(q.Year, time.January, 1, 0, 0, 0, 0, s.loc)
		call = call.TimeMin(from.Format(time.RFC3339)).TimeMax(from.AddDate(1, 0, 0).Format(time.RFC3339))
	default:
		from, err := model.ParseDate(q.FromDate)
		if err != nil {
			return model.Result{}, fmt.Errorf("gcal source: %w", err)
		}
		to, err := model.ParseDate(q.ToDate)
		if err != nil {
			return model.Result{}, fmt.Errorf("gcal source: %w", err)
		}
		call = call.TimeMin(from.Time(s.loc).Format(time.RFC3339)).
			TimeMax(to.AddDays(1).Time(s.loc).Format(time.RFC3339))
	}

	var rows []model.Appointment
	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Do()
		if err != nil {
			return model.Result{}, fmt.Errorf("unable to retrieve events: %w", err)
		}
		for _, item := range events.Items {
			a, ok := mapEvent(item, s.loc)
			if ok {
				rows = append(rows, a)
			}
		}
		pageToken = events.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if q.IsSearch() {
		total := len(rows)
		lo := q.Offset
		if lo > total {
			lo = total
		}
		hi := total
		if q.Limit > 0 && lo+q.Limit < total {
			hi = lo + q.Limit
		}
		return model.Result{Rows: rows[lo:hi], Total: total}, nil
	}
	return model.Result{Rows: rows, Total: len(rows)}, nil
}

// mapEvent converts an API event. Date-only bounds mark all-day
// appointments; the API's exclusive all-day end pulls back one day.
func mapEvent(ev *calendar.Event, loc *time.Location) (model.Appointment, bool) {
	if ev == nil || ev.Start == nil || ev.End == nil {
		return model.Appointment{}, false
	}

	a := model.Appointment{
		ID:          ev.Id,
		Title:       ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		Link:        ev.HtmlLink,
	}

	if ev.Start.Date != "" {
		a.AllDay = true
		start, err := model.ParseDate(ev.Start.Date)
		if err != nil {
			return model.Appointment{}, false
		}
		end, err := model.ParseDate(ev.End.Date)
		if err != nil {
			return model.Appointment{}, false
		}
		a.Start = start.Time(loc)
		a.End = end.AddDays(-1).EndOfDay(loc)
		return a, true
	}

	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return model.Appointment{}, false
	}
	end, err := time.Parse(time.RFC3339, ev.End.DateTime)
	if err != nil {
		return model.Appointment{}, false
	}
	a.Start = start.In(loc)
	a.End = end.In(loc)
	return a, true
}
