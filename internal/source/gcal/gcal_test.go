package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"calwidget/internal/fetch"
)

func fakeCalendarServer(t *testing.T, events *calendar.Events, record *map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if record != nil {
			q := map[string]string{}
			for k := range r.URL.Query() {
				q[k] = r.URL.Query().Get(k)
			}
			*record = q
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(events))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchWindowQuery(t *testing.T) {
	events := &calendar.Events{Items: []*calendar.Event{{
		Id:      "e1",
		Summary: "Standup",
		Start:   &calendar.EventDateTime{DateTime: "2024-03-14T09:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2024-03-14T09:30:00Z"},
	}}}

	var gotQuery map[string]string
	srv := fakeCalendarServer(t, events, &gotQuery)

	src, err := New(context.Background(), srv.Client(), "primary", time.UTC, srv.URL)
	require.NoError(t, err)

	res, err := src.Fetch(context.Background(), fetch.Query{
		FromDate: "2024-03-11", ToDate: "2024-03-17", View: "week",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Standup", res.Rows[0].Title)
	assert.Equal(t, time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC), res.Rows[0].Start)

	assert.Equal(t, "2024-03-11T00:00:00Z", gotQuery["timeMin"])
	assert.Equal(t, "2024-03-18T00:00:00Z", gotQuery["timeMax"], "upper bound is exclusive of the day after")
	assert.Equal(t, "startTime", gotQuery["orderBy"])
}

func TestFetchSearchQuery(t *testing.T) {
	events := &calendar.Events{Items: []*calendar.Event{
		{
			Id:      "e1",
			Summary: "Standup A",
			Start:   &calendar.EventDateTime{DateTime: "2024-03-14T09:00:00Z"},
			End:     &calendar.EventDateTime{DateTime: "2024-03-14T09:30:00Z"},
		},
		{
			Id:      "e2",
			Summary: "Standup B",
			Start:   &calendar.EventDateTime{DateTime: "2024-03-15T09:00:00Z"},
			End:     &calendar.EventDateTime{DateTime: "2024-03-15T09:30:00Z"},
		},
	}}

	var gotQuery map[string]string
	srv := fakeCalendarServer(t, events, &gotQuery)

	src, err := New(context.Background(), srv.Client(), "primary", time.UTC, srv.URL)
	require.NoError(t, err)

	res, err := src.Fetch(context.Background(), fetch.Query{Limit: 1, Offset: 1, Search: "standup"})
	require.NoError(t, err)
	assert.Equal(t, "standup", gotQuery["q"])

	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "e2", res.Rows[0].ID, "offset slices past the first match")
}

func TestMapEventAllDay(t *testing.T) {
	a, ok := mapEvent(&calendar.Event{
		Id:      "e1",
		Summary: "Offsite",
		Start:   &calendar.EventDateTime{Date: "2024-03-20"},
		End:     &calendar.EventDateTime{Date: "2024-03-22"}, // exclusive
	}, time.UTC)

	require.True(t, ok)
	assert.True(t, a.AllDay)
	assert.Equal(t, time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC), a.Start)
	assert.Equal(t, time.Date(2024, time.March, 21, 23, 59, 59, 0, time.UTC), a.End)
}

func TestMapEventRejectsPartialRecords(t *testing.T) {
	_, ok := mapEvent(nil, time.UTC)
	assert.False(t, ok)

	_, ok = mapEvent(&calendar.Event{Id: "e1"}, time.UTC)
	assert.False(t, ok)

	_, ok = mapEvent(&calendar.Event{
		Id:    "e1",
		Start: &calendar.EventDateTime{DateTime: "not-a-time"},
		End:   &calendar.EventDateTime{DateTime: "2024-03-14T09:30:00Z"},
	}, time.UTC)
	assert.False(t, ok)
}
