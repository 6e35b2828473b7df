package icsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwidget/internal/fetch"
)

func testFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:standup",
		"SUMMARY:Standup",
		"LOCATION:Room 2",
		"DTSTART:20240314T090000Z",
		"DTEND:20240314T093000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:offsite",
		"SUMMARY:Offsite",
		"DTSTART:20240320T080000Z",
		"DTEND:20240321T170000Z",
		"END:VEVENT",
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSource(t *testing.T) *Source {
	srv := testFeedServer(t)
	s := New([]Subscription{{ID: "team", URL: srv.URL}}, t.TempDir(), time.UTC)
	s.now = func() time.Time {
		return time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestSourceWindowQuery(t *testing.T) {
	s := testSource(t)

	res, err := s.Fetch(context.Background(), fetch.Query{
		FromDate: "2024-03-11", ToDate: "2024-03-17", View: "week",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1, "only the standup falls inside the week")
	assert.Equal(t, "Standup", res.Rows[0].Title)

	res, err = s.Fetch(context.Background(), fetch.Query{
		FromDate: "2024-03-01", ToDate: "2024-03-31", View: "month",
	})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestSourceSearchQuery(t *testing.T) {
	s := testSource(t)

	res, err := s.Fetch(context.Background(), fetch.Query{Limit: 10, Search: "ROOM"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1, "search matches location case-insensitively")
	assert.Equal(t, "Standup", res.Rows[0].Title)
	assert.Equal(t, 1, res.Total)

	res, err = s.Fetch(context.Background(), fetch.Query{Limit: 10, Search: "no-such-thing"})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.Total)
}

func TestSourceSearchPaging(t *testing.T) {
	s := testSource(t)

	page1, err := s.Fetch(context.Background(), fetch.Query{Limit: 1, Offset: 0, Search: "s"})
	require.NoError(t, err)
	require.Len(t, page1.Rows, 1)
	assert.Equal(t, 2, page1.Total)

	page2, err := s.Fetch(context.Background(), fetch.Query{Limit: 1, Offset: 1, Search: "s"})
	require.NoError(t, err)
	require.Len(t, page2.Rows, 1)
	assert.NotEqual(t, page1.Rows[0].ID, page2.Rows[0].ID)

	beyond, err := s.Fetch(context.Background(), fetch.Query{Limit: 1, Offset: 10, Search: "s"})
	require.NoError(t, err)
	assert.Empty(t, beyond.Rows)
}

func TestSourceYearQuery(t *testing.T) {
	s := testSource(t)

	res, err := s.Fetch(context.Background(), fetch.Query{Year: 2024, View: "year"})
	require.NoError(t, err)

	totals := map[string]string{}
	for _, row := range res.Rows {
		totals[row.Date] = row.Total
	}
	assert.Equal(t, "1", totals["2024-03-14"])
	// The offsite spans two days and counts on both.
	assert.Equal(t, "1", totals["2024-03-20"])
	assert.Equal(t, "1", totals["2024-03-21"])
}

func TestSourceSkipsUnreachableFeeds(t *testing.T) {
	srv := testFeedServer(t)
	s := New([]Subscription{
		{ID: "dead", URL: "http://127.0.0.1:1/feed.ics"},
		{ID: "team", URL: srv.URL},
	}, t.TempDir(), time.UTC)

	res, err := s.Fetch(context.Background(), fetch.Query{
		FromDate: "2024-03-01", ToDate: "2024-03-31", View: "month",
	})
	require.NoError(t, err, "one dead feed must not fail the fetch")
	assert.Len(t, res.Rows, 2)
}
