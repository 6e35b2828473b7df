package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwidget/internal/config"
	"calwidget/internal/fetch"
	"calwidget/internal/model"
	"calwidget/internal/widget"
)

func testCalendar(t *testing.T, cfg *config.Config) *widget.Calendar {
	t.Helper()
	src := fetch.Func(func(ctx context.Context, q fetch.Query) (model.Result, error) {
		return model.Result{Rows: []model.Appointment{{
			ID:    "a",
			Title: "Standup",
			Start: time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC),
		}}, Total: 1}, nil
	})
	cal, err := widget.New(cfg, widget.Deps{
		Source: src,
		Now:    func() time.Time { return time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	t.Cleanup(cal.Destroy)
	cal.Refresh(context.Background())
	return cal
}

func TestHealth(t *testing.T) {
	cfg := config.DefaultConfig()
	s := NewServer(cfg, testCalendar(t, cfg))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestGetView(t *testing.T) {
	cfg := config.DefaultConfig()
	s := NewServer(cfg, testCalendar(t, cfg))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/view", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var r widget.Render
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "month", r.View)
	assert.NotEmpty(t, r.Days)
}

func TestPostViewSwitches(t *testing.T) {
	cfg := config.DefaultConfig()
	s := NewServer(cfg, testCalendar(t, cfg))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/view?view=week", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var r widget.Render
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "week", r.View)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/view", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNavigate(t *testing.T) {
	cfg := config.DefaultConfig()
	cal := testCalendar(t, cfg)
	s := NewServer(cfg, cal)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/navigate?direction=forward", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	_, d, _ := cal.State()
	assert.Equal(t, model.Date{Year: 2024, Month: time.April, Day: 14}, d)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/navigate?direction=sideways", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetDate(t *testing.T) {
	cfg := config.DefaultConfig()
	cal := testCalendar(t, cfg)
	s := NewServer(cfg, cal)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/date?date=2024-07-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	_, d, _ := cal.State()
	assert.Equal(t, model.Date{Year: 2024, Month: time.July, Day: 1}, d)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/date?date=01.07.2024", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpoints(t *testing.T) {
	cfg := config.DefaultConfig()
	cal := testCalendar(t, cfg)
	s := NewServer(cfg, cal)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search?term=standup", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var r widget.Render
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.True(t, r.SearchMode)
	assert.Equal(t, []string{"a"}, r.SearchRows)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/search", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	_, _, searching := cal.State()
	assert.False(t, searching)
}

func TestGetAppointment(t *testing.T) {
	cfg := config.DefaultConfig()
	s := NewServer(cfg, testCalendar(t, cfg))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/appointments/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var a model.Normalized
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "Standup", a.Title)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/appointments/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	s := NewServer(cfg, testCalendar(t, cfg))

	// /health stays open.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/view", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.SetBasicAuth("admin", "wrong")
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.SetBasicAuth("admin", "s3cret")
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
