// Package widget ties the pieces together into an embeddable calendar
// instance: navigation state, window resolution, fetch coordination,
// normalization and layout, exposed through a small handle the host drives.
package widget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"calwidget/internal/config"
	"calwidget/internal/daterange"
	"calwidget/internal/event"
	"calwidget/internal/fetch"
	"calwidget/internal/holiday"
	"calwidget/internal/layout"
	"calwidget/internal/log"
	"calwidget/internal/model"
	"calwidget/internal/normalize"
	"calwidget/internal/prefs"
	"calwidget/internal/view"
)

const prefKeyView = "view"

// Deps are the external collaborators of one instance.
type Deps struct {
	// Source supplies appointment data. Required.
	Source fetch.Source
	// InstanceID is a stable identifier for this embedding slot. Preferences
	// are scoped by it, so supplying one makes the remembered view survive a
	// restart. Empty means a random ID per construction.
	InstanceID string
	// Holidays, when set, is queried once per rebuild.
	Holidays holiday.Provider
	// Prefs remembers the last selected view when the config enables it.
	Prefs prefs.Store
	// Augment may add extra request parameters; it can never overwrite
	// the protected query keys.
	Augment func(fetch.Query) map[string]string
	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// NowIndicator is the current-time marker geometry, refreshed periodically.
type NowIndicator struct {
	Date  model.Date `json:"date"`
	TopPx float64    `json:"topPx"`
	Shown bool       `json:"shown"`
}

// Render is the output of one rebuild: everything the host renderer needs.
// Geometry references appointments by ID; the instance keeps the
// id-to-appointment index.
type Render struct {
	View       string            `json:"view"`
	SearchMode bool              `json:"searchMode"`
	Window     model.TimeWindow  `json:"window"`
	WeekNumber int               `json:"weekNumber"`
	Days       []layout.Day      `json:"days,omitempty"`
	YearCells  []layout.YearCell `json:"yearCells,omitempty"`
	SearchRows []string          `json:"searchRows,omitempty"`
	Page       *model.PageInfo   `json:"page,omitempty"`
	Holidays   []holiday.Holiday `json:"holidays,omitempty"`
	Now        NowIndicator      `json:"now"`
}

// Calendar is one widget instance.
type Calendar struct {
	id      string
	cfg     *config.Config
	loc     *time.Location
	deps    Deps
	emitter *event.Emitter
	coord   *fetch.Coordinator
	ticker  *cron.Cron

	mu          sync.Mutex
	state       *view.State
	byID        map[string]model.Normalized
	render      Render
	holidayBusy bool
	destroyed   bool
}

// New validates the configuration, restores the remembered view, registers
// the instance and starts the periodic now-indicator refresh. The caller
// must Destroy the instance to release the timer and registry entry.
func New(cfg *config.Config, deps Deps) (*Calendar, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("widget: data source is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Normalize()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("unknown timezone, falling back to UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Prefs == nil {
		deps.Prefs = prefs.NewMemoryStore()
	}

	id := deps.InstanceID
	if id == "" {
		id = uuid.NewString()
	}
	c := &Calendar{
		id:      id,
		cfg:     cfg,
		loc:     loc,
		deps:    deps,
		emitter: event.NewEmitter(),
		byID:    make(map[string]model.Normalized),
	}
	c.coord = fetch.New(c.id, deps.Source, c.emitter, deps.Augment)

	initial := c.initialView()
	c.state = view.New(initial, model.DateOf(deps.Now().In(loc)), cfg.SearchLimit)

	register(c)

	// The one long-lived timer in the system; Destroy stops it.
	c.ticker = cron.New()
	if _, err := c.ticker.AddFunc("@every "+cfg.NowRefreshEvery, c.refreshNowIndicator); err != nil {
		unregister(c.id)
		return nil, fmt.Errorf("widget: invalid now-refresh interval %q: %w", cfg.NowRefreshEvery, err)
	}
	c.ticker.Start()

	c.emitter.Emit(event.Init, event.Payload{InstanceID: c.id, View: initial.String()})
	return c, nil
}

// initialView picks the starting view: the remembered one when enabled and
// valid, otherwise the configured default. Unknown names fall back to Month
// with a warning, never an error.
func (c *Calendar) initialView() view.Kind {
	name := c.cfg.DefaultView
	if c.cfg.RememberView {
		if saved, ok := c.deps.Prefs.Get(c.id, prefKeyView); ok {
			name = saved
		}
	}
	k, ok := view.ParseKind(name)
	if !ok {
		log.Warn("unknown view name, defaulting to month", "view", name)
	}
	return k
}

// ID returns the registry identifier of this instance.
func (c *Calendar) ID() string { return c.id }

// Events exposes the emitter for host subscriptions.
func (c *Calendar) Events() *event.Emitter { return c.emitter }

// Busy reports whether a fetch is in flight.
func (c *Calendar) Busy() bool { return c.coord.Busy() }

// Snapshot returns a copy of the last rendered output.
func (c *Calendar) Snapshot() Render {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.render
}

// Appointment resolves a geometry ID back to its normalized appointment.
func (c *Calendar) Appointment(id string) (model.Normalized, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.byID[id]
	return a, ok
}

// State returns the current view kind, date and search flag.
func (c *Calendar) State() (view.Kind, model.Date, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.View, c.state.Date, c.state.SearchMode
}

// Refresh re-fetches and re-lays-out the current window.
func (c *Calendar) Refresh(ctx context.Context) {
	c.rebuild(ctx)
}

// SetView switches the active view by name. Unknown names default to Month
// with a warning. Setting the already-active view mutates nothing and emits
// nothing.
func (c *Calendar) SetView(ctx context.Context, name string) {
	k, ok := view.ParseKind(name)
	if !ok {
		log.Warn("unknown view name, defaulting to month", "view", name)
	}

	c.mu.Lock()
	changed := c.state.SetView(k)
	c.mu.Unlock()
	if !changed {
		return
	}

	if c.cfg.RememberView {
		if err := c.deps.Prefs.Set(c.id, prefKeyView, k.String()); err != nil {
			log.Error("persisting view preference failed", err, "instance", c.id)
		}
	}
	c.emitter.Emit(event.View, event.Payload{InstanceID: c.id, View: k.String()})
	c.rebuild(ctx)
}

// NavigateBack shifts one unit of the current view into the past. Ignored
// in search mode.
func (c *Calendar) NavigateBack(ctx context.Context) {
	c.navigate(ctx, event.NavigateBack)
}

// NavigateForward shifts one unit of the current view into the future.
func (c *Calendar) NavigateForward(ctx context.Context) {
	c.navigate(ctx, event.NavigateForward)
}

func (c *Calendar) navigate(ctx context.Context, name event.Name) {
	c.mu.Lock()
	var old, next model.Date
	var ok bool
	if name == event.NavigateBack {
		old, next, ok = c.state.NavigateBack()
	} else {
		old, next, ok = c.state.NavigateForward()
	}
	viewName := c.state.View.String()
	c.mu.Unlock()

	if !ok {
		log.Debug("navigation ignored while searching", "instance", c.id)
		return
	}
	c.emitter.Emit(name, event.Payload{InstanceID: c.id, View: viewName, OldDate: old, Date: next})
	c.rebuild(ctx)
}

// SetDate moves the reference date. Ignored in search mode.
func (c *Calendar) SetDate(ctx context.Context, d model.Date) {
	c.mu.Lock()
	changed := c.state.SetDate(d)
	c.mu.Unlock()
	if changed {
		c.rebuild(ctx)
	}
}

// SetToday jumps to the current date, optionally switching view first.
func (c *Calendar) SetToday(ctx context.Context, switchTo string) {
	if switchTo != "" {
		c.SetView(ctx, switchTo)
	}
	c.SetDate(ctx, model.DateOf(c.deps.Now().In(c.loc)))
}

// Search enters search mode with the given term. An empty term never
// becomes navigation state and issues no request, but it still runs the
// normal after-load path so the rendered appointment set clears.
func (c *Calendar) Search(ctx context.Context, term string) {
	if term == "" {
		c.mu.Lock()
		st := *c.state
		pagination := view.Pagination{Limit: c.cfg.SearchLimit}
		c.mu.Unlock()
		st.SearchMode = true
		st.SearchTerm = ""
		win := daterange.Resolve(st.View, st.Date, c.cfg.StartWeekOnSunday)
		c.coord.Run(ctx, fetch.Query{Limit: pagination.Limit, Search: ""}, true, func(res model.Result) {
			c.apply(st, pagination, win, res)
		})
		return
	}

	c.mu.Lock()
	c.state.EnterSearch(term)
	c.mu.Unlock()
	c.rebuild(ctx)
}

// NextPage advances the search result cursor.
func (c *Calendar) NextPage(ctx context.Context) {
	c.mu.Lock()
	ok := c.state.NextPage()
	c.mu.Unlock()
	if ok {
		c.rebuild(ctx)
	}
}

// SetPage jumps to a zero-based search result page.
func (c *Calendar) SetPage(ctx context.Context, page int) {
	c.mu.Lock()
	ok := c.state.SetPage(page)
	c.mu.Unlock()
	if ok {
		c.rebuild(ctx)
	}
}

// ExitSearch leaves search mode, resets pagination and rebuilds the
// calendar view.
func (c *Calendar) ExitSearch(ctx context.Context) {
	c.mu.Lock()
	ok := c.state.ExitSearch()
	c.mu.Unlock()
	if ok {
		c.rebuild(ctx)
	}
}

// Destroy stops the now-refresh timer, aborts any pending request and
// removes the instance from the registry. The handle must not be used
// afterwards.
func (c *Calendar) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.mu.Unlock()

	c.ticker.Stop()
	c.coord.Cancel()
	unregister(c.id)
	log.Debug("widget destroyed", "instance", c.id)
}

// rebuild resolves the window for the current state, fetches data and
// produces a fresh Render.
func (c *Calendar) rebuild(ctx context.Context) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	st := *c.state
	var pagination view.Pagination
	if c.state.Pagination != nil {
		pagination = *c.state.Pagination
	} else {
		pagination = view.Pagination{Limit: c.cfg.SearchLimit}
	}
	c.mu.Unlock()

	win := daterange.Resolve(st.View, st.Date, c.cfg.StartWeekOnSunday)

	var q fetch.Query
	emptySearch := false
	switch {
	case st.SearchMode:
		q = fetch.Query{Limit: pagination.Limit, Offset: pagination.Offset, Search: st.SearchTerm}
		emptySearch = st.SearchTerm == ""
	case st.View == view.Year:
		q = fetch.Query{Year: st.Date.Year, View: st.View.String()}
	default:
		q = fetch.Query{FromDate: win.Start.String(), ToDate: win.End.String(), View: st.View.String()}
	}

	c.coord.Run(ctx, q, emptySearch, func(res model.Result) {
		c.apply(st, pagination, win, res)
	})

	c.loadHolidays(ctx, win, st)
}

// apply is invoked by the coordinator exactly once per non-superseded
// fetch. Normalization and layout never let a panic escape to the caller.
func (c *Calendar) apply(st view.State, pagination view.Pagination, win model.TimeWindow, res model.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("rebuild failed, keeping previous render", fmt.Errorf("%v", r), "instance", c.id)
		}
	}()

	render := Render{
		View:       st.View.String(),
		SearchMode: st.SearchMode,
		Window:     win,
		WeekNumber: daterange.WeekNumber(st.Date),
	}
	index := make(map[string]model.Normalized)

	switch {
	case st.View == view.Year && !st.SearchMode:
		counts := layout.YearCounts(normalize.YearTotals(res.Rows))
		render.YearCells = layout.YearCells(win, counts)
	default:
		norm := normalize.Appointments(res.Rows, normalize.Params{
			View:              st.View,
			SearchMode:        st.SearchMode,
			Date:              st.Date,
			StartWeekOnSunday: c.cfg.StartWeekOnSunday,
			Location:          c.loc,
			Now:               c.deps.Now,
		})
		for _, n := range norm {
			index[n.ID] = n
		}
		if st.SearchMode {
			rows := make([]string, 0, len(norm))
			for _, n := range norm {
				rows = append(rows, n.ID)
			}
			render.SearchRows = rows
			render.Page = pageInfo(pagination, res.Total)
		} else {
			render.Days = layout.BuildDays(norm, win, st.View, layout.Config{
				HourStart: c.cfg.HourStart,
				HourEnd:   c.cfg.HourEnd,
				RowHeight: c.cfg.RowHeight,
			})
		}
	}

	render.Now = c.nowIndicator()

	c.mu.Lock()
	// Holidays survive a data-only refresh until the next holiday load.
	render.Holidays = c.render.Holidays
	c.render = render
	c.byID = index
	c.mu.Unlock()
}

func pageInfo(p view.Pagination, total int) *model.PageInfo {
	limit := p.Limit
	if limit <= 0 {
		limit = 1
	}
	pages := (total + limit - 1) / limit
	return &model.PageInfo{
		CurrentPage: p.Offset/limit + 1,
		TotalPages:  pages,
		Total:       total,
	}
}

// loadHolidays runs at most once per rebuild cycle; the guard keeps a
// re-entrant rebuild from doubling the lookup.
func (c *Calendar) loadHolidays(ctx context.Context, win model.TimeWindow, st view.State) {
	if c.deps.Holidays == nil || st.SearchMode {
		return
	}

	c.mu.Lock()
	if c.holidayBusy {
		c.mu.Unlock()
		log.Debug("holiday load already in progress", "instance", c.id)
		return
	}
	c.holidayBusy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.holidayBusy = false
		c.mu.Unlock()
	}()

	hs, err := c.deps.Holidays.Fetch(ctx, win, c.cfg.Holidays.Country, c.cfg.Holidays.Language, c.cfg.Holidays.Subdivision)
	if err != nil {
		log.Error("holiday lookup failed", err, "instance", c.id)
		return
	}

	c.mu.Lock()
	c.render.Holidays = hs
	c.mu.Unlock()
}

// nowIndicator computes the current-time marker for the visible grid.
func (c *Calendar) nowIndicator() NowIndicator {
	now := c.deps.Now().In(c.loc)
	today := model.DateOf(now)
	minutes := now.Hour()*60 + now.Minute()

	lo := c.cfg.HourStart * 60
	hi := c.cfg.HourEnd * 60
	if minutes < lo || minutes >= hi {
		return NowIndicator{Date: today}
	}
	return NowIndicator{
		Date:  today,
		TopPx: float64(minutes-lo) / 60 * c.cfg.RowHeight,
		Shown: true,
	}
}

// refreshNowIndicator is the periodic tick; it only moves the time marker,
// never the appointment set.
func (c *Calendar) refreshNowIndicator() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.render.Now = c.nowIndicator()
}

// ReportAdd emits the add event for a host-created appointment.
func (c *Calendar) ReportAdd(a model.Appointment) {
	c.emitter.Emit(event.Add, event.Payload{InstanceID: c.id, Data: a})
}

// ReportEdit emits the edit event for the appointment with the given ID.
func (c *Calendar) ReportEdit(id string) {
	c.emitWithAppointment(event.Edit, id)
}

// ReportDelete emits the delete event for the appointment with the given ID.
func (c *Calendar) ReportDelete(id string) {
	c.emitWithAppointment(event.Delete, id)
}

// ShowInfo emits show-info-window for the appointment with the given ID.
func (c *Calendar) ShowInfo(id string) {
	c.emitWithAppointment(event.ShowInfoWindow, id)
}

// HideInfo emits hide-info-window.
func (c *Calendar) HideInfo() {
	c.emitter.Emit(event.HideInfoWindow, event.Payload{InstanceID: c.id})
}

func (c *Calendar) emitWithAppointment(name event.Name, id string) {
	a, ok := c.Appointment(id)
	p := event.Payload{InstanceID: c.id}
	if ok {
		p.Appointment = &a
	}
	c.emitter.Emit(name, p)
}
