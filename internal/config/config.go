package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Known view names. Search is an overlay on top of a calendar view, not a
// view of its own, so it never appears in Views.
const (
	ViewDay   = "day"
	ViewWeek  = "week"
	ViewMonth = "month"
	ViewYear  = "year"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown by the host application.
	Name string `yaml:"name" json:"name"`
}

// HolidayConfig configures the external holiday provider lookup.
type HolidayConfig struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	Country     string `yaml:"country" json:"country"`
	Language    string `yaml:"language" json:"language"`
	Subdivision string `yaml:"subdivision,omitempty" json:"subdivision,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the full set of recognized widget options. Every option has a
// default and is validated once by Normalize at construction; there is no
// deep-merge of loosely typed maps anywhere downstream.
type Config struct {
	// Listen is the HTTP listen address for the demo host application.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for time-of-day interpretation.
	Timezone string `yaml:"timezone" json:"timezone"`

	// StartWeekOnSunday selects the first weekday of week/month grids.
	// The default is a Monday start.
	StartWeekOnSunday bool `yaml:"start_week_on_sunday" json:"start_week_on_sunday"`

	// DefaultView is the view shown on initialization.
	DefaultView string `yaml:"default_view" json:"default_view"`

	// Views is the list of selectable views, deduplicated in order.
	Views []string `yaml:"views" json:"views"`

	// HourStart / HourEnd bound the visible hour range of time-grid views.
	// Intervals entirely outside the range are hidden, not an error.
	HourStart int `yaml:"hour_start" json:"hour_start"`
	HourEnd   int `yaml:"hour_end" json:"hour_end"`

	// RowHeight is the pixel height of one hour row in time-grid views.
	RowHeight float64 `yaml:"row_height" json:"row_height"`

	// TimeRounding is the minute granularity used when the host proposes
	// slot times, clamped to a sane divisor of an hour.
	TimeRounding int `yaml:"time_rounding" json:"time_rounding"`

	// RememberView persists the last selected view across restarts via the
	// preference store.
	RememberView bool `yaml:"remember_view" json:"remember_view"`

	// SearchLimit is the page size for search mode.
	SearchLimit int `yaml:"search_limit" json:"search_limit"`

	// RefreshCron schedules background refreshes of the widget data
	// (e.g. "*/15 * * * *"). Empty disables background refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// NowRefreshEvery is the interval of the current-time indicator
	// refresh, in cron "@every" syntax (e.g. "1m").
	NowRefreshEvery string `yaml:"now_refresh_every" json:"now_refresh_every"`

	// Holidays, if the endpoint is set, enables holiday lookups.
	Holidays HolidayConfig `yaml:"holidays" json:"holidays"`

	// ICS is the list of subscribed ICS sources for the built-in source.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all web
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1:8080",
		Timezone:          "UTC",
		StartWeekOnSunday: false,
		DefaultView:       ViewMonth,
		Views:             []string{ViewDay, ViewWeek, ViewMonth, ViewYear},
		HourStart:         0,
		HourEnd:           24,
		RowHeight:         40,
		TimeRounding:      15,
		RememberView:      false,
		SearchLimit:       10,
		RefreshCron:       "",
		NowRefreshEvery:   "1m",
		ICS:               []ICSConfig{},
	}
}

var validRounding = []int{1, 5, 10, 15, 20, 30, 60}

// Normalize fills in missing/zero values and clamps out-of-range ones so
// that partially filled configs still behave. It is called on every load
// and save path, so downstream code never re-validates.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}

	// Views: drop unknowns, dedupe preserving order.
	seen := map[string]bool{}
	views := make([]string, 0, len(c.Views))
	for _, v := range c.Views {
		switch v {
		case ViewDay, ViewWeek, ViewMonth, ViewYear:
			if !seen[v] {
				seen[v] = true
				views = append(views, v)
			}
		}
	}
	if len(views) == 0 {
		views = []string{ViewDay, ViewWeek, ViewMonth, ViewYear}
	}
	c.Views = views

	switch c.DefaultView {
	case ViewDay, ViewWeek, ViewMonth, ViewYear:
	default:
		c.DefaultView = ViewMonth
	}

	// Hour range: bounds-checked, and inverted ranges reset to full day.
	if c.HourStart < 0 || c.HourStart > 23 {
		c.HourStart = 0
	}
	if c.HourEnd < 1 || c.HourEnd > 24 {
		c.HourEnd = 24
	}
	if c.HourEnd <= c.HourStart {
		c.HourStart = 0
		c.HourEnd = 24
	}

	if c.RowHeight <= 0 {
		c.RowHeight = 40
	}

	// TimeRounding snaps to the nearest recognized granularity.
	rounding := c.TimeRounding
	if rounding <= 0 {
		rounding = 15
	}
	best := validRounding[0]
	for _, r := range validRounding {
		if abs(r-rounding) < abs(best-rounding) {
			best = r
		}
	}
	c.TimeRounding = best

	if c.SearchLimit <= 0 {
		c.SearchLimit = 10
	}
	if c.NowRefreshEvery == "" {
		c.NowRefreshEvery = "1m"
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, write a default config with 0600 perms
//     (creating the parent directory) and return the defaults.
//   - If the file exists, read YAML, unmarshal and normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file + rename)
// with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calwidget-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
