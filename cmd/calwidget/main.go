package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"calwidget/internal/config"
	"calwidget/internal/fetch"
	"calwidget/internal/holiday"
	appLog "calwidget/internal/log"
	"calwidget/internal/prefs"
	"calwidget/internal/source/icsfeed"
	"calwidget/internal/source/pgsource"
	"calwidget/internal/web"
	"calwidget/internal/widget"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	dbConn     string
	cacheDir   string
	prefsPath  string
}

func main() {
	appLog.Info("calwidget starting", "version", "0.1.0-dev")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"default_view", conf.DefaultView,
		"ics_count", len(conf.ICS),
		"refresh", conf.RefreshCron,
		"db", flags.dbConn != "",
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	src, closeSrc, err := buildSource(conf, flags)
	if err != nil {
		appLog.Error("failed to build data source", err)
		os.Exit(1)
	}
	defer closeSrc()

	deps := widget.Deps{Source: src}
	if conf.Holidays.Endpoint != "" {
		deps.Holidays = &holiday.HTTPProvider{Endpoint: conf.Holidays.Endpoint}
	}
	if flags.prefsPath != "" {
		store, err := prefs.NewFileStore(flags.prefsPath)
		if err != nil {
			appLog.Error("failed to open preference store", err, "path", flags.prefsPath)
			os.Exit(1)
		}
		deps.Prefs = store
	}

	cal, err := widget.New(conf, deps)
	if err != nil {
		appLog.Error("failed to create widget", err)
		os.Exit(1)
	}
	defer cal.Destroy()

	cal.Refresh(ctx)

	// Background refresh on the configured cron schedule.
	if conf.RefreshCron != "" {
		sched := cron.New()
		if _, err := sched.AddFunc(conf.RefreshCron, func() {
			appLog.Debug("scheduled refresh")
			cal.Refresh(ctx)
		}); err != nil {
			appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- web.StartServer(ctx, conf, cal)
	}()

	select {
	case err := <-errCh:
		appLog.Error("HTTP server exited", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	// Give the coordinator a moment to observe cancellation.
	time.Sleep(100 * time.Millisecond)
	appLog.Info("calwidget exiting")
}

// buildSource picks the data source: Postgres when a connection string is
// given, ICS subscriptions from the config otherwise.
func buildSource(conf *config.Config, flags flagConfig) (fetch.Source, func(), error) {
	if flags.dbConn != "" {
		loc, err := time.LoadLocation(conf.Timezone)
		if err != nil {
			loc = time.UTC
		}
		src, err := pgsource.Open(flags.dbConn, loc)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	}

	subs := make([]icsfeed.Subscription, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			if c.Name != "" {
				id = c.Name
			} else {
				id = c.URL
			}
		}
		subs = append(subs, icsfeed.Subscription{ID: id, URL: c.URL, Name: c.Name})
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return icsfeed.New(subs, flags.cacheDir, loc), func() {}, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/calwidget/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.dbConn, "db", "", "Postgres connection string (uses ICS sources if empty)")
	flag.StringVar(&cfg.cacheDir, "cache-dir", "/var/lib/calwidget/ics-cache", "ICS conditional-GET cache directory")
	flag.StringVar(&cfg.prefsPath, "prefs", "", "Path to the preference store file (in-memory if empty)")

	flag.Parse()

	return cfg
}
