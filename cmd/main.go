package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tidbyt.dev/departures"
	"tidbyt.dev/departures/config"
	"tidbyt.dev/departures/downloader"
	"tidbyt.dev/departures/logging"
	"tidbyt.dev/departures/servicetime"
)

var rootCmd = &cobra.Command{
	Use:          "departures",
	Short:        "Transit departure board",
	Long:         "Shows upcoming departures from GTFS and GTFS-realtime feeds",
	SilenceUsage: true,
}

var (
	configPath      string
	staticURL       string
	realtimeURL     string
	staticHeaders   []string
	realtimeHeaders []string
	sharedHeaders   []string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&staticURL, "static-url", "", "", "GTFS Static URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&realtimeURL, "realtime-url", "", "", "GTFS Realtime URL (overrides config)")
	rootCmd.PersistentFlags().StringSliceVarP(
		&staticHeaders,
		"static-header",
		"",
		[]string{},
		"GTFS Static HTTP header",
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&realtimeHeaders,
		"realtime-header",
		"",
		[]string{},
		"GTFS Realtime HTTP header",
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&sharedHeaders,
		"header",
		"",
		[]string{},
		"GTFS HTTP header (shared between static and realtime)",
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

func mergeHeaders(base map[string]string, flags ...[]string) (map[string]string, error) {
	merged := map[string]string{}
	for k, v := range base {
		merged[k] = v
	}
	for _, f := range flags {
		parsed, err := parseHeaders(f)
		if err != nil {
			return nil, err
		}
		for k, v := range parsed {
			merged[k] = v
		}
	}
	return merged, nil
}

// Loads config and applies command line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	if staticURL != "" {
		cfg.Static.URL = staticURL
	}
	if realtimeURL != "" {
		cfg.Realtime.URL = realtimeURL
	}

	cfg.Static.Headers, err = mergeHeaders(cfg.Static.Headers, sharedHeaders, staticHeaders)
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid static header: %w", err)
	}
	cfg.Realtime.Headers, err = mergeHeaders(cfg.Realtime.Headers, sharedHeaders, realtimeHeaders)
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid realtime header: %w", err)
	}

	return cfg, cfg.Validate()
}

func newDownloader(cfg config.Config) (downloader.Downloader, func(), error) {
	switch cfg.Cache.Driver {
	case "sqlite":
		d, err := downloader.NewSQLDownloader("sqlite3", cfg.Cache.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite cache: %w", err)
		}
		return d, func() { d.Close() }, nil
	case "postgres":
		d, err := downloader.NewSQLDownloader("postgres", cfg.Cache.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres cache: %w", err)
		}
		return d, func() { d.Close() }, nil
	}
	return downloader.NewMemoryDownloader(), func() {}, nil
}

type setup struct {
	cfg       config.Config
	logger    *slog.Logger
	clock     *servicetime.Clock
	loader    *departures.FeedLoader
	scheduler *departures.Scheduler
	close     func()
}

// Wires up everything needed to refresh boards.
func newSetup() (*setup, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg)
	slog.SetDefault(logger)

	clock, err := servicetime.New(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	d, closeDownloader, err := newDownloader(cfg)
	if err != nil {
		return nil, err
	}

	loader := departures.NewFeedLoader(cfg.Static.URL, cfg.Realtime.URL)
	loader.StaticHeaders = cfg.Static.Headers
	loader.StaticTimeout = cfg.Static.Timeout
	loader.StaticMaxSize = cfg.Static.MaxSize
	loader.StaticCacheTTL = cfg.Static.CacheTTL
	loader.RealtimeHeaders = cfg.Realtime.Headers
	loader.RealtimeTimeout = cfg.Realtime.Timeout
	loader.RealtimeMaxSize = cfg.Realtime.MaxSize
	loader.Retries = cfg.Retries
	loader.Downloader = d
	loader.Logger = logger

	scheduler := departures.NewScheduler(
		loader,
		departures.NewReconciler(clock, logger),
		cfg.StopConfigs(),
	)
	scheduler.Horizon = cfg.Horizon()
	scheduler.Period = cfg.RefreshPeriod()
	scheduler.Logger = logger

	return &setup{
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
		loader:    loader,
		scheduler: scheduler,
		close:     closeDownloader,
	}, nil
}
