// Package config loads the service configuration from YAML, with a
// handful of environment overrides for deployment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/servicetime"
)

const (
	DefaultStaticURL   = "https://www.regionofwaterloo.ca/opendatadownloads/GRT_GTFS.zip"
	DefaultRealtimeURL = "http://192.237.29.212:8080/gtfsrealtime/TripUpdates"
)

type StaticConfig struct {
	URL      string            `yaml:"url" validate:"required,url"`
	Headers  map[string]string `yaml:"headers"`
	Timeout  time.Duration     `yaml:"timeout" validate:"gte=0"`
	MaxSize  int               `yaml:"max_size" validate:"gte=0"`
	CacheTTL time.Duration     `yaml:"cache_ttl" validate:"gte=0"`
}

// Leaving URL empty disables realtime predictions.
type RealtimeConfig struct {
	URL     string            `yaml:"url" validate:"omitempty,url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout" validate:"gte=0"`
	MaxSize int               `yaml:"max_size" validate:"gte=0"`
}

type CacheConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required_unless=Driver memory"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type StopEntry struct {
	ID        string `yaml:"id" validate:"required"`
	Direction string `yaml:"direction"`
}

// Stops at the same location. With two stops, each is the other's
// sibling.
type StopGroup struct {
	Stops []StopEntry `yaml:"stops" validate:"required,min=1,max=2,dive"`
}

type Config struct {
	AppEnv   string `yaml:"app_env" validate:"oneof=dev prod"`
	LogLevel string `yaml:"log_level"`
	Timezone string `yaml:"timezone" validate:"required"`

	Static   StaticConfig   `yaml:"static"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Retries  int            `yaml:"retries" validate:"gte=0,lte=10"`
	Cache    CacheConfig    `yaml:"cache"`

	HorizonMinutes  int `yaml:"horizon_minutes" validate:"gt=0"`
	CriticalMinutes int `yaml:"critical_minutes" validate:"gte=0"`
	RefreshMinutes  int `yaml:"refresh_minutes" validate:"gt=0"`

	HTTP       HTTPConfig  `yaml:"http"`
	StopGroups []StopGroup `yaml:"stop_groups" validate:"required,min=1,dive"`
}

// Configuration for the Grand River Transit displays at King and
// Victoria.
func Default() Config {
	return Config{
		AppEnv:   "dev",
		LogLevel: "info",
		Timezone: servicetime.DefaultTimezone,
		Static: StaticConfig{
			URL:      DefaultStaticURL,
			Timeout:  60 * time.Second,
			MaxSize:  800 << 20,
			CacheTTL: time.Hour,
		},
		Realtime: RealtimeConfig{
			URL:     DefaultRealtimeURL,
			Timeout: 30 * time.Second,
			MaxSize: 1 << 20,
		},
		Retries: 2,
		Cache: CacheConfig{
			Driver: "memory",
		},
		HorizonMinutes:  30,
		CriticalMinutes: 5,
		RefreshMinutes:  1,
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		StopGroups: []StopGroup{
			{Stops: []StopEntry{{ID: "2523", Direction: "Eastbound"}, {ID: "2513", Direction: "Westbound"}}},
			{Stops: []StopEntry{{ID: "2524", Direction: "Eastbound"}, {ID: "2512", Direction: "Westbound"}}},
			{Stops: []StopEntry{{ID: "1171", Direction: "Northbound"}, {ID: "3623", Direction: "Southbound"}}},
			{Stops: []StopEntry{{ID: "3620", Direction: "Eastbound"}, {ID: "3619", Direction: "Westbound"}}},
		},
	}
}

// Loads configuration from a YAML file on top of the defaults, then
// applies APP_ENV, LOG_LEVEL and HTTP_ADDR from the environment. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		err = yaml.Unmarshal(data, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		cfg.AppEnv = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}

	err := cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	_, err = parseLogLevel(c.LogLevel)
	if err != nil {
		return err
	}

	_, err = time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	seen := map[string]bool{}
	for _, group := range c.StopGroups {
		for _, stop := range group.Stops {
			if seen[stop.ID] {
				return fmt.Errorf("stop %q configured more than once", stop.ID)
			}
			seen[stop.ID] = true
		}
	}

	return nil
}

func (c Config) Level() slog.Level {
	level, _ := parseLogLevel(c.LogLevel)
	return level
}

func (c Config) Horizon() time.Duration {
	return time.Duration(c.HorizonMinutes) * time.Minute
}

func (c Config) RefreshPeriod() time.Duration {
	return time.Duration(c.RefreshMinutes) * time.Minute
}

// Monitored stops in configuration order, with siblings resolved.
func (c Config) StopConfigs() []model.StopConfig {
	stops := []model.StopConfig{}
	for _, group := range c.StopGroups {
		for i, stop := range group.Stops {
			sc := model.StopConfig{
				ID:        stop.ID,
				Direction: stop.Direction,
			}
			if len(group.Stops) == 2 {
				sc.SiblingID = group.Stops[1-i].ID
			}
			stops = append(stops, sc)
		}
	}
	return stops
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
