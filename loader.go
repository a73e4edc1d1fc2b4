package departures

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"sync"
	"time"

	"tidbyt.dev/departures/downloader"
	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/parse"
	"tidbyt.dev/departures/snapshot"
)

const (
	DefaultStaticCacheTTL  = 1 * time.Hour
	DefaultStaticTimeout   = 60 * time.Second
	DefaultStaticMaxSize   = 800 << 20 // 800 MB
	DefaultRealtimeTimeout = 30 * time.Second
	DefaultRealtimeMaxSize = 1 << 20 // 1 MB
	DefaultRetries         = 2
)

// Fetches and parses the static and realtime feeds.
type FeedLoader struct {
	StaticURL      string
	StaticHeaders  map[string]string
	StaticTimeout  time.Duration
	StaticMaxSize  int
	StaticCacheTTL time.Duration

	RealtimeURL     string
	RealtimeHeaders map[string]string
	RealtimeTimeout time.Duration
	RealtimeMaxSize int

	Retries    int
	Downloader downloader.Downloader
	Logger     *slog.Logger

	// Most recently parsed static archive, reused while the
	// downloaded bytes are unchanged.
	mutex      sync.Mutex
	staticHash [sha256.Size]byte
	static     *snapshot.Static
}

// Creates a loader with default limits and an in memory cache. An
// empty realtimeURL makes boards purely schedule based.
func NewFeedLoader(staticURL string, realtimeURL string) *FeedLoader {
	return &FeedLoader{
		StaticURL:       staticURL,
		StaticTimeout:   DefaultStaticTimeout,
		StaticMaxSize:   DefaultStaticMaxSize,
		StaticCacheTTL:  DefaultStaticCacheTTL,
		RealtimeURL:     realtimeURL,
		RealtimeTimeout: DefaultRealtimeTimeout,
		RealtimeMaxSize: DefaultRealtimeMaxSize,
		Retries:         DefaultRetries,
		Downloader:      downloader.NewMemoryDownloader(),
		Logger:          slog.Default(),
	}
}

func (l *FeedLoader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Downloads and parses the static archive. Failures are reported as
// *model.FeedFetchError or *model.FeedParseError.
func (l *FeedLoader) LoadStatic(ctx context.Context) (*snapshot.Static, error) {
	body, err := l.Downloader.Get(
		ctx,
		l.StaticURL,
		l.StaticHeaders,
		downloader.GetOptions{
			Cache:    l.StaticCacheTTL > 0,
			CacheTTL: l.StaticCacheTTL,
			Timeout:  l.StaticTimeout,
			MaxSize:  l.StaticMaxSize,
			Retries:  l.Retries,
		},
	)
	if err != nil {
		return nil, &model.FeedFetchError{URL: l.StaticURL, Err: err}
	}

	hash := sha256.Sum256(body)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.static != nil && hash == l.staticHash {
		return l.static, nil
	}

	t0 := time.Now()
	builder := snapshot.NewStaticBuilder()
	err = parse.ParseStatic(builder, body)
	if err != nil {
		return nil, &model.FeedParseError{Feed: "static", Err: err}
	}
	static := builder.Finish()

	l.logger().Info(
		"parsed static feed",
		"url", l.StaticURL,
		"bytes", len(body),
		"stops", len(static.Stops),
		"trips", len(static.Trips),
		"stop_times", len(static.StopTimes),
		"duration", time.Since(t0),
	)

	l.static = static
	l.staticHash = hash

	return static, nil
}

// Downloads and parses the realtime feed. Returns nil without error
// when no realtime URL is configured.
func (l *FeedLoader) LoadRealtime(ctx context.Context) (*snapshot.Realtime, error) {
	if l.RealtimeURL == "" {
		return nil, nil
	}

	body, err := l.Downloader.Get(
		ctx,
		l.RealtimeURL,
		l.RealtimeHeaders,
		downloader.GetOptions{
			Timeout: l.RealtimeTimeout,
			MaxSize: l.RealtimeMaxSize,
			Retries: l.Retries,
		},
	)
	if err != nil {
		return nil, &model.FeedFetchError{URL: l.RealtimeURL, Err: err}
	}

	builder := snapshot.NewRealtimeBuilder()
	stats, err := parse.ParseRealtime(ctx, builder, body)
	if err != nil {
		return nil, &model.FeedParseError{Feed: "realtime", Err: err}
	}
	builder.SetTimestamp(time.Unix(int64(stats.Timestamp), 0).UTC())

	l.logger().Debug(
		"parsed realtime feed",
		"url", l.RealtimeURL,
		"timestamp", stats.Timestamp,
		"scheduled", stats.NumScheduledTrips,
		"canceled", stats.NumCanceledTrips,
		"predictions", stats.NumPredictions,
		"discarded_no_time", stats.NumDiscardedNoTime,
		"discarded_no_trip_id", stats.NumDiscardedNoTripID,
		"vehicle_positions", stats.NumVehiclePositions,
		"alerts", stats.NumAlerts,
	)

	return builder.Finish(), nil
}
