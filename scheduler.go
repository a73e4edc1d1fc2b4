package departures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/snapshot"
)

const (
	DefaultRefreshPeriod = 1 * time.Minute
	DefaultHorizon       = 30 * time.Minute
)

var ErrRefreshInProgress = errors.New("refresh already in progress")

// Source of feed snapshots for a refresh cycle.
type Loader interface {
	LoadStatic(ctx context.Context) (*snapshot.Static, error)
	LoadRealtime(ctx context.Context) (*snapshot.Realtime, error)
}

type State int32

const (
	StateIdle State = iota
	StateFetching
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateReconciling:
		return "reconciling"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Result of a successful refresh cycle. Never modified once
// published.
type Snapshot struct {
	Boards      []model.Board `json:"boards"`
	RefreshedAt time.Time     `json:"refreshed_at"`

	// Header timestamp of the realtime feed. Zero when the
	// cycle ran without realtime data.
	RealtimeAt time.Time `json:"realtime_at,omitempty"`
}

// Periodically refreshes feeds and publishes departure boards. At
// most one refresh cycle runs at any time.
type Scheduler struct {
	Loader     Loader
	Reconciler *Reconciler
	Stops      []model.StopConfig
	Horizon    time.Duration
	Period     time.Duration
	Logger     *slog.Logger

	mutex sync.Mutex
	state State

	current atomic.Pointer[Snapshot]

	subMutex    sync.Mutex
	subscribers map[int]chan *Snapshot
	nextSubID   int
}

func NewScheduler(loader Loader, reconciler *Reconciler, stops []model.StopConfig) *Scheduler {
	return &Scheduler{
		Loader:      loader,
		Reconciler:  reconciler,
		Stops:       stops,
		Horizon:     DefaultHorizon,
		Period:      DefaultRefreshPeriod,
		Logger:      slog.Default(),
		subscribers: map[int]chan *Snapshot{},
	}
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Scheduler) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mutex.Lock()
	s.state = state
	s.mutex.Unlock()
}

// Currently published snapshot, or nil if no cycle has completed.
func (s *Scheduler) Snapshot() *Snapshot {
	return s.current.Load()
}

// Registers for refresh notifications. The channel buffers only the
// most recent snapshot; a slow reader skips intermediate ones. Call
// the returned func to unsubscribe.
func (s *Scheduler) Subscribe() (<-chan *Snapshot, func()) {
	s.subMutex.Lock()
	defer s.subMutex.Unlock()

	if s.subscribers == nil {
		s.subscribers = map[int]chan *Snapshot{}
	}

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan *Snapshot, 1)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMutex.Lock()
			defer s.subMutex.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
}

func (s *Scheduler) notify(snap *Snapshot) {
	s.subMutex.Lock()
	defer s.subMutex.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Replace the stale value
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Runs a single refresh cycle: static feed, then realtime feed, then
// reconciliation. The new snapshot is published only if every step
// succeeds. Returns ErrRefreshInProgress if a cycle is already
// running.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.mutex.Lock()
	if s.state != StateIdle {
		s.mutex.Unlock()
		return ErrRefreshInProgress
	}
	s.state = StateFetching
	s.mutex.Unlock()

	defer s.setState(StateIdle)

	static, err := s.Loader.LoadStatic(ctx)
	if err != nil {
		return fmt.Errorf("loading static: %w", err)
	}

	realtime, err := s.Loader.LoadRealtime(ctx)
	if err != nil {
		return fmt.Errorf("loading realtime: %w", err)
	}

	s.setState(StateReconciling)

	boards, stats := s.Reconciler.ReconcileWithStats(static, realtime, s.Stops, s.Horizon)

	snap := &Snapshot{
		Boards:      boards,
		RefreshedAt: s.Reconciler.Clock.Now(),
	}
	if realtime != nil {
		snap.RealtimeAt = realtime.Timestamp
	}

	s.current.Store(snap)
	s.notify(snap)

	s.logger().Info(
		"published boards",
		"boards", len(boards),
		"departures", stats.NumDepartures,
		"predicted", stats.NumPredicted,
		"not_running", stats.NumNotRunning,
		"bad_time", stats.NumBadTime,
		"unknown_trip", stats.NumUnknownTrip,
		"unknown_route", stats.NumUnknownRoute,
		"unknown_stop", stats.NumUnknownStop,
	)

	return nil
}

func (s *Scheduler) cycle(ctx context.Context) {
	err := s.Refresh(ctx)
	if errors.Is(err, ErrRefreshInProgress) {
		s.logger().Debug("skipping tick, refresh in progress")
		return
	}
	if err != nil {
		s.logger().Error("refresh failed", "error", err)
	}
}

// Refreshes immediately and then once per Period until ctx is
// done. Ticks arriving while a cycle is in flight are dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	period := s.Period
	if period <= 0 {
		period = DefaultRefreshPeriod
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	spawn := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.cycle(ctx)
		}()
	}

	spawn()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			spawn()
		}
	}
}
