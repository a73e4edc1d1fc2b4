// Package departures turns GTFS static and realtime feeds into
// departure boards for a fixed set of stops.
package departures

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/servicetime"
	"tidbyt.dev/departures/snapshot"
)

// Why rows were dropped during a single Reconcile call.
type ReconcileStats struct {
	NumStopTimes      int
	NumNotRunning     int
	NumUnknownStop    int
	NumUnknownTrip    int
	NumUnknownRoute   int
	NumBadTime        int
	NumOutsideHorizon int
	NumPredicted      int
	NumDepartures     int
}

// Merges static schedules with realtime predictions into departure
// boards.
type Reconciler struct {
	Clock  *servicetime.Clock
	Logger *slog.Logger
}

func NewReconciler(clock *servicetime.Clock, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{Clock: clock, Logger: logger}
}

// Builds one board per configured stop, holding the departures
// within horizon of now. Realtime may be nil.
//
// Bad rows are dropped one at a time; a board is always produced for
// every configured stop.
func (r *Reconciler) Reconcile(
	static *snapshot.Static,
	realtime *snapshot.Realtime,
	stops []model.StopConfig,
	horizon time.Duration,
) []model.Board {
	boards, _ := r.ReconcileWithStats(static, realtime, stops, horizon)
	return boards
}

func (r *Reconciler) ReconcileWithStats(
	static *snapshot.Static,
	realtime *snapshot.Realtime,
	stops []model.StopConfig,
	horizon time.Duration,
) ([]model.Board, *ReconcileStats) {
	now := r.Clock.Now()
	start := servicetime.ServiceDayStart(now)
	date := start.Format(servicetime.DateLayout)

	stats := &ReconcileStats{}
	boards := make([]model.Board, 0, len(stops))

	for _, cfg := range stops {
		board := model.Board{
			StopID:        cfg.ID,
			Direction:     cfg.Direction,
			SiblingStopID: cfg.SiblingID,
			Departures:    []model.Departure{},
		}

		stop, found := static.Stop(cfg.ID)
		if !found {
			// Rendered as an empty board
			stats.NumUnknownStop++
			r.dropRow(cfg.ID, "", &model.RowLookupError{Kind: model.LookupStop, ID: cfg.ID})
			boards = append(boards, board)
			continue
		}
		board.StopName = stop.Name

		for _, st := range static.StopTimesForStop(cfg.ID) {
			stats.NumStopTimes++

			dep, err := r.departure(static, realtime, st, start, date, stats)
			if err != nil {
				r.dropRow(cfg.ID, st.TripID, err)
				continue
			}
			if dep == nil {
				continue
			}

			if !dep.Time.After(now) || dep.Time.After(now.Add(horizon)) {
				stats.NumOutsideHorizon++
				continue
			}

			board.Departures = append(board.Departures, *dep)
		}

		sort.SliceStable(board.Departures, func(i, j int) bool {
			return board.Departures[i].Time.Before(board.Departures[j].Time)
		})
		stats.NumDepartures += len(board.Departures)

		boards = append(boards, board)
	}

	return boards, stats
}

// Resolves a single stop_time into a departure. Returns nil without
// error for trips not running on the service date.
func (r *Reconciler) departure(
	static *snapshot.Static,
	realtime *snapshot.Realtime,
	st *model.StopTime,
	start time.Time,
	date string,
	stats *ReconcileStats,
) (*model.Departure, error) {
	trip, found := static.Trip(st.TripID)
	if !found {
		stats.NumUnknownTrip++
		return nil, &model.RowLookupError{Kind: model.LookupTrip, ID: st.TripID}
	}

	route, found := static.Route(trip.RouteID)
	if !found {
		stats.NumUnknownRoute++
		return nil, &model.RowLookupError{Kind: model.LookupRoute, ID: trip.RouteID}
	}

	if !static.ServiceAdded(trip.ServiceID, date) {
		stats.NumNotRunning++
		return nil, nil
	}

	description := trip.Headsign
	if description == "" {
		description = route.LongName
	}

	offset := st.Departure
	isRealtime := false
	if predicted, found := realtime.Predicted(st.TripID, st.StopID); found {
		// Predictions are re-expressed as offsets from the
		// service day, same as the static schedule.
		s, err := servicetime.FormatOffset(predicted.Sub(start))
		if err != nil {
			stats.NumBadTime++
			return nil, &model.TimeParseError{Value: predicted.String(), Reason: "before service day"}
		}
		offset = s
		isRealtime = true
		stats.NumPredicted++
	}

	t, err := servicetime.ParseOffsetAt(start, offset)
	if err != nil {
		stats.NumBadTime++
		return nil, err
	}

	return &model.Departure{
		TripID:           st.TripID,
		RouteNumber:      route.ID,
		RouteDescription: description,
		Time:             t,
		Realtime:         isRealtime,
	}, nil
}

func (r *Reconciler) dropRow(stopID string, tripID string, err error) {
	attrs := []any{"stop_id", stopID, "error", err}
	if tripID != "" {
		attrs = append(attrs, "trip_id", tripID)
	}

	var timeErr *model.TimeParseError
	if errors.As(err, &timeErr) {
		attrs = append(attrs, "kind", "time")
	} else {
		attrs = append(attrs, "kind", "lookup")
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("dropping row", attrs...)
}
