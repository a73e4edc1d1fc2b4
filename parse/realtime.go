package parse

import (
	"context"
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"

	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/snapshot"
)

// Kind of payload carried by a realtime feed entity.
type EntityKind int

const (
	EntityUnknown EntityKind = iota
	EntityTripUpdate
	EntityVehiclePosition
	EntityAlert
)

func entityKind(entity *gtfsproto.FeedEntity) EntityKind {
	switch {
	case entity.TripUpdate != nil:
		return EntityTripUpdate
	case entity.Vehicle != nil:
		return EntityVehiclePosition
	case entity.Alert != nil:
		return EntityAlert
	}
	return EntityUnknown
}

// Counters describing a parsed feed. These exist to simplify
// debugging down the road.
type RealtimeStats struct {
	Timestamp uint64

	NumScheduledTrips   int
	NumAddedTrips       int
	NumUnscheduledTrips int
	NumCanceledTrips    int
	NumDuplicatedTrips  int

	NumVehiclePositions int
	NumAlerts           int
	NumUnknownEntities  int

	NumPredictions        int
	NumDiscardedNoTime    int
	NumDiscardedNoTripID  int
	NumDiscardedNoStopID  int
	NumDiscardedNoUpdates int
}

// Decodes a GTFS-rt FeedMessage, writing one Prediction per trip
// update carrying at least one absolute stop time.
func ParseRealtime(ctx context.Context, writer snapshot.RealtimeWriter, feed []byte) (*RealtimeStats, error) {
	f := &gtfsproto.FeedMessage{}
	err := proto.Unmarshal(feed, f)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
	}

	header := f.GetHeader()

	version := header.GetGtfsRealtimeVersion()
	if version != "2.0" && version != "1.0" {
		return nil, fmt.Errorf("version %s not supported", version)
	}

	if header.GetIncrementality() != gtfsproto.FeedHeader_FULL_DATASET {
		return nil, fmt.Errorf("feed incrementality %s not supported", header.GetIncrementality())
	}

	stats := &RealtimeStats{
		Timestamp: header.GetTimestamp(),
	}

	for _, entity := range f.GetEntity() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch entityKind(entity) {
		case EntityTripUpdate:
			err = processTripUpdate(writer, stats, entity.GetTripUpdate())
			if err != nil {
				return nil, fmt.Errorf("processing entity '%s': %w", entity.GetId(), err)
			}
		case EntityVehiclePosition:
			stats.NumVehiclePositions++
		case EntityAlert:
			stats.NumAlerts++
		case EntityUnknown:
			stats.NumUnknownEntities++
		}
	}

	return stats, nil
}

func processTripUpdate(
	writer snapshot.RealtimeWriter,
	stats *RealtimeStats,
	update *gtfsproto.TripUpdate,
) error {
	trip := update.GetTrip()

	switch trip.GetScheduleRelationship() {
	case gtfsproto.TripDescriptor_SCHEDULED:
		stats.NumScheduledTrips++
	case gtfsproto.TripDescriptor_ADDED:
		stats.NumAddedTrips++
	case gtfsproto.TripDescriptor_UNSCHEDULED:
		stats.NumUnscheduledTrips++
	case gtfsproto.TripDescriptor_CANCELED:
		stats.NumCanceledTrips++
	case gtfsproto.TripDescriptor_DUPLICATED:
		stats.NumDuplicatedTrips++
	}

	// Blank trip ID is allowed when (route_id, direction_id,
	// start_time, start_date) is provided and uniquely
	// identifies the trip in the static schedule.
	//
	// That said, we don't support it.
	if trip.GetTripId() == "" {
		stats.NumDiscardedNoTripID++
		return nil
	}

	prediction := &model.Prediction{
		TripID: trip.GetTripId(),
		Stops:  []model.StopPrediction{},
	}

	for _, stu := range update.GetStopTimeUpdate() {
		if stu.GetStopId() == "" {
			stats.NumDiscardedNoStopID++
			continue
		}

		t, ok := stopTimeUpdateTime(stu)
		if !ok {
			stats.NumDiscardedNoTime++
			continue
		}

		prediction.Stops = append(prediction.Stops, model.StopPrediction{
			StopID: stu.GetStopId(),
			Time:   t,
		})
	}

	if len(prediction.Stops) == 0 {
		stats.NumDiscardedNoUpdates++
		return nil
	}

	stats.NumPredictions += len(prediction.Stops)

	return writer.WritePrediction(prediction)
}

// Absolute time of a stop time update. Departure is preferred, with
// arrival as fallback. Delay-only events carry no absolute time and
// are not usable.
func stopTimeUpdateTime(stu *gtfsproto.TripUpdate_StopTimeUpdate) (time.Time, bool) {
	if ts := stu.GetDeparture().GetTime(); ts != 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	if ts := stu.GetArrival().GetTime(); ts != 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}
