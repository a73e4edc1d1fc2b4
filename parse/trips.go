package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/snapshot"
)

type TripCSV struct {
	ID          string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	Headsign    string `csv:"trip_headsign"`
	DirectionID int8   `csv:"direction_id"`
	// BlockID              string `csv:"block_id"`
	// ShapeID              string `csv:"shape_id"`
}

// Parses trips.txt. References to routes and services are not
// verified here: a trip pointing at an unknown route only affects
// its own departures.
func ParseTrips(writer snapshot.StaticWriter, data io.Reader) error {
	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(t *TripCSV) error {
		i += 1

		if t.ID == "" {
			return fmt.Errorf("empty trip_id (row %d)", i+1)
		}
		if t.DirectionID != 0 && t.DirectionID != 1 {
			return fmt.Errorf("invalid direction_id '%d' for trip_id '%s'", t.DirectionID, t.ID)
		}

		err := writer.WriteTrip(&model.Trip{
			ID:          t.ID,
			RouteID:     t.RouteID,
			ServiceID:   t.ServiceID,
			Headsign:    t.Headsign,
			DirectionID: t.DirectionID,
		})
		if err != nil {
			return errors.Wrapf(err, "writing trip (row %d)", i+1)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unmarshaling trips csv")
	}

	return nil
}
