package parse

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/snapshot"
)

type RouteCSV struct {
	ID        string `csv:"route_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Type      string `csv:"route_type"`
}

func ParseRoutes(writer snapshot.StaticWriter, data io.Reader) error {
	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(r *RouteCSV) error {
		i += 1

		// ID is required
		if r.ID == "" {
			return fmt.Errorf("route has no route_id (row %d)", i+1)
		}

		var routeType int
		if r.Type != "" {
			var err error
			routeType, err = strconv.Atoi(r.Type)
			if err != nil {
				return errors.Wrapf(err, "route_id '%s' has invalid route_type", r.ID)
			}
		}

		err := writer.WriteRoute(&model.Route{
			ID:        r.ID,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Type:      model.RouteType(routeType),
		})
		if err != nil {
			return errors.Wrapf(err, "writing route (row %d)", i+1)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unmarshaling routes csv")
	}

	return nil
}
