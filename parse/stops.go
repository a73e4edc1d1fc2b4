package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/snapshot"
)

type StopCSV struct {
	ID   string  `csv:"stop_id"`
	Code string  `csv:"stop_code"`
	Name string  `csv:"stop_name"`
	Lat  float64 `csv:"stop_lat"`
	Lon  float64 `csv:"stop_lon"`
}

func ParseStops(writer snapshot.StaticWriter, data io.Reader) error {
	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(st *StopCSV) error {
		i += 1

		if st.ID == "" {
			return fmt.Errorf("empty stop_id (row %d)", i+1)
		}

		err := writer.WriteStop(&model.Stop{
			ID:   st.ID,
			Code: st.Code,
			Name: st.Name,
			Lat:  st.Lat,
			Lon:  st.Lon,
		})
		if err != nil {
			return errors.Wrapf(err, "writing stop '%s'", st.ID)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unmarshaling stops csv")
	}

	return nil
}
