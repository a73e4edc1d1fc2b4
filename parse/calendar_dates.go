package parse

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/snapshot"
)

type CalendarDateCSV struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType int8   `csv:"exception_type"`
}

func ParseCalendarDates(writer snapshot.StaticWriter, data io.Reader) error {
	knownServiceDate := map[string]bool{}

	err := gocsv.UnmarshalToCallbackWithError(data, func(cd *CalendarDateCSV) error {
		exceptionType := model.ExceptionType(cd.ExceptionType)
		if !exceptionType.Valid() {
			return fmt.Errorf("illegal exception_type: '%d'", cd.ExceptionType)
		}

		_, err := time.ParseInLocation("20060102", cd.Date, time.UTC)
		if err != nil {
			return fmt.Errorf("parsing date '%s': %w", cd.Date, err)
		}

		serviceDate := fmt.Sprintf("%s-%s", cd.Date, cd.ServiceID)
		if knownServiceDate[serviceDate] {
			return fmt.Errorf("duplicate service/date: '%s'", serviceDate)
		}
		knownServiceDate[serviceDate] = true

		err = writer.WriteCalendarDate(&model.CalendarDate{
			ServiceID:     cd.ServiceID,
			Date:          cd.Date,
			ExceptionType: exceptionType,
		})
		if err != nil {
			return errors.Wrapf(err, "writing calendar date '%s'", serviceDate)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unmarshaling calendar_dates csv: %w", err)
	}

	return nil
}
