// Package servicetime holds the day-boundary arithmetic used to turn
// GTFS offset times ("25:10:00") into absolute instants.
//
// All computations happen in the agency's timezone. A service day
// starts at local midnight, except during the small hours: before
// ServiceDayCutoff the previous day's service is still running, and
// its trips are encoded with offsets of 24:00:00 and beyond.
package servicetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"tidbyt.dev/departures/model"
)

const (
	DefaultTimezone = "America/Toronto"

	// Local time of day before which the previous calendar date is
	// considered the current service date.
	ServiceDayCutoff = 4 * time.Hour

	// Layout of service dates in calendar_dates.txt.
	DateLayout = "20060102"
)

type Clock struct {
	Location *time.Location
	TimeNow  func() time.Time
}

// Creates a Clock for the given IANA timezone.
func New(timezone string) (*Clock, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}
	return &Clock{
		Location: location,
		TimeNow:  time.Now,
	}, nil
}

// Current instant, in the agency timezone.
func (c *Clock) Now() time.Time {
	return c.TimeNow().In(c.Location)
}

// Start of the service day currently running.
func (c *Clock) StartOfServiceDay() time.Time {
	return ServiceDayStart(c.Now())
}

// The current service date as YYYYMMDD.
func (c *Clock) ServiceDate() string {
	return ServiceDate(c.Now())
}

// Resolves an offset time against the current service day.
func (c *Clock) ParseOffsetTime(s string) (time.Time, error) {
	return ParseOffsetAt(c.StartOfServiceDay(), s)
}

// Start of the service day running at t, in t's location.
func ServiceDayStart(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	// Wall clock time of day, not elapsed time, so that DST
	// transitions don't move the cutoff.
	timeOfDay := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	if timeOfDay < ServiceDayCutoff {
		// Post-midnight trips belong to yesterday's service,
		// e.g. 01:00 is encoded as 25:00:00.
		return midnight.AddDate(0, 0, -1)
	}
	return midnight
}

// Service date running at t, as YYYYMMDD.
func ServiceDate(t time.Time) string {
	return ServiceDayStart(t).Format(DateLayout)
}

// Resolves a "HH:MM:SS" offset relative to start. Hours are allowed
// to exceed 23, in which case the result lands on a later calendar
// day.
func ParseOffsetAt(start time.Time, s string) (time.Time, error) {
	offset, err := ParseOffset(s)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(offset), nil
}

// Parses "HH:MM:SS" into a duration.
func ParseOffset(s string) (time.Duration, error) {
	split := strings.Split(s, ":")
	if len(split) != 3 {
		return 0, &model.TimeParseError{
			Value:  s,
			Reason: fmt.Sprintf("found %d parts", len(split)),
		}
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(strings.TrimSpace(str))
		if err != nil {
			return 0, &model.TimeParseError{
				Value:  s,
				Reason: fmt.Sprintf("non-integer in pos %d", i),
			}
		}
		if j < 0 {
			return 0, &model.TimeParseError{
				Value:  s,
				Reason: fmt.Sprintf("negative value in pos %d", i),
			}
		}
		hms[i] = j
	}

	return time.Duration(hms[0])*time.Hour +
		time.Duration(hms[1])*time.Minute +
		time.Duration(hms[2])*time.Second, nil
}

// Translates an offset from service day start into a GTFS style
// "HH:MM:SS" string. Sub-second precision is dropped.
func FormatOffset(offset time.Duration) (string, error) {
	if offset < 0 {
		return "", fmt.Errorf("negative offset %s", offset)
	}
	total := int(offset / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s), nil
}
