package snapshot

import (
	"tidbyt.dev/departures/model"
)

// Receives static GTFS records for a single feed, one table at a
// time, as they are streamed out of the archive.
type StaticWriter interface {
	WriteRoute(route *model.Route) error
	WriteStop(stop *model.Stop) error
	WriteTrip(trip *model.Trip) error
	WriteCalendarDate(caldate *model.CalendarDate) error
	WriteStopTime(stopTime *model.StopTime) error
}

// Accumulates static records for one refresh cycle. Not safe for
// concurrent use; call Finish once streaming completes.
type StaticBuilder struct {
	routes        []*model.Route
	stops         []*model.Stop
	trips         []*model.Trip
	calendarDates []*model.CalendarDate
	stopTimes     []*model.StopTime
}

func NewStaticBuilder() *StaticBuilder {
	return &StaticBuilder{}
}

func (b *StaticBuilder) WriteRoute(route *model.Route) error {
	b.routes = append(b.routes, route)
	return nil
}

func (b *StaticBuilder) WriteStop(stop *model.Stop) error {
	b.stops = append(b.stops, stop)
	return nil
}

func (b *StaticBuilder) WriteTrip(trip *model.Trip) error {
	b.trips = append(b.trips, trip)
	return nil
}

func (b *StaticBuilder) WriteCalendarDate(caldate *model.CalendarDate) error {
	b.calendarDates = append(b.calendarDates, caldate)
	return nil
}

func (b *StaticBuilder) WriteStopTime(stopTime *model.StopTime) error {
	b.stopTimes = append(b.stopTimes, stopTime)
	return nil
}

type serviceDate struct {
	ServiceID string
	Date      string
}

// Finishes accumulation, indexing all tables. The builder must not
// be used afterwards.
func (b *StaticBuilder) Finish() *Static {
	s := &Static{
		Routes:        b.routes,
		Stops:         b.stops,
		Trips:         b.trips,
		CalendarDates: b.calendarDates,
		StopTimes:     b.stopTimes,

		stopByID:        make(map[string]*model.Stop, len(b.stops)),
		routeByID:       make(map[string]*model.Route, len(b.routes)),
		tripByID:        make(map[string]*model.Trip, len(b.trips)),
		stopTimesByStop: map[string][]*model.StopTime{},
		added:           map[serviceDate]bool{},
	}

	// On duplicate IDs the first record wins, matching a linear
	// scan of the table.
	for _, stop := range b.stops {
		if _, found := s.stopByID[stop.ID]; !found {
			s.stopByID[stop.ID] = stop
		}
	}
	for _, route := range b.routes {
		if _, found := s.routeByID[route.ID]; !found {
			s.routeByID[route.ID] = route
		}
	}
	for _, trip := range b.trips {
		if _, found := s.tripByID[trip.ID]; !found {
			s.tripByID[trip.ID] = trip
		}
	}
	for _, st := range b.stopTimes {
		s.stopTimesByStop[st.StopID] = append(s.stopTimesByStop[st.StopID], st)
	}
	for _, cd := range b.calendarDates {
		if cd.ExceptionType == model.ExceptionAdded {
			s.added[serviceDate{cd.ServiceID, cd.Date}] = true
		}
	}

	*b = StaticBuilder{}

	return s
}

// Immutable static schedule snapshot. The exported slices hold the
// tables in feed order.
type Static struct {
	Routes        []*model.Route
	Stops         []*model.Stop
	Trips         []*model.Trip
	CalendarDates []*model.CalendarDate
	StopTimes     []*model.StopTime

	stopByID        map[string]*model.Stop
	routeByID       map[string]*model.Route
	tripByID        map[string]*model.Trip
	stopTimesByStop map[string][]*model.StopTime
	added           map[serviceDate]bool
}

func (s *Static) Stop(id string) (*model.Stop, bool) {
	stop, found := s.stopByID[id]
	return stop, found
}

func (s *Static) Route(id string) (*model.Route, bool) {
	route, found := s.routeByID[id]
	return route, found
}

func (s *Static) Trip(id string) (*model.Trip, bool) {
	trip, found := s.tripByID[id]
	return trip, found
}

// All stop_times at the stop, in feed order.
func (s *Static) StopTimesForStop(stopID string) []*model.StopTime {
	return s.stopTimesByStop[stopID]
}

// Reports whether calendar_dates.txt adds the service on the given
// date (YYYYMMDD). Regular weekly calendars are not consulted.
func (s *Static) ServiceAdded(serviceID string, date string) bool {
	return s.added[serviceDate{serviceID, date}]
}
