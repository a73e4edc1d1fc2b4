package model

import (
	"time"
)

// Holds all external facing types and constants.

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway               = 1
	RouteTypeRail                 = 2
	RouteTypeBus                  = 3
	RouteTypeFerry                = 4
	RouteTypeCable                = 5
	RouteTypeAerial               = 6
	RouteTypeFunicular            = 7
	RouteTypeTrolleybus           = 11
	RouteTypeMonorail             = 12
)

type ExceptionType int8

const (
	// Service has been added for the date.
	ExceptionAdded ExceptionType = 1

	// Service has been removed for the date.
	ExceptionRemoved ExceptionType = 2
)

func (e ExceptionType) Valid() bool {
	return e == ExceptionAdded || e == ExceptionRemoved
}

type Stop struct {
	ID   string
	Code string
	Name string
	Lat  float64
	Lon  float64
}

type Route struct {
	ID        string
	ShortName string
	LongName  string
	Type      RouteType
}

type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	Headsign    string
	DirectionID int8
}

type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType ExceptionType
}

// A row of stop_times.txt. Arrival and Departure are kept exactly as
// found in the feed ("HH:MM:SS", hours possibly >= 24).
type StopTime struct {
	TripID       string
	StopID       string
	StopSequence uint32
	Arrival      string
	Departure    string
}

// Predicted time for a trip at a single stop.
type StopPrediction struct {
	StopID string
	Time   time.Time
}

// All realtime predictions for one trip, in feed order.
type Prediction struct {
	TripID string
	Stops  []StopPrediction
}

// A monitored stop. SiblingID references the stop serving the
// opposite direction at the same location, if any.
type StopConfig struct {
	ID        string
	Direction string
	SiblingID string
}

// A vehicle departing from a stop.
type Departure struct {
	TripID           string    `json:"trip_id"`
	RouteNumber      string    `json:"route_number"`
	RouteDescription string    `json:"route_description"`
	Time             time.Time `json:"time"`
	Realtime         bool      `json:"realtime"`
}

// Upcoming departures for a single stop, ordered by time.
type Board struct {
	StopID        string      `json:"stop_id"`
	StopName      string      `json:"stop_name"`
	Direction     string      `json:"direction,omitempty"`
	SiblingStopID string      `json:"sibling_stop_id,omitempty"`
	Departures    []Departure `json:"departures"`
}
