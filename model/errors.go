package model

import (
	"fmt"
)

// Failure to reach a feed. Aborts the refresh cycle.
type FeedFetchError struct {
	URL string
	Err error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FeedFetchError) Unwrap() error {
	return e.Err
}

// Malformed archive, table or protobuf payload. Aborts the refresh
// cycle.
type FeedParseError struct {
	Feed string
	Err  error
}

func (e *FeedParseError) Error() string {
	return fmt.Sprintf("parsing %s feed: %v", e.Feed, e.Err)
}

func (e *FeedParseError) Unwrap() error {
	return e.Err
}

type LookupKind string

const (
	LookupStop  LookupKind = "stop"
	LookupTrip  LookupKind = "trip"
	LookupRoute LookupKind = "route"
)

// A stop_time references a record missing from the static
// tables. Only the offending row is dropped.
type RowLookupError struct {
	Kind LookupKind
	ID   string
}

func (e *RowLookupError) Error() string {
	return fmt.Sprintf("unknown %s_id '%s'", e.Kind, e.ID)
}

// Malformed "HH:MM:SS" offset. Only the offending row is dropped.
type TimeParseError struct {
	Value  string
	Reason string
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("invalid time '%s': %s", e.Value, e.Reason)
}
