package snapshot

import (
	"time"

	"tidbyt.dev/departures/model"
)

type RealtimeWriter interface {
	WritePrediction(prediction *model.Prediction) error
}

type RealtimeBuilder struct {
	timestamp   time.Time
	predictions []*model.Prediction
}

func NewRealtimeBuilder() *RealtimeBuilder {
	return &RealtimeBuilder{}
}

func (b *RealtimeBuilder) WritePrediction(prediction *model.Prediction) error {
	b.predictions = append(b.predictions, prediction)
	return nil
}

// Records the feed header timestamp.
func (b *RealtimeBuilder) SetTimestamp(ts time.Time) {
	b.timestamp = ts
}

type tripStop struct {
	TripID string
	StopID string
}

func (b *RealtimeBuilder) Finish() *Realtime {
	rt := &Realtime{
		Timestamp:   b.timestamp,
		Predictions: b.predictions,
		byTripStop:  map[tripStop]time.Time{},
	}

	// Later records overwrite earlier ones: the last matching
	// prediction in the feed wins.
	for _, p := range b.predictions {
		for _, sp := range p.Stops {
			rt.byTripStop[tripStop{p.TripID, sp.StopID}] = sp.Time
		}
	}

	*b = RealtimeBuilder{}

	return rt
}

// Immutable realtime prediction snapshot.
type Realtime struct {
	Timestamp   time.Time
	Predictions []*model.Prediction

	byTripStop map[tripStop]time.Time
}

// Predicted departure of a trip from a stop, if any.
func (r *Realtime) Predicted(tripID string, stopID string) (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	t, found := r.byTripStop[tripStop{tripID, stopID}]
	return t, found
}
