package departures

import (
	"fmt"
	"testing"
	"time"

	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/parse"
	"tidbyt.dev/departures/servicetime"
	"tidbyt.dev/departures/snapshot"
	"tidbyt.dev/departures/testutil"
)

// A feed with 20 stops each served every 5 minutes from 05:00 to
// 25:00.
func syntheticFeed(b *testing.B) []byte {
	files := map[string][]string{
		"routes.txt":         {"route_id,route_long_name,route_type", "7,King,3"},
		"calendar_dates.txt": {"service_id,date,exception_type", "weekday,20230314,1"},
		"stops.txt":          {"stop_id,stop_name,stop_lat,stop_lon"},
		"trips.txt":          {"trip_id,route_id,service_id,trip_headsign"},
		"stop_times.txt":     {"trip_id,arrival_time,departure_time,stop_id,stop_sequence"},
	}

	for s := 0; s < 20; s++ {
		files["stops.txt"] = append(files["stops.txt"], fmt.Sprintf("s%d,Stop %d,43.4%d,-80.5", s, s, s))
	}

	for trip := 0; trip < 240; trip++ {
		files["trips.txt"] = append(files["trips.txt"], fmt.Sprintf("t%d,7,weekday,Trip %d", trip, trip))
		start := 5*time.Hour + time.Duration(trip)*5*time.Minute
		for s := 0; s < 20; s++ {
			offset, _ := servicetime.FormatOffset(start + time.Duration(s)*time.Minute)
			files["stop_times.txt"] = append(files["stop_times.txt"], fmt.Sprintf("t%d,%s,%s,s%d,%d", trip, offset, offset, s, s))
		}
	}

	return testutil.BuildZip(b, files)
}

func BenchmarkParseStatic(b *testing.B) {
	feed := syntheticFeed(b)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		builder := snapshot.NewStaticBuilder()
		err := parse.ParseStatic(builder, feed)
		if err != nil {
			b.Error(err)
		}
		builder.Finish()
	}
}

func BenchmarkReconcile(b *testing.B) {
	builder := snapshot.NewStaticBuilder()
	err := parse.ParseStatic(builder, syntheticFeed(b))
	if err != nil {
		b.Fatal(err)
	}
	static := builder.Finish()

	clock, err := servicetime.New("America/Toronto")
	if err != nil {
		b.Fatal(err)
	}
	clock.TimeNow = func() time.Time {
		return time.Date(2023, 3, 14, 8, 0, 0, 0, clock.Location)
	}
	r := NewReconciler(clock, nil)

	stops := []model.StopConfig{}
	for s := 0; s < 20; s++ {
		stops = append(stops, model.StopConfig{ID: fmt.Sprintf("s%d", s)})
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		boards := r.Reconcile(static, nil, stops, 30*time.Minute)
		if len(boards) != 20 {
			b.Errorf("got %d boards", len(boards))
		}
	}
}
