package departures

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/departures/downloader"
	"tidbyt.dev/departures/model"
	"tidbyt.dev/departures/testutil"
)

type feedServer struct {
	static   atomic.Value
	realtime atomic.Value
	status   atomic.Int32
	hits     atomic.Int32
}

func newFeedServer(t *testing.T, static []byte, realtime []byte) (*feedServer, *httptest.Server) {
	fs := &feedServer{}
	fs.static.Store(static)
	fs.realtime.Store(realtime)
	fs.status.Store(http.StatusOK)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		if status := int(fs.status.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		switch r.URL.Path {
		case "/static.zip":
			w.Write(fs.static.Load().([]byte))
		case "/realtime.pb":
			w.Write(fs.realtime.Load().([]byte))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	return fs, server
}

func TestFeedLoaderStatic(t *testing.T) {
	fs, server := newFeedServer(t, testutil.BuildStatic(t, fixtureKingStreet()), nil)

	l := NewFeedLoader(server.URL+"/static.zip", "")
	l.StaticCacheTTL = 0
	l.Retries = 0

	static, err := l.LoadStatic(context.Background())
	require.NoError(t, err)
	stop, found := static.Stop("2513")
	require.True(t, found)
	assert.Equal(t, "King / Victoria", stop.Name)

	// Unchanged archive isn't parsed again
	again, err := l.LoadStatic(context.Background())
	require.NoError(t, err)
	assert.Same(t, static, again)
	assert.Equal(t, int32(2), fs.hits.Load())

	// Changed archive is
	files := fixtureKingStreet()
	files["stops.txt"] = []string{"stop_id,stop_name", "2513,Renamed"}
	fs.static.Store(testutil.BuildStatic(t, files))
	changed, err := l.LoadStatic(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, static, changed)
	stop, _ = changed.Stop("2513")
	assert.Equal(t, "Renamed", stop.Name)
}

func TestFeedLoaderStaticCached(t *testing.T) {
	fs, server := newFeedServer(t, testutil.BuildStatic(t, fixtureKingStreet()), nil)

	now := time.Unix(1678795200, 0)
	d := downloader.NewMemoryDownloader()
	d.TimeNow = func() time.Time { return now }

	l := NewFeedLoader(server.URL+"/static.zip", "")
	l.Downloader = d

	_, err := l.LoadStatic(context.Background())
	require.NoError(t, err)
	_, err = l.LoadStatic(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fs.hits.Load())

	now = now.Add(DefaultStaticCacheTTL + time.Second)
	_, err = l.LoadStatic(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.hits.Load())
}

func TestFeedLoaderStaticErrors(t *testing.T) {
	fs, server := newFeedServer(t, []byte("not a zip"), nil)

	l := NewFeedLoader(server.URL+"/static.zip", "")
	l.Retries = 0

	_, err := l.LoadStatic(context.Background())
	parseErr := &model.FeedParseError{}
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "static", parseErr.Feed)

	fs.status.Store(http.StatusForbidden)
	_, err = l.LoadStatic(context.Background())
	fetchErr := &model.FeedFetchError{}
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, server.URL+"/static.zip", fetchErr.URL)

	statusErr := &downloader.StatusError{}
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestFeedLoaderRealtime(t *testing.T) {
	departure := time.Date(2023, 3, 14, 12, 3, 0, 0, time.UTC)
	fs, server := newFeedServer(t, nil, testutil.BuildRealtime(t, time.Unix(1678795200, 0), testutil.TripUpdate{
		TripID: "t1",
		Stops:  []testutil.StopUpdate{{StopID: "2513", Departure: departure}},
	}))

	l := NewFeedLoader(server.URL+"/static.zip", server.URL+"/realtime.pb")
	l.Retries = 0

	rt, err := l.LoadRealtime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1678795200), rt.Timestamp.Unix())
	predicted, found := rt.Predicted("t1", "2513")
	require.True(t, found)
	assert.True(t, departure.Equal(predicted))

	// Never cached
	_, err = l.LoadRealtime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.hits.Load())

	fs.realtime.Store([]byte{0xff, 0xff, 0xff, 0xff, 0x0f})
	_, err = l.LoadRealtime(context.Background())
	parseErr := &model.FeedParseError{}
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "realtime", parseErr.Feed)

	fs.status.Store(http.StatusBadGateway)
	_, err = l.LoadRealtime(context.Background())
	fetchErr := &model.FeedFetchError{}
	require.ErrorAs(t, err, &fetchErr)
}

func TestFeedLoaderNoRealtime(t *testing.T) {
	l := NewFeedLoader("http://example.com/static.zip", "")
	rt, err := l.LoadRealtime(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rt)
}

func TestFeedLoaderDrivesScheduler(t *testing.T) {
	tz := toronto(t)
	_, server := newFeedServer(t,
		testutil.BuildStatic(t, fixtureKingStreet()),
		testutil.BuildRealtime(t, time.Unix(1678795200, 0), testutil.TripUpdate{
			TripID: "t2",
			Stops:  []testutil.StopUpdate{{StopID: "2513", Departure: time.Date(2023, 3, 14, 8, 2, 0, 0, tz)}},
		}),
	)

	l := NewFeedLoader(server.URL+"/static.zip", server.URL+"/realtime.pb")
	l.Retries = 0

	now := time.Date(2023, 3, 14, 8, 0, 0, 0, tz)
	s := NewScheduler(l, NewReconciler(testClock(t, now), nil), []model.StopConfig{{ID: "2513"}})
	require.NoError(t, s.Refresh(context.Background()))

	snap := s.Snapshot()
	require.NotNil(t, snap)
	require.Equal(t, 2, len(snap.Boards[0].Departures))
	assert.Equal(t, "t2", snap.Boards[0].Departures[0].TripID)
	assert.True(t, snap.Boards[0].Departures[0].Realtime)
	assert.Equal(t, "t1", snap.Boards[0].Departures[1].TripID)
}
