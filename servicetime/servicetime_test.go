package servicetime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/departures/model"
)

func clockAt(t *testing.T, tz string, now time.Time) *Clock {
	c, err := New(tz)
	require.NoError(t, err)
	c.TimeNow = func() time.Time { return now }
	return c
}

func TestStartOfServiceDay(t *testing.T) {
	tz, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	for _, tc := range []struct {
		name     string
		now      time.Time
		expected time.Time
		date     string
	}{
		{
			"early morning belongs to yesterday",
			time.Date(2023, 3, 14, 3, 0, 0, 0, tz),
			time.Date(2023, 3, 13, 0, 0, 0, 0, tz),
			"20230313",
		},
		{
			"just before cutoff",
			time.Date(2023, 3, 14, 3, 59, 59, 0, tz),
			time.Date(2023, 3, 13, 0, 0, 0, 0, tz),
			"20230313",
		},
		{
			"cutoff",
			time.Date(2023, 3, 14, 4, 0, 0, 0, tz),
			time.Date(2023, 3, 14, 0, 0, 0, 0, tz),
			"20230314",
		},
		{
			"morning",
			time.Date(2023, 3, 14, 5, 0, 0, 0, tz),
			time.Date(2023, 3, 14, 0, 0, 0, 0, tz),
			"20230314",
		},
		{
			"midnight",
			time.Date(2023, 3, 14, 0, 0, 0, 0, tz),
			time.Date(2023, 3, 13, 0, 0, 0, 0, tz),
			"20230313",
		},
		{
			"day of DST switch",
			time.Date(2023, 3, 12, 4, 30, 0, 0, tz),
			time.Date(2023, 3, 12, 0, 0, 0, 0, tz),
			"20230312",
		},
		{
			"month boundary",
			time.Date(2023, 4, 1, 1, 30, 0, 0, tz),
			time.Date(2023, 3, 31, 0, 0, 0, 0, tz),
			"20230331",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := clockAt(t, "America/Toronto", tc.now)
			assert.True(t, tc.expected.Equal(c.StartOfServiceDay()), "got %s", c.StartOfServiceDay())
			assert.Equal(t, tc.date, c.ServiceDate())
		})
	}
}

func TestStartOfServiceDayUsesAgencyTimezone(t *testing.T) {
	// 07:00 UTC is 03:00 in Toronto (EDT), so yesterday's service
	// is still running there.
	c := clockAt(t, "America/Toronto", time.Date(2023, 6, 10, 7, 0, 0, 0, time.UTC))

	tz, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	assert.True(t, time.Date(2023, 6, 9, 0, 0, 0, 0, tz).Equal(c.StartOfServiceDay()))
	assert.Equal(t, "20230609", c.ServiceDate())
	assert.Equal(t, tz, c.Now().Location())
}

func TestParseOffsetTime(t *testing.T) {
	tz, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	c := clockAt(t, "America/Toronto", time.Date(2023, 3, 14, 8, 0, 0, 0, tz))

	for _, tc := range []struct {
		value    string
		expected time.Time
		err      bool
	}{
		{"08:15:00", time.Date(2023, 3, 14, 8, 15, 0, 0, tz), false},
		{"00:00:00", time.Date(2023, 3, 14, 0, 0, 0, 0, tz), false},
		{"23:59:59", time.Date(2023, 3, 14, 23, 59, 59, 0, tz), false},
		{"25:10:00", time.Date(2023, 3, 15, 1, 10, 0, 0, tz), false},
		{"8:05:07", time.Date(2023, 3, 14, 8, 5, 7, 0, tz), false},
		{"12:xx:00", time.Time{}, true},
		{"12:00", time.Time{}, true},
		{"12:00:00:00", time.Time{}, true},
		{"", time.Time{}, true},
		{"::", time.Time{}, true},
		{"-1:00:00", time.Time{}, true},
	} {
		t.Run(tc.value, func(t *testing.T) {
			got, err := c.ParseOffsetTime(tc.value)
			if tc.err {
				require.Error(t, err)
				var tpe *model.TimeParseError
				assert.True(t, errors.As(err, &tpe))
				assert.Equal(t, tc.value, tpe.Value)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.expected.Equal(got), "got %s", got)
		})
	}
}

func TestParseOffsetTimeNoWraparound(t *testing.T) {
	tz, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	// At 23:00 the service day began at today's midnight, and
	// 25:10:00 is 01:10 tomorrow, not 01:10 today.
	c := clockAt(t, "America/Toronto", time.Date(2023, 3, 14, 23, 0, 0, 0, tz))
	got, err := c.ParseOffsetTime("25:10:00")
	require.NoError(t, err)
	assert.True(t, time.Date(2023, 3, 15, 1, 10, 0, 0, tz).Equal(got))

	// At 00:30 the service day began yesterday, so the same
	// offset refers to 01:10 today.
	c = clockAt(t, "America/Toronto", time.Date(2023, 3, 15, 0, 30, 0, 0, tz))
	got, err = c.ParseOffsetTime("25:10:00")
	require.NoError(t, err)
	assert.True(t, time.Date(2023, 3, 15, 1, 10, 0, 0, tz).Equal(got))
}

func TestFormatOffset(t *testing.T) {
	for _, tc := range []struct {
		offset   time.Duration
		expected string
	}{
		{0, "00:00:00"},
		{8*time.Hour + 3*time.Minute, "08:03:00"},
		{25*time.Hour + 10*time.Minute + 5*time.Second, "25:10:05"},
		{time.Hour + 500*time.Millisecond, "01:00:00"},
	} {
		got, err := FormatOffset(tc.offset)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, got)

		back, err := ParseOffset(got)
		require.NoError(t, err)
		assert.Equal(t, tc.offset.Truncate(time.Second), back)
	}

	_, err := FormatOffset(-time.Second)
	assert.Error(t, err)
}

func TestNewInvalidTimezone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons")
	assert.Error(t, err)
}
