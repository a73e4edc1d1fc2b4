package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/departures/config"
	"tidbyt.dev/departures/downloader"
	"tidbyt.dev/departures/model"
)

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"Authorization: Bearer abc", "X-Key:v:w"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"X-Key":         "v:w",
	}, headers)

	_, err = parseHeaders([]string{"nocolon"})
	assert.Error(t, err)
}

func TestMergeHeaders(t *testing.T) {
	merged, err := mergeHeaders(
		map[string]string{"A": "config", "B": "config"},
		[]string{"B: shared", "C: shared"},
		[]string{"C: specific"},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "config", "B": "shared", "C": "specific"}, merged)
}

func TestNewDownloader(t *testing.T) {
	cfg := config.Default()

	d, closer, err := newDownloader(cfg)
	require.NoError(t, err)
	defer closer()
	assert.IsType(t, &downloader.MemoryDownloader{}, d)

	cfg.Cache = config.CacheConfig{Driver: "sqlite", DSN: ":memory:"}
	d, closer, err = newDownloader(cfg)
	require.NoError(t, err)
	defer closer()
	assert.IsType(t, &downloader.SQLDownloader{}, d)
}

func TestFilterByName(t *testing.T) {
	stops := []*model.Stop{
		{ID: "1", Name: "King / Victoria"},
		{ID: "2", Name: "Charles Terminal"},
	}
	assert.Equal(t, stops, filterByName(stops, ""))
	filtered := filterByName(stops, "KING")
	require.Equal(t, 1, len(filtered))
	assert.Equal(t, "1", filtered[0].ID)
}
