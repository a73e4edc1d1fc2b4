package snapshot

import (
	"math"
	"sort"
	"strings"

	"tidbyt.dev/departures/model"
)

// Great circle distance in km.
func HaversineDistance(aLat, aLon, bLat, bLon float64) float64 {
	const earthRadiusKm = 6371

	aLatRad := aLat * math.Pi / 180
	aLonRad := aLon * math.Pi / 180
	bLatRad := bLat * math.Pi / 180
	bLonRad := bLon * math.Pi / 180
	deltaLat := aLatRad - bLatRad
	deltaLon := aLonRad - bLonRad

	a := math.Cos(aLatRad)*math.Cos(bLatRad)*math.Pow(math.Sin(deltaLon/2), 2) + math.Pow(math.Sin(deltaLat/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return c * earthRadiusKm
}

// Stops ordered by distance from (lat, lon), closest first. A limit
// of 0 or less returns all stops.
func (s *Static) NearbyStops(lat float64, lon float64, limit int) []*model.Stop {
	stops := make([]*model.Stop, 0, len(s.stopByID))
	for _, stop := range s.Stops {
		if s.stopByID[stop.ID] == stop {
			stops = append(stops, stop)
		}
	}

	sort.SliceStable(stops, func(i, j int) bool {
		return HaversineDistance(lat, lon, stops[i].Lat, stops[i].Lon) <
			HaversineDistance(lat, lon, stops[j].Lat, stops[j].Lon)
	})

	if limit > 0 && len(stops) > limit {
		stops = stops[:limit]
	}

	return stops
}

// Stops whose name contains the query, case insensitively, sorted
// by name.
func (s *Static) SearchStops(query string) []*model.Stop {
	query = strings.ToLower(query)

	stops := []*model.Stop{}
	for _, stop := range s.Stops {
		if s.stopByID[stop.ID] != stop {
			continue
		}
		if strings.Contains(strings.ToLower(stop.Name), query) {
			stops = append(stops, stop)
		}
	}

	sort.SliceStable(stops, func(i, j int) bool {
		return stops[i].Name < stops[j].Name
	})

	return stops
}
