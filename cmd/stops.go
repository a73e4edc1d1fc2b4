package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tidbyt.dev/departures/model"
)

var stopsCmd = &cobra.Command{
	Use:   "stops [lat lng] [limit]",
	Short: "Lists stops in the static feed, by name or near a location",
	Args:  cobra.RangeArgs(0, 3),
	RunE:  stops,
}

var nameFilter string

func init() {
	stopsCmd.Flags().StringVarP(&nameFilter, "name", "n", "", "Only stops whose name contains this")
	rootCmd.AddCommand(stopsCmd)
}

func stops(cmd *cobra.Command, args []string) error {
	var lat, lng float64
	var limit int
	var err error

	gotLocation := false
	if len(args) == 1 {
		return fmt.Errorf("missing lng")
	}
	if len(args) >= 2 {
		gotLocation = true
		lat, err = strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid lat: %w", err)
		}
		lng, err = strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid lng: %w", err)
		}
	}
	if len(args) == 3 {
		limit, err = strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid limit: %w", err)
		}
		if limit < 0 {
			return fmt.Errorf("limit must be >= 0")
		}
	}

	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.close()

	static, err := s.loader.LoadStatic(cmd.Context())
	if err != nil {
		return err
	}

	var result []*model.Stop
	if gotLocation {
		result = filterByName(static.NearbyStops(lat, lng, 0), nameFilter)
		if limit > 0 && len(result) > limit {
			result = result[:limit]
		}
	} else {
		result = static.SearchStops(nameFilter)
	}

	for _, stop := range result {
		fmt.Printf("%s: %s\n", stop.ID, stop.Name)
	}

	return nil
}

func filterByName(stops []*model.Stop, name string) []*model.Stop {
	if name == "" {
		return stops
	}
	name = strings.ToLower(name)
	filtered := []*model.Stop{}
	for _, stop := range stops {
		if strings.Contains(strings.ToLower(stop.Name), name) {
			filtered = append(filtered, stop)
		}
	}
	return filtered
}
