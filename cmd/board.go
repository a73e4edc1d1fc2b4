package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tidbyt.dev/departures/render"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Runs a single refresh and prints the boards",
	Args:  cobra.NoArgs,
	RunE:  board,
}

var asJSON bool

func init() {
	boardCmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Print boards as JSON")
	rootCmd.AddCommand(boardCmd)
}

func board(cmd *cobra.Command, args []string) error {
	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.close()

	err = s.scheduler.Refresh(cmd.Context())
	if err != nil {
		return err
	}

	snap := s.scheduler.Snapshot()

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	now := s.clock.Now()
	fmt.Println(render.Clock(now))
	fmt.Println()
	fmt.Println(render.Boards(snap.Boards, now, render.Options{
		HorizonMinutes:  s.cfg.HorizonMinutes,
		CriticalMinutes: s.cfg.CriticalMinutes,
	}))

	return nil
}
