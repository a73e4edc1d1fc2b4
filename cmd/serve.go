package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/departures/httpapi"
	"tidbyt.dev/departures/messages"
	"tidbyt.dev/departures/render"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Refreshes boards periodically and serves them over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var (
	renderTerminal bool
	messageRows    int
)

func init() {
	serveCmd.Flags().BoolVarP(&renderTerminal, "render", "r", false, "Draw boards on stdout after each refresh")
	serveCmd.Flags().IntVarP(&messageRows, "message-rows", "m", 10, "Messages shown below the boards")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.logger.Info("starting",
		"static_url", s.cfg.Static.URL,
		"realtime_url", s.cfg.Realtime.URL,
		"stops", len(s.cfg.StopConfigs()),
		"horizon", s.cfg.Horizon(),
		"refresh", s.cfg.RefreshPeriod(),
		"http_addr", s.cfg.HTTP.Addr,
	)

	msgs := messages.NewBoard()
	srv := httpapi.NewServer(s.scheduler, msgs, s.logger).HTTPServer(s.cfg.HTTP.Addr)

	if renderTerminal {
		updates, unsubscribe := s.scheduler.Subscribe()
		defer unsubscribe()
		go func() {
			for snap := range updates {
				now := s.clock.Now()
				fmt.Print("\033[H\033[2J")
				fmt.Println(render.Clock(now))
				fmt.Println()
				fmt.Println(render.Boards(snap.Boards, now, render.Options{
					HorizonMinutes:  s.cfg.HorizonMinutes,
					CriticalMinutes: s.cfg.CriticalMinutes,
				}))
				if m := render.Messages(msgs.Recent(messageRows), messageRows+1, render.Options{}); m != "" {
					fmt.Println()
					fmt.Println(m)
				}
			}
		}()
	}

	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- s.scheduler.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http listening", "addr", s.cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		<-schedulerDone
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("http shutting down")
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-schedulerDone
}
