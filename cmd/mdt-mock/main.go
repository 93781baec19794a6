// ABOUTME: Entry point for mdt-mock, a scripted MDT backend for exercising mdtview without the real service.
// ABOUTME: Serves simulate/stream/report endpoints plus /metrics, shutting down cleanly on SIGINT/SIGTERM.
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

	"github.com/2389-research/mdtview/mock"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr string
		opts mock.Options
	)

	cmd := &cobra.Command{
		Use:           "mdt-mock",
		Short:         "Scripted MDT simulation backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), addr, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:8000", "Listen address")
	f.IntVar(&opts.Chunks, "chunks", 0, "Send the report as N chunks (0 sends it whole)")
	f.IntVar(&opts.DropAfter, "drop-after", 0, "Drop the first stream connection of each run after N events")
	f.BoolVar(&opts.NoStreamReport, "no-stream-report", false, "Leave the report out of the stream")
	f.BoolVar(&opts.PrimaryMissing, "primary-missing", false, "Answer 404 on /api/report/")
	f.BoolVar(&opts.LatestMissing, "latest-missing", false, "Answer 404 on /api/latest-report/")
	f.DurationVar(&opts.EventDelay, "event-delay", 300*time.Millisecond, "Pause between stream events")
	return cmd
}

func serve(ctx context.Context, addr string, opts mock.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mock.NewServer(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "mdt-mock listening on %s\n", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
