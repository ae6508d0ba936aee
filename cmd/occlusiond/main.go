// Command occlusiond serves visibility-check lookups over HTTP, reloading
// its dataset periodically from a file or URL source.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mwangi/occlusion/client"
	"github.com/mwangi/occlusion/config"
	"github.com/mwangi/occlusion/httpapi"
	"github.com/mwangi/occlusion/index"
	"github.com/mwangi/occlusion/loader"
	"github.com/mwangi/occlusion/scheduler"
	"github.com/mwangi/occlusion/server"
	"github.com/mwangi/occlusion/store"
	"golang.org/x/sys/unix"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	opts, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger := newLogger(opts.JSONLogs)

	// config.Variant and index.Variant share the same four string values
	// (hashmap|sorted|hybrid|stratified); config does not import index, so
	// that it builds and tests without the index implementation, and the
	// boundary between configuration and the index package is this one
	// conversion.
	variant := index.Variant(opts.Variant)

	httpClient := client.UnsafeClient(logger, opts.HTTPTimeout)
	ld := loader.New(httpClient, variant)
	src := loader.ParseDataSource(opts.DataSource)

	ctx := context.Background()
	initial, err := ld.Load(ctx, src, loader.SourceMetadata{})
	if err != nil {
		return fmt.Errorf("occlusiond: startup load failed: %w", err)
	}
	if !initial.Changed {
		// An unconditional startup fetch (empty old metadata) is always
		// "changed" per HasChanged, so this would only trip if a loader
		// implementation disagreed with that contract.
		return fmt.Errorf("occlusiond: startup load reported no data")
	}

	st := store.New(initial.Index)
	logger.Info("occlusiond: startup load complete", "entries", st.Len(), "variant", variant)

	sched := scheduler.New(ld, st, initial.Metadata, scheduler.Config{
		Source:        src,
		Variant:       variant,
		Interval:      opts.ReloadInterval,
		MaxFailures:   opts.MaxFailures,
		OnMaxFailures: opts.OnMaxFailures,
		Logger:        logger,
	})

	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()

	schedErr := make(chan error, 1)
	go func() { schedErr <- sched.Run(schedCtx) }()

	mux := httpapi.NewMux(st, logger, sched)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Run(mux, server.Opts{ListenAddr: opts.ListenAddr, Logger: logger}) }()

	select {
	case err := <-schedErr:
		cancelSched()
		if err != nil {
			// The scheduler's terminal shutdown policy fired. Ask the HTTP
			// server to drain and stop the same way an operator's SIGTERM
			// would, then report the scheduler's error so main exits
			// non-zero.
			logger.Error("occlusiond: scheduler terminated, shutting down", "err", err)
			_ = unix.Kill(unix.Getpid(), unix.SIGTERM)
			<-serverErr
			return err
		}
		return <-serverErr
	case err := <-serverErr:
		cancelSched()
		<-schedErr
		return err
	}
}

func newLogger(jsonLogs bool) *slog.Logger {
	if jsonLogs {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
