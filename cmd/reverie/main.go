// Command reverie runs the content-change distribution and search
// service: it watches the content directories, streams change events
// to clients and keeps the full-text index in sync.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reveriehq/reverie/internal/config"
	"github.com/reveriehq/reverie/internal/events"
	"github.com/reveriehq/reverie/internal/logger"
	"github.com/reveriehq/reverie/internal/search"
	"github.com/reveriehq/reverie/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:          "reverie",
		Short:        "Real-time content event stream and search service",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			logger.SetVerbose(verbose)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

// serve wires the pipeline and blocks until SIGINT or SIGTERM.
func serve(cfg config.Config) error {
	index, err := search.NewIndex(cfg.ThoughtsDir, cfg.DreamsDir)
	if err != nil {
		return err
	}
	defer index.Close()

	// Startup rebuild is the only full reconciliation; afterwards the
	// subscriber keeps the index in sync incrementally.
	if _, err := index.Rebuild(); err != nil {
		return err
	}

	bus := events.NewBus(cfg.QueueSize, cfg.MaxSubscribers)
	normalizer := events.NewNormalizer(cfg.ThoughtsDir, cfg.DreamsDir)
	hub := events.NewHub(bus, normalizer, cfg.HeartbeatInterval())

	watcher := events.NewWatcher(cfg.WatchPaths(), cfg.DebounceWindow(), cfg.HandoffTimeout())
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go hub.Run(ctx, watcher.Events())

	subscriber := search.NewSubscriber(bus, index, cfg.ThoughtsDir, cfg.DreamsDir)
	go func() {
		if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("search subscriber: %v", err)
		}
	}()

	srv := server.New(cfg, hub, bus, index)
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown: %v", err)
	}

	return nil
}
