package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/duel/internal/cache"
	"github.com/jason-s-yu/duel/internal/database"
	"github.com/jason-s-yu/duel/internal/historian"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagSweep time.Duration

var historianCmd = &cobra.Command{
	Use:   "historian",
	Short: "Persist room history from Redis into Postgres",
	Long: `Pop room events from the Redis history list and write them to Postgres
in batches. Creates the room_events and matches tables when missing.
Matches with no recorded event for historian.inactivity_sec are marked abandoned.

Requires database.url (or DATABASE_URL).`,
	RunE: runHistorian,
}

func init() {
	historianCmd.Flags().DurationVar(&flagSweep, "sweep", time.Minute, "How often to look for inactive matches")
}

func runHistorian(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("historian needs database.url or DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	svc := historian.New(rdb, historian.PostgresSink{Pool: pool}, historian.Options{
		Queue:         cfg.Redis.Queue,
		BatchSize:     cfg.Historian.BatchSize,
		FlushInterval: cfg.Historian.FlushInterval(),
		Inactivity:    cfg.Historian.Inactivity(),
		SweepInterval: flagSweep,
		Logger:        logrus.NewEntry(logger).WithField("component", "historian"),
	})
	svc.Run(ctx)
	logger.Info("historian shutdown complete")
	return nil
}
