package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/duel/internal/cache"
	"github.com/jason-s-yu/duel/internal/handlers"
	"github.com/jason-s-yu/duel/internal/middleware"
	"github.com/jason-s-yu/duel/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket server",
	Long: `Run the HTTP server that accepts players on /play/ws.

Endpoints:
  /play/ws  - websocket, subprotocol "duel"
  /rooms    - JSON snapshot of the queue and active rooms
  /ping     - liveness probe

When server.record_history is set, room lifecycle events are pushed to
the configured Redis list for "duel historian" to persist.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address, overrides server.addr")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := handlers.NewHub(logrus.NewEntry(logger).WithField("component", "hub"))

	var recorder session.Recorder
	if cfg.Server.RecordHistory {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		pub := cache.NewPublisher(rdb, cfg.Redis.Queue, 0, logrus.NewEntry(logger).WithField("component", "publisher"))
		defer pub.Close()
		recorder = pub
		logger.Infof("recording room history to redis list %s", cfg.Redis.Queue)
	}

	store := session.NewStore(session.Options{
		Notifier: hub,
		Recorder: recorder,
		Logger:   logrus.NewEntry(logger).WithField("component", "session"),
	})
	dispatcher := session.NewDispatcher(store, cfg.Server.EventBuffer, logrus.NewEntry(logger).WithField("component", "dispatcher"))

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	go dispatcher.Run(dispatchCtx)

	mux := http.NewServeMux()
	mux.Handle("/play/ws", middleware.LogMiddleware(logger)(handlers.PlayWSHandler(logger, hub, dispatcher, handlers.WSOptions{
		OriginPatterns: cfg.Server.AllowedOrigins,
		OutBuffer:      cfg.Server.OutBuffer,
	})))
	mux.Handle("/rooms", middleware.LogMiddleware(logger)(handlers.StatsHandler(logger, hub, dispatcher)))
	mux.HandleFunc("/ping", handlers.PingHandler)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		stopDispatch()
		<-dispatcher.Done()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown incomplete")
	}

	// hijacked websockets are not tracked by Shutdown. Their disconnects still
	// need the dispatcher, so it stops only after the hub is empty.
	if err := hub.Drain(shutdownCtx); err != nil {
		logger.WithError(err).Warnf("%d connections still open at shutdown", hub.Count())
	}
	stopDispatch()
	<-dispatcher.Done()
	return nil
}
