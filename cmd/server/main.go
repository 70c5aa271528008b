package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baxromumarov/econ-indicators/internal/api"
	"github.com/baxromumarov/econ-indicators/internal/app"
	"github.com/baxromumarov/econ-indicators/internal/config"
	"github.com/baxromumarov/econ-indicators/internal/core"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger()
	slog.SetDefault(logger)

	dbStore, err := app.OpenStore(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	if dbStore != nil {
		defer dbStore.Close()
	}

	svc, err := app.NewService(cfg, dbStore, logger)
	if err != nil {
		slog.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background loops need somewhere to persist.
	var snapshots api.SnapshotLister
	if dbStore != nil {
		snapshots = dbStore
		if cfg.Watchlist.Enabled {
			refresh := core.NewRefreshService(svc, dbStore, app.Watchlist(cfg.Watchlist), cfg.Watchlist.Interval(), logger)
			refresh.Start(ctx)
		}
		scheduler := core.NewSchedulerService(dbStore, cfg.Watchlist.Retention(), logger)
		scheduler.Start(ctx)
	} else if cfg.Watchlist.Enabled {
		slog.Warn("watchlist enabled without a database, refresh disabled")
	}

	srv := api.NewServer(svc, snapshots)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server", "port", cfg.Server.Port, "sources", svc.Sources())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
