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

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/edgeup-ai/offline-router/pkg/client"
	"github.com/edgeup-ai/offline-router/pkg/config"
	"github.com/edgeup-ai/offline-router/pkg/logging"
	"github.com/edgeup-ai/offline-router/pkg/notify"
	"github.com/edgeup-ai/offline-router/pkg/router"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger("main")

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	originClient, err := client.New(cfg.Client())
	if err != nil {
		return fmt.Errorf("create origin client: %w", err)
	}

	routerCfg, err := cfg.Router()
	if err != nil {
		return err
	}

	hub := notify.NewHub()
	defer hub.Close()

	rt, err := router.New(routerCfg, storage, originClient,
		router.WithNotifier(hub),
		router.WithClients(hub),
	)
	if err != nil {
		return err
	}
	hub.Bind(rt)
	defer rt.Wait()

	// A failed install leaves the proxy serving with readiness down.
	if err := rt.Start(ctx); err != nil {
		logStartFailure(logger, err)
	}

	scheduler, err := startSyncScheduler(ctx, cfg.SyncSchedule, rt, logger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { <-scheduler.Stop().Done() }()
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newHandler(rt, hub, storage),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("origin", cfg.OriginURL).
			Str("storage", cfg.StorageBackend).
			Str("static", routerCfg.StaticName()).
			Str("dynamic", routerCfg.DynamicName()).
			Msg("Offline proxy listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info().Msg("Server stopped gracefully")
	return nil
}

// startSyncScheduler fires the background-sync event on schedule. An empty
// schedule disables it.
// logStartFailure logs an unreachable origin as a warning, since the proxy
// then serves offline fallbacks until the next start.
func logStartFailure(logger zerolog.Logger, err error) {
	if client.IsNetworkError(err) {
		logger.Warn().Err(err).Msg("Origin unreachable at start, serving offline fallbacks")
		return
	}
	logger.Error().Err(err).Msg("Router start failed")
}

func startSyncScheduler(ctx context.Context, schedule string, rt *router.Router, logger zerolog.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}

	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	_, err := c.AddFunc(schedule, func() {
		if _, err := rt.Sync(ctx, router.SyncTagBackground); err != nil {
			logger.Warn().Err(err).Msg("Scheduled background sync failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_SCHEDULE %q: %w", schedule, err)
	}

	c.Start()
	logger.Info().Str("schedule", schedule).Msg("Background sync scheduled")
	return c, nil
}
