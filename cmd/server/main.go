/*
main.go - Application entry point

PURPOSE:

	Starts the liaison reminder engine: HTTP API, daily batch scheduler and
	startup catch-up. Handles configuration, dependency injection, and
	graceful shutdown.

STARTUP SEQUENCE:
 1. Load configuration (config.yaml / CONFIG_PATH + environment)
 2. Initialize slog logger
 3. Open datastore (SQLite, or Postgres with goose migrations)
 4. Wire generator, runner, scheduler and report service
 5. Start scheduler (catch-up run if today's trigger was missed)
 6. Start HTTP server

CONFIGURATION:

	See config/config.go. Common overrides:
	  SERVER_PORT=8080
	  DATABASE_DRIVER=postgres DATABASE_DSN=postgres://...
	  SCHEDULE_CRON="0 1 * * *" SCHEDULE_TIMEZONE=Asia/Tokyo
	  LOG_LEVEL=debug LOG_FORMAT=text

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM:
	1. Stop accepting new connections
	2. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
	3. Stop the scheduler, waiting for a running batch
	4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - app/app.go: Component wiring
  - cmd/dailyrun: one-shot batch for external schedulers
*/
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/liaison-engine/api"
	"github.com/warp/liaison-engine/app"
	"github.com/warp/liaison-engine/config"
	"github.com/warp/liaison-engine/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(cfg.Log)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	engine.Scheduler.Start(ctx)

	handler := api.NewHandler(engine.Store, engine.Runner, engine.Scheduler, engine.Reports, engine.Clock)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, cfg.CORS, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
