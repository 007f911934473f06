// Command dailyrun executes the daily reminder batch once and exits. It is
// intended for deployments that trigger the batch from an external cron job
// instead of the in-process scheduler.
//
// By default it behaves like the scheduled trigger and skips a day that
// already completed; -force regenerates it like a manual run.
//
// Exit codes: 0 = success or skipped, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/warp/liaison-engine/app"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/config"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/logging"
)

func main() {
	date := flag.String("date", "", "run date YYYY-MM-DD (default: today in the configured timezone)")
	force := flag.Bool("force", false, "regenerate even if the day already completed")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// The in-process trigger never runs here.
	cfg.Schedule.Enabled = false

	logger := logging.New(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	engine, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer engine.Close()

	day := engine.Clock.Today()
	if *date != "" {
		day, err = calendar.ParseDate(*date)
		if err != nil {
			logger.Error("invalid -date", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	trigger := liaison.TriggerScheduled
	if *force {
		trigger = liaison.TriggerManual
	}

	result, err := engine.Runner.RunForDate(ctx, day, trigger)
	if err != nil {
		logger.Error("daily run failed",
			slog.String("date", day.String()),
			slog.String("error", err.Error()),
		)
		engine.Close()
		os.Exit(1)
	}

	logger.Info("daily run finished",
		slog.String("run_id", result.RunID),
		slog.String("date", day.String()),
		slog.Bool("skipped", result.Skipped),
		slog.Int("leaves_completed", result.LeavesCompleted),
		slog.Int("reminders_created", result.RemindersCreated),
		slog.Int("markers_pruned", result.MarkersPruned),
	)
}
