// Package app wires configuration into a running engine: datastore, clock,
// generator, batch runner, scheduler and report service. Both binaries in
// cmd/ build through here so they share one view of the configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/warp/liaison-engine/batch"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/config"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/reminder"
	"github.com/warp/liaison-engine/report"
	"github.com/warp/liaison-engine/store/postgres"
	"github.com/warp/liaison-engine/store/sqlite"
)

// Engine holds the wired components.
type Engine struct {
	Store     liaison.Store
	Clock     calendar.Clock
	Runner    *batch.Runner
	Scheduler *batch.Scheduler
	Reports   *report.Service

	closeStore func()
	closeOnce  sync.Once
}

// Build opens the datastore and wires every component from cfg. The caller
// owns the returned engine and must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	zone, err := cfg.Schedule.Zone()
	if err != nil {
		return nil, err
	}
	clock := calendar.NewClock(nil, zone)

	store, closeStore, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	gen := reminder.NewGenerator(reminder.Options{
		UrgentThreshold:  cfg.Reminders.DefaultUrgentThreshold,
		SuggestThreshold: cfg.Reminders.DefaultSuggestThreshold,
		IncludeOrphans:   cfg.Reminders.IncludeOrphans,
		Logger:           logger,
		Now:              clock.Now,
	})

	runner := batch.NewRunner(store, gen, clock, batch.RunnerOptions{
		RetentionDays: cfg.Reminders.RetentionDays,
		Logger:        logger,
	})

	scheduler, err := batch.NewScheduler(runner, batch.SchedulerConfig{
		Enabled:    cfg.Schedule.Enabled,
		Cron:       cfg.Schedule.Cron,
		RunOnStart: cfg.Schedule.RunOnStart,
	}, logger)
	if err != nil {
		closeStore()
		return nil, err
	}

	reports := report.NewService(store, clock, report.Options{
		Concurrency: cfg.Report.DepartmentConcurrency,
		Logger:      logger,
	})

	logger.Info("engine configured",
		slog.String("driver", cfg.Database.Driver),
		slog.String("timezone", zone.Location().String()),
		slog.String("cron", scheduler.Spec()),
		slog.Bool("schedule_enabled", cfg.Schedule.Enabled),
		slog.Int("retention_days", cfg.Reminders.RetentionDays),
	)

	return &Engine{
		Store:      store,
		Clock:      clock,
		Runner:     runner,
		Scheduler:  scheduler,
		Reports:    reports,
		closeStore: closeStore,
	}, nil
}

// Close stops the scheduler and releases the datastore. Safe to call twice.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.Scheduler.Stop()
		e.closeStore()
	})
}

// OpenStore opens the configured datastore. Postgres schemas are migrated
// with goose before use; SQLite migrates itself on open.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (liaison.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return postgres.New(pool), pool.Close, nil

	case config.DriverSQLite, "":
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
