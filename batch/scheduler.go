/*
scheduler.go - Daily batch trigger

PURPOSE:

	Fires Runner.Run once per day on a cron expression evaluated in the
	configured timezone, and catches up on startup when the process was down
	at trigger time.

DESIGN:
  - robfig/cron drives the trigger; the schedule is explicit and built in
    main, never global
  - Scheduled and startup triggers skip a day that already has its
    completion marker, so overlapping triggers are harmless
  - Manual runs (RunNow) always regenerate

CONFIGURATION:
  - Cron:       standard 5-field expression (default "0 1 * * *")
  - RunOnStart: catch up at startup if today's trigger time has passed
  - Enabled:    whether the cron trigger is registered at all

USAGE:

	scheduler, err := batch.NewScheduler(runner, batch.SchedulerConfig{Cron: "0 1 * * *"}, log)
	scheduler.Start(ctx)
	// ... later
	scheduler.Stop()

SEE ALSO:
  - runner.go: what a run does
  - api/handlers.go: manual trigger endpoint (TriggerRun)
*/
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/liaison-engine/liaison"
)

// DefaultCron fires the batch at 01:00 every day.
const DefaultCron = "0 1 * * *"

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Enabled    bool
	Cron       string
	RunOnStart bool
}

// Scheduler triggers the daily batch.
type Scheduler struct {
	Runner     *Runner
	Enabled    bool
	RunOnStart bool

	spec     string
	schedule cron.Schedule
	cron     *cron.Cron
	log      *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	started bool
	wg      sync.WaitGroup
}

// NewScheduler parses the cron expression and prepares a stopped scheduler.
func NewScheduler(runner *Runner, cfg SchedulerConfig, logger *slog.Logger) (*Scheduler, error) {
	spec := cfg.Cron
	if spec == "" {
		spec = DefaultCron
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	s := &Scheduler{
		Runner:     runner,
		Enabled:    cfg.Enabled,
		RunOnStart: cfg.RunOnStart,
		spec:       spec,
		schedule:   schedule,
		log:        logger,
		ctx:        context.Background(),
	}
	s.cron = cron.New(
		cron.WithLocation(runner.Clock.Zone().Location()),
		cron.WithLogger(cronLogger{log: logger}),
		cron.WithChain(cron.Recover(cronLogger{log: logger})),
	)
	if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
		return nil, fmt.Errorf("register cron %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing the daily trigger. Cancelling ctx stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("scheduler disabled, not starting")
		return
	}
	if s.started {
		return
	}
	s.started = true
	s.ctx = ctx

	if s.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, _, err := s.CatchUp(ctx); err != nil {
				s.log.Error("startup catch-up failed", "error", err)
			}
		}()
	}

	s.cron.Start()
	s.log.Info("scheduler started", "cron", s.spec, "zone", s.Runner.Clock.Zone().Location().String(),
		"next_run", s.NextRun())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the trigger and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// fire is the cron job.
func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.Runner.Run(ctx, liaison.TriggerScheduled); err != nil {
		if errors.Is(err, liaison.ErrRunInProgress) {
			s.log.Warn("scheduled run skipped, another run is in progress")
			return
		}
		s.log.Error("scheduled run failed", "error", err)
	}
}

// CatchUp runs today's batch when today's trigger time has already passed
// and no completion marker exists. The bool reports whether a run was attempted.
func (s *Scheduler) CatchUp(ctx context.Context) (RunResult, bool, error) {
	clock := s.Runner.Clock
	zone := clock.Zone()
	today := clock.Today()
	now := clock.Now().In(zone.Location())

	first := s.schedule.Next(zone.StartOf(today).Add(-time.Second))
	if first.After(now) || !zone.DateOf(first).Equal(today) {
		return RunResult{}, false, nil
	}

	done, err := s.Runner.Completed(ctx, today)
	if err != nil {
		return RunResult{}, false, fmt.Errorf("check completion marker: %w", err)
	}
	if done {
		return RunResult{}, false, nil
	}

	s.log.Info("catching up missed daily run", "date", today.String(), "scheduled_at", first)
	result, err := s.Runner.Run(ctx, liaison.TriggerStartup)
	return result, true, err
}

// RunNow triggers a manual run immediately.
func (s *Scheduler) RunNow(ctx context.Context) (RunResult, error) {
	return s.Runner.TriggerManualRun(ctx)
}

// NextRun returns the next scheduled trigger after the runner's clock.
func (s *Scheduler) NextRun() time.Time {
	zone := s.Runner.Clock.Zone()
	return s.schedule.Next(s.Runner.Clock.Now().In(zone.Location()))
}

// Spec returns the cron expression.
func (s *Scheduler) Spec() string {
	return s.spec
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
