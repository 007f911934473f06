/*
runner.go - Daily batch execution

PURPOSE:

	Runs one calendar day of reminder maintenance as a single unit of work:

	  1. Ledger check    skip when the day already has its completion marker
	                     (scheduled and startup triggers only)
	  2. Lifecycle       active leave periods that ended before today -> completed
	  3. Regenerate      delete the day's reminders, evaluate every rule, insert
	  4. Mark + prune    upsert the system marker, drop markers past retention

	Steps 1-4 run inside one store transaction. Any failure rolls everything
	back, so a failed day has no marker and the next trigger retries it.

LOCKING:

	An in-process mutex rejects a second trigger with ErrRunInProgress while a
	run is executing. Across processes the store's AcquireRunLock serializes
	runs (Postgres advisory lock; SQLite has a single writer connection).

AUDIT:

	Every attempt is recorded in batch_runs (running -> completed / skipped /
	failed). The audit row is written outside the run transaction so failures
	stay visible after rollback.

SEE ALSO:
  - scheduler.go: cron trigger and startup catch-up
  - reminder/generator.go: the rules themselves
*/
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/logging"
	"github.com/warp/liaison-engine/reminder"
)

// DefaultRetentionDays is how long completion markers are kept.
const DefaultRetentionDays = 7

// RunnerOptions configures a Runner. Zero values fall back to defaults.
type RunnerOptions struct {
	RetentionDays int
	Logger        *slog.Logger
	NewRunID      func() string
}

// Runner executes the daily batch against a store.
type Runner struct {
	Store     liaison.Store
	Generator *reminder.Generator
	Clock     calendar.Clock

	retentionDays int
	log           *slog.Logger
	newRunID      func() string

	mu sync.Mutex
}

// NewRunner creates a runner.
func NewRunner(store liaison.Store, gen *reminder.Generator, clock calendar.Clock, opts RunnerOptions) *Runner {
	r := &Runner{
		Store:         store,
		Generator:     gen,
		Clock:         clock,
		retentionDays: opts.RetentionDays,
		log:           opts.Logger,
		newRunID:      opts.NewRunID,
	}
	if r.retentionDays <= 0 {
		r.retentionDays = DefaultRetentionDays
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	r.log = r.log.With("component", "batch")
	if r.newRunID == nil {
		r.newRunID = uuid.NewString
	}
	return r
}

// RunResult summarizes one batch attempt.
type RunResult struct {
	RunID            string                       `json:"run_id"`
	Date             calendar.Date                `json:"date"`
	Trigger          liaison.Trigger              `json:"trigger"`
	Skipped          bool                         `json:"skipped"`
	LeavesCompleted  int                          `json:"leaves_completed"`
	RemindersDeleted int                          `json:"reminders_deleted"`
	RemindersCreated int                          `json:"reminders_created"`
	ByType           map[liaison.ReminderType]int `json:"by_type"`
	SkippedOrphans   int                          `json:"skipped_orphans"`
	MarkersPruned    int                          `json:"markers_pruned"`
	Errors           []string                     `json:"errors"`
}

// TriggerManualRun regenerates today's reminders unconditionally.
func (r *Runner) TriggerManualRun(ctx context.Context) (RunResult, error) {
	return r.Run(ctx, liaison.TriggerManual)
}

// Run executes the batch for today according to the runner's clock.
func (r *Runner) Run(ctx context.Context, trigger liaison.Trigger) (RunResult, error) {
	return r.RunForDate(ctx, r.Clock.Today(), trigger)
}

// RunForDate executes the batch for day. Scheduled and startup triggers skip
// a day that already completed; manual triggers always regenerate. Days after
// today are rejected with liaison.ErrFutureRunDate and leave no audit row.
func (r *Runner) RunForDate(ctx context.Context, day calendar.Date, trigger liaison.Trigger) (RunResult, error) {
	if today := r.Clock.Today(); day.After(today) {
		return RunResult{}, fmt.Errorf("batch run for %s (today is %s): %w", day, today, liaison.ErrFutureRunDate)
	}

	if !r.mu.TryLock() {
		return RunResult{}, liaison.ErrRunInProgress
	}
	defer r.mu.Unlock()

	result := RunResult{
		RunID:   r.newRunID(),
		Date:    day,
		Trigger: trigger,
		ByType:  make(map[liaison.ReminderType]int),
	}
	log := r.log.With("run_id", result.RunID, "date", day.String(), "trigger", string(trigger))
	ctx = logging.WithContext(ctx, log)

	run := liaison.BatchRun{
		ID:        result.RunID,
		RunDate:   day,
		Trigger:   trigger,
		Status:    liaison.RunRunning,
		StartedAt: r.Clock.Now(),
	}
	if err := r.Store.SaveBatchRun(ctx, run); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, fmt.Errorf("record batch run: %w", err)
	}

	log.Info("batch run started")

	err := r.Store.WithTx(ctx, func(tx liaison.Store) error {
		if err := tx.AcquireRunLock(ctx); err != nil {
			return err
		}

		if trigger != liaison.TriggerManual {
			done, err := tx.HasCompletionMarker(ctx, day)
			if err != nil {
				return fmt.Errorf("check completion marker: %w", err)
			}
			if done {
				result.Skipped = true
				return nil
			}
		}

		return r.execute(ctx, tx, day, &result)
	})

	completedAt := r.Clock.Now()
	run.CompletedAt = &completedAt
	run.LeavesCompleted = result.LeavesCompleted
	run.RemindersCreated = result.RemindersCreated

	switch {
	case err != nil:
		result.Errors = append(result.Errors, err.Error())
		run.Status = liaison.RunFailed
		run.Error = err.Error()
		// rolled back
		result.LeavesCompleted, result.RemindersCreated = 0, 0
		run.LeavesCompleted, run.RemindersCreated = 0, 0
		log.Error("batch run failed", "error", err)
	case result.Skipped:
		run.Status = liaison.RunSkipped
		log.Info("batch run skipped, day already completed")
	default:
		run.Status = liaison.RunCompleted
		log.Info("batch run completed",
			"leaves_completed", result.LeavesCompleted,
			"reminders_created", result.RemindersCreated,
			"markers_pruned", result.MarkersPruned,
			"duration", elapsed(run.StartedAt, completedAt),
		)
	}

	if saveErr := r.Store.SaveBatchRun(ctx, run); saveErr != nil {
		log.Error("failed to record batch run outcome", "error", saveErr)
	}

	if err != nil {
		return result, fmt.Errorf("batch run for %s: %w", day, err)
	}
	return result, nil
}

// execute runs the lifecycle, generation and marker steps against tx.
func (r *Runner) execute(ctx context.Context, tx liaison.Store, day calendar.Date, result *RunResult) error {
	// Lifecycle
	endBefore := day
	candidates, err := tx.ListLeavePeriods(ctx, liaison.LeaveFilter{
		Statuses:  []liaison.LeaveStatus{liaison.LeaveActive},
		EndBefore: &endBefore,
	})
	if err != nil {
		return fmt.Errorf("list expired leave periods: %w", err)
	}
	completed, err := tx.MarkLeaveCompleted(ctx, reminder.ExpiredLeaves(candidates, day), day)
	if err != nil {
		return fmt.Errorf("complete leave periods: %w", err)
	}
	result.LeavesCompleted = completed

	// Regenerate
	deleted, err := tx.DeleteRemindersForDate(ctx, day, liaison.ReminderSystem)
	if err != nil {
		return fmt.Errorf("delete reminders: %w", err)
	}
	result.RemindersDeleted = deleted

	input, err := r.loadInput(ctx, tx, day)
	if err != nil {
		return err
	}

	out := r.Generator.Generate(input)
	if err := tx.InsertReminders(ctx, out.Reminders); err != nil {
		return fmt.Errorf("insert reminders: %w", err)
	}
	result.RemindersCreated = len(out.Reminders)
	result.SkippedOrphans = out.SkippedOrphans
	for t, n := range out.ByType {
		result.ByType[t] = n
	}

	// Mark + prune
	now := r.Clock.Now()
	marker := liaison.Reminder{
		ID:        liaison.SystemReminderID(day),
		Type:      liaison.ReminderSystem,
		Date:      day,
		Priority:  liaison.PriorityLow,
		Message:   fmt.Sprintf("daily run completed: %d reminders, %d leave periods completed", result.RemindersCreated, result.LeavesCompleted),
		IsHandled: true,
		HandledAt: &now,
		CreatedAt: now,
	}
	if err := tx.UpsertReminder(ctx, marker); err != nil {
		return fmt.Errorf("write completion marker: %w", err)
	}

	pruned, err := tx.DeleteSystemRemindersOlderThan(ctx, day.AddDays(-r.retentionDays))
	if err != nil {
		return fmt.Errorf("prune completion markers: %w", err)
	}
	result.MarkersPruned = pruned

	return nil
}

// loadInput reads the day's view of the directory after the lifecycle update.
func (r *Runner) loadInput(ctx context.Context, tx liaison.Store, day calendar.Date) (reminder.GenerateInput, error) {
	zone := r.Clock.Zone()

	persons, err := tx.ListPersons(ctx, liaison.PersonFilter{})
	if err != nil {
		return reminder.GenerateInput{}, fmt.Errorf("list persons: %w", err)
	}

	active, err := tx.ListActiveLeavePeriods(ctx, day)
	if err != nil {
		return reminder.GenerateInput{}, fmt.Errorf("list active leave periods: %w", err)
	}

	until := zone.StartOf(day.AddDays(1))
	contacts, err := tx.ListContactEvents(ctx, liaison.ContactFilter{Until: &until})
	if err != nil {
		return reminder.GenerateInput{}, fmt.Errorf("list contact events: %w", err)
	}

	settings := make(map[liaison.UserID]liaison.ReminderSettings)
	looked := make(map[liaison.UserID]bool)
	for _, p := range persons {
		if p.CreatedBy == "" || looked[p.CreatedBy] {
			continue
		}
		looked[p.CreatedBy] = true
		s, err := tx.GetReminderSettings(ctx, p.CreatedBy)
		if err != nil {
			return reminder.GenerateInput{}, fmt.Errorf("reminder settings for %s: %w", p.CreatedBy, err)
		}
		if s != nil {
			settings[p.CreatedBy] = *s
		}
	}

	return reminder.GenerateInput{
		Today:    day,
		Zone:     zone,
		Persons:  persons,
		Leaves:   liaison.LeavesByPerson(active),
		Contacts: liaison.ContactsByPerson(contacts),
		Settings: settings,
	}, nil
}

// LastRuns returns the most recent batch runs, newest first.
func (r *Runner) LastRuns(ctx context.Context, limit int) ([]liaison.BatchRun, error) {
	return r.Store.ListBatchRuns(ctx, limit)
}

// Completed reports whether day already has its completion marker.
func (r *Runner) Completed(ctx context.Context, day calendar.Date) (bool, error) {
	return r.Store.HasCompletionMarker(ctx, day)
}

func elapsed(start time.Time, now time.Time) time.Duration {
	return now.Sub(start).Round(time.Millisecond)
}
