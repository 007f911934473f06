package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/warp/liaison-engine/calendar"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Database.validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Schedule.validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if err := c.Reminders.validate(); err != nil {
		return fmt.Errorf("reminders: %w", err)
	}
	if c.Report.DepartmentConcurrency <= 0 {
		return fmt.Errorf("report: department_concurrency must be > 0 (got %d)", c.Report.DepartmentConcurrency)
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	switch d.Driver {
	case DriverSQLite:
		if d.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for driver %q", d.Driver)
		}
	case DriverPostgres:
		if d.DSN == "" {
			return fmt.Errorf("dsn is required for driver %q", d.Driver)
		}
	default:
		return fmt.Errorf("unknown driver %q (want %q or %q)", d.Driver, DriverSQLite, DriverPostgres)
	}
	return nil
}

func (s *ScheduleConfig) validate() error {
	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return fmt.Errorf("cron %q: %w", s.Cron, err)
	}
	if _, err := calendar.LoadZone(s.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

func (r *RemindersConfig) validate() error {
	if r.RetentionDays <= 0 {
		return fmt.Errorf("system_log_retention_days must be > 0 (got %d)", r.RetentionDays)
	}
	if r.DefaultUrgentThreshold <= 0 {
		return fmt.Errorf("default_urgent_threshold must be > 0 (got %d)", r.DefaultUrgentThreshold)
	}
	if r.DefaultSuggestThreshold <= 0 {
		return fmt.Errorf("default_suggest_threshold must be > 0 (got %d)", r.DefaultSuggestThreshold)
	}
	if r.DefaultSuggestThreshold > r.DefaultUrgentThreshold {
		return fmt.Errorf("default_suggest_threshold (%d) must not exceed default_urgent_threshold (%d)",
			r.DefaultSuggestThreshold, r.DefaultUrgentThreshold)
	}
	return nil
}

// Zone resolves the configured schedule timezone.
func (s ScheduleConfig) Zone() (calendar.Zone, error) {
	return calendar.LoadZone(s.Timezone)
}
