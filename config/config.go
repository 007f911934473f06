/*
Package config loads the engine's settings from YAML and the environment.

PRIORITY:

	ENV > YAML > env-default tags. See loader.go.

SECTIONS:

	server     HTTP listener and timeouts
	database   driver (sqlite | postgres) and connection settings
	schedule   daily trigger cron expression and timezone
	reminders  retention and default contact-gap thresholds
	report     department fan-out limit
	log        level and format
	cors       reporting UI origins
*/
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Reminders RemindersConfig `yaml:"reminders"`
	Report    ReportConfig    `yaml:"report"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects and configures the datastore.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"             env:"DATABASE_DRIVER"             env-default:"sqlite"`
	SQLitePath      string        `yaml:"sqlite_path"        env:"DATABASE_SQLITE_PATH"        env-default:"liaison.db"`
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// ScheduleConfig controls the daily trigger.
type ScheduleConfig struct {
	Enabled    bool   `yaml:"enabled"      env:"SCHEDULE_ENABLED"      env-default:"true"`
	Cron       string `yaml:"cron"         env:"SCHEDULE_CRON"         env-default:"0 1 * * *"`
	Timezone   string `yaml:"timezone"     env:"SCHEDULE_TIMEZONE"     env-default:"Local"`
	RunOnStart bool   `yaml:"run_on_start" env:"SCHEDULE_RUN_ON_START" env-default:"true"`
}

// RemindersConfig holds generation settings.
type RemindersConfig struct {
	RetentionDays           int  `yaml:"system_log_retention_days" env:"REMINDERS_RETENTION_DAYS"         env-default:"7"`
	DefaultUrgentThreshold  int  `yaml:"default_urgent_threshold"  env:"REMINDERS_DEFAULT_URGENT"         env-default:"10"`
	DefaultSuggestThreshold int  `yaml:"default_suggest_threshold" env:"REMINDERS_DEFAULT_SUGGEST"        env-default:"7"`
	IncludeOrphans          bool `yaml:"include_orphans"           env:"REMINDERS_INCLUDE_ORPHANS"        env-default:"false"`
}

// ReportConfig holds report computation settings.
type ReportConfig struct {
	DepartmentConcurrency int `yaml:"department_concurrency" env:"REPORT_DEPARTMENT_CONCURRENCY" env-default:"4"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	AllowedMethods string `yaml:"allowed_methods" env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,OPTIONS"`
	AllowedHeaders string `yaml:"allowed_headers" env:"CORS_ALLOWED_HEADERS" env-default:"Accept,Content-Type,X-Request-ID"`
	MaxAge         int    `yaml:"max_age"         env:"CORS_MAX_AGE"         env-default:"300"`
}

// Origins splits AllowedOrigins on commas.
func (c CORSConfig) Origins() []string { return splitList(c.AllowedOrigins) }

// Methods splits AllowedMethods on commas.
func (c CORSConfig) Methods() []string { return splitList(c.AllowedMethods) }

// Headers splits AllowedHeaders on commas.
func (c CORSConfig) Headers() []string { return splitList(c.AllowedHeaders) }

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
