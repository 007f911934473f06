/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication. Domain types stay free
	of presentation concerns; dates are rendered as YYYY-MM-DD and instants as
	RFC 3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:

	Batch:
	  TriggerRunRequest, RunResultDTO, BatchRunDTO, ScheduleDTO

	Reminders:
	  ReminderDTO

	Reports:
	  HealthScoreResponse, RankingResponse, TrendsResponse, DepartmentErrorDTO

	Scenarios:
	  ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/liaison-engine/batch"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/report"
	"github.com/warp/liaison-engine/scoring"
)

// =============================================================================
// BATCH
// =============================================================================

// TriggerRunRequest is the optional body of POST /api/admin/runs.
type TriggerRunRequest struct {
	Date string `json:"date,omitempty"`
}

// RunResultDTO is returned after a manual trigger.
type RunResultDTO struct {
	batch.RunResult
}

// BatchRunDTO represents one audit row.
type BatchRunDTO struct {
	ID               string `json:"id"`
	RunDate          string `json:"run_date"`
	Trigger          string `json:"trigger"`
	Status           string `json:"status"`
	LeavesCompleted  int    `json:"leaves_completed"`
	RemindersCreated int    `json:"reminders_created"`
	Error            string `json:"error,omitempty"`
	StartedAt        string `json:"started_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
}

// ScheduleDTO describes the daily trigger.
type ScheduleDTO struct {
	Enabled       bool   `json:"enabled"`
	Cron          string `json:"cron"`
	Timezone      string `json:"timezone"`
	NextRun       string `json:"next_run,omitempty"`
	TodayComplete bool   `json:"today_complete"`
}

func toBatchRunDTO(r liaison.BatchRun) BatchRunDTO {
	dto := BatchRunDTO{
		ID:               r.ID,
		RunDate:          r.RunDate.String(),
		Trigger:          string(r.Trigger),
		Status:           string(r.Status),
		LeavesCompleted:  r.LeavesCompleted,
		RemindersCreated: r.RemindersCreated,
		Error:            r.Error,
		StartedAt:        r.StartedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// REMINDERS
// =============================================================================

// ReminderDTO represents a reminder in API responses.
type ReminderDTO struct {
	ID            string `json:"id"`
	PersonID      string `json:"person_id,omitempty"`
	LeavePeriodID string `json:"leave_period_id,omitempty"`
	Type          string `json:"type"`
	Date          string `json:"date"`
	Priority      string `json:"priority"`
	Message       string `json:"message"`
	IsHandled     bool   `json:"is_handled"`
	HandledAt     string `json:"handled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toReminderDTO(r liaison.Reminder) ReminderDTO {
	dto := ReminderDTO{
		ID:            string(r.ID),
		PersonID:      string(r.PersonID),
		LeavePeriodID: string(r.LeavePeriodID),
		Type:          string(r.Type),
		Date:          r.Date.String(),
		Priority:      string(r.Priority),
		Message:       r.Message,
		IsHandled:     r.IsHandled,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.HandledAt != nil {
		dto.HandledAt = r.HandledAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// REPORTS
// =============================================================================

// DepartmentErrorDTO reports a department that could not be computed.
type DepartmentErrorDTO struct {
	DepartmentID string `json:"department_id"`
	Error        string `json:"error"`
}

func toDepartmentErrorDTOs(errs []*liaison.DepartmentError) []DepartmentErrorDTO {
	out := make([]DepartmentErrorDTO, 0, len(errs))
	for _, e := range errs {
		out = append(out, DepartmentErrorDTO{DepartmentID: string(e.DepartmentID), Error: e.Err.Error()})
	}
	return out
}

// HealthScoreResponse wraps report.HealthScore with its error list.
type HealthScoreResponse struct {
	report.HealthScore
	Errors []DepartmentErrorDTO `json:"errors"`
}

// RankingResponse wraps report.Ranking with its period and error list.
type RankingResponse struct {
	Start   string                `json:"start"`
	End     string                `json:"end"`
	AsOf    string                `json:"as_of"`
	Entries []report.RankingEntry `json:"entries"`
	Errors  []DepartmentErrorDTO  `json:"errors"`
}

// TrendsResponse wraps report.TrendReport with both periods and its error list.
type TrendsResponse struct {
	Scope    string                         `json:"scope"`
	Current  PeriodDTO                      `json:"current"`
	Previous PeriodDTO                      `json:"previous"`
	Metrics  map[string]scoring.TrendResult `json:"metrics"`
	Errors   []DepartmentErrorDTO           `json:"errors"`
}

// PeriodDTO is an inclusive date range.
type PeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
