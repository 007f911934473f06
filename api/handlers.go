/*
handlers.go - HTTP API handlers for the liaison reminder engine

PURPOSE:

	Exposes the batch runner, the reminder table and the report service via a
	REST API. Handles HTTP request/response, JSON serialization, and delegates
	to domain logic.

ENDPOINTS:

	Admin:
	  POST   /api/admin/runs                 Manual batch run ({"date"} optional)
	  GET    /api/admin/runs?limit=          Run history, newest first
	  GET    /api/admin/schedule             Cron, timezone, next fire

	Reminders:
	  GET    /api/reminders                  ?date=&person_id=&department_id=&unhandled=
	  POST   /api/reminders/{id}/handle      Mark handled

	Reports:
	  GET    /api/reports/health-score       ?department_id=|all&as_of=
	  GET    /api/reports/ranking            ?start=&end=
	  GET    /api/reports/trends             ?start=&end=&department_id=

	Scenarios:
	  GET    /api/scenarios                  List demo scenarios
	  POST   /api/scenarios/load             Load a demo scenario

ARCHITECTURE:

	Handler struct holds all dependencies:
	- Store:     Database access
	- Runner:    Daily batch (manual trigger, history)
	- Scheduler: Cron trigger; nil when the process runs without one
	- Reports:   Health score, ranking, trends
	- Clock:     Business "today" for date defaults

ERROR HANDLING:

	Errors are returned as JSON with appropriate HTTP status:
	- 400: Invalid dates, reversed periods, unknown department
	- 404: Reminder not found
	- 409: A batch run is already in progress
	- 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/liaison-engine/batch"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/logging"
	"github.com/warp/liaison-engine/report"
)

// Default and maximum page size for run history.
const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// defaultReportDays is the report window when start/end are omitted.
const defaultReportDays = 30

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     liaison.Store
	Runner    *batch.Runner
	Scheduler *batch.Scheduler
	Reports   *report.Service
	Clock     calendar.Clock

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(store liaison.Store, runner *batch.Runner, scheduler *batch.Scheduler, reports *report.Service, clock calendar.Clock) *Handler {
	return &Handler{
		Store:     store,
		Runner:    runner,
		Scheduler: scheduler,
		Reports:   reports,
		Clock:     clock,
	}
}

// pinger is implemented by stores that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness and, when supported, datastore reachability.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Datastore unreachable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// TriggerRun runs the daily batch now. Manual runs always regenerate the day.
// POST /api/admin/runs
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	day := h.Clock.Today()
	if req.Date != "" {
		d, err := calendar.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		day = d
	}

	result, err := h.Runner.RunForDate(r.Context(), day, liaison.TriggerManual)
	if err != nil {
		if errors.Is(err, liaison.ErrRunInProgress) {
			writeError(w, http.StatusConflict, "A batch run is already in progress", err)
			return
		}
		if liaison.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Run date must not be after today", err)
			return
		}
		logging.FromContext(r.Context()).Error("manual run failed", "date", day.String(), "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Batch run failed",
			Code:    "run_failed",
			Details: RunResultDTO{RunResult: result},
		})
		return
	}

	writeJSON(w, http.StatusOK, RunResultDTO{RunResult: result})
}

// ListRuns returns the batch run history.
// GET /api/admin/runs?limit=20
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.Runner.LastRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list batch runs", err)
		return
	}

	dtos := make([]BatchRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toBatchRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSchedule describes the daily trigger and whether today already ran.
// GET /api/admin/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	dto := ScheduleDTO{Timezone: h.Clock.Zone().Location().String()}
	if h.Scheduler != nil {
		dto.Enabled = h.Scheduler.Enabled
		dto.Cron = h.Scheduler.Spec()
		if dto.Enabled {
			dto.NextRun = h.Scheduler.NextRun().Format(time.RFC3339)
		}
	}

	done, err := h.Runner.Completed(r.Context(), h.Clock.Today())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read completion marker", err)
		return
	}
	dto.TodayComplete = done

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// REMINDER ENDPOINTS
// =============================================================================

// ListReminders returns one day's reminders, most urgent first.
// GET /api/reminders?date=2024-01-15&person_id=&department_id=&unhandled=true
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day, err := dateParam(q.Get("date"), h.Clock.Today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	filter := liaison.ReminderFilter{
		From:          &day,
		To:            &day,
		ExcludeSystem: true,
		UnhandledOnly: q.Get("unhandled") == "true",
	}
	if id := q.Get("person_id"); id != "" {
		filter.PersonIDs = []liaison.PersonID{liaison.PersonID(id)}
	}
	if id := q.Get("department_id"); id != "" {
		filter.DepartmentIDs = []liaison.DepartmentID{liaison.DepartmentID(id)}
	}

	reminders, err := h.Store.ListReminders(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reminders", err)
		return
	}

	sortByPriority(reminders)
	dtos := make([]ReminderDTO, len(reminders))
	for i, rem := range reminders {
		dtos[i] = toReminderDTO(rem)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// HandleReminder marks a reminder as handled.
// POST /api/reminders/{id}/handle
func (h *Handler) HandleReminder(w http.ResponseWriter, r *http.Request) {
	id := liaison.ReminderID(chi.URLParam(r, "id"))
	if strings.HasPrefix(string(id), "system-") {
		writeError(w, http.StatusBadRequest, "Completion markers cannot be handled", nil)
		return
	}

	now := h.Clock.Now()
	if err := h.Store.MarkReminderHandled(r.Context(), id, now); err != nil {
		if liaison.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Reminder not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to handle reminder", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":         string(id),
		"status":     "handled",
		"handled_at": now.Format(time.RFC3339),
	})
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// GetHealthScore returns the point-in-time health score.
// GET /api/reports/health-score?department_id=ops&as_of=2024-01-25
func (h *Handler) GetHealthScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	asOf, err := dateParam(q.Get("as_of"), h.Clock.Today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Reports.HealthScore(r.Context(), scopeParam(q.Get("department_id")), asOf)
	if err != nil {
		writeDomainError(w, "Failed to compute health score", err)
		return
	}

	writeJSON(w, http.StatusOK, HealthScoreResponse{
		HealthScore: result,
		Errors:      toDepartmentErrorDTOs(result.Errors),
	})
}

// GetRanking ranks every department by health score over a period.
// GET /api/reports/ranking?start=2024-01-01&end=2024-01-31
func (h *Handler) GetRanking(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.periodParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start/end format (use YYYY-MM-DD)", err)
		return
	}

	ranking, err := h.Reports.DepartmentRanking(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, "Failed to compute ranking", err)
		return
	}

	entries := ranking.Entries
	if entries == nil {
		entries = []report.RankingEntry{}
	}
	writeJSON(w, http.StatusOK, RankingResponse{
		Start:   ranking.Period.Start.String(),
		End:     ranking.Period.End.String(),
		AsOf:    ranking.AsOf.String(),
		Entries: entries,
		Errors:  toDepartmentErrorDTOs(ranking.Errors),
	})
}

// GetTrends compares a period with the equally long period before it.
// GET /api/reports/trends?start=2024-01-16&end=2024-01-31&department_id=ops
func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.periodParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start/end format (use YYYY-MM-DD)", err)
		return
	}

	trends, err := h.Reports.Trends(r.Context(), start, end, scopeParam(r.URL.Query().Get("department_id")))
	if err != nil {
		writeDomainError(w, "Failed to compute trends", err)
		return
	}

	writeJSON(w, http.StatusOK, TrendsResponse{
		Scope:    trends.Scope,
		Current:  PeriodDTO{Start: trends.Current.Start.String(), End: trends.Current.End.String()},
		Previous: PeriodDTO{Start: trends.Previous.Start.String(), End: trends.Previous.End.String()},
		Metrics:  trends.Metrics,
		Errors:   toDepartmentErrorDTOs(trends.Errors),
	})
}

// periodParams reads start/end; a missing end is today and a missing start
// is defaultReportDays before end.
func (h *Handler) periodParams(r *http.Request) (calendar.Date, calendar.Date, error) {
	q := r.URL.Query()
	end, err := dateParam(q.Get("end"), h.Clock.Today())
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	start, err := dateParam(q.Get("start"), end.AddDays(-(defaultReportDays - 1)))
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	return start, end, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func dateParam(raw string, fallback calendar.Date) (calendar.Date, error) {
	if raw == "" {
		return fallback, nil
	}
	return calendar.ParseDate(raw)
}

func scopeParam(raw string) report.Scope {
	if raw == "" || raw == "all" {
		return report.AllDepartments()
	}
	return report.Department(liaison.DepartmentID(raw))
}

var priorityRank = map[liaison.Priority]int{
	liaison.PriorityHigh:   0,
	liaison.PriorityMedium: 1,
	liaison.PriorityLow:    2,
}

// sortByPriority orders reminders high -> low, keeping store order within a tier.
func sortByPriority(reminders []liaison.Reminder) {
	slices.SortStableFunc(reminders, func(a, b liaison.Reminder) int {
		return priorityRank[a.Priority] - priorityRank[b.Priority]
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case liaison.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case liaison.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

func (h *Handler) loadedScenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}
