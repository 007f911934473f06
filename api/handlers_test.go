/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Manual batch trigger, run history and schedule
- Reminder listing and handling
- Report endpoints and their error mapping
- Scenario loading
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/liaison-engine/batch"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/config"
	"github.com/warp/liaison-engine/reminder"
	"github.com/warp/liaison-engine/report"
	"github.com/warp/liaison-engine/store/postgres"
	"github.com/warp/liaison-engine/store/sqlite"
)

var today = calendar.MustParseDate("2024-03-10")

func newTestServer(t *testing.T, withScheduler bool) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := calendar.FixedClock(today, calendar.NewZone(time.UTC))
	gen := reminder.NewGenerator(reminder.Options{Now: clock.Now, Logger: logger})
	runner := batch.NewRunner(store, gen, clock, batch.RunnerOptions{Logger: logger})

	var scheduler *batch.Scheduler
	if withScheduler {
		scheduler, err = batch.NewScheduler(runner, batch.SchedulerConfig{Enabled: true, Cron: "0 1 * * *"}, logger)
		require.NoError(t, err)
	}
	reports := report.NewService(store, clock, report.Options{Logger: logger})

	h := NewHandler(store, runner, scheduler, reports, clock)
	srv := httptest.NewServer(NewRouter(h, config.CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET,POST"}, logger))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func loadScenario(t *testing.T, srv *httptest.Server, id string) {
	t.Helper()
	resp, body := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	srv := newTestServer(t, false)

	resp, body := do(t, srv, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestHealth_PostgresUnreachable(t *testing.T) {
	// GIVEN a Postgres store whose ping fails
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	h := NewHandler(postgres.New(mock), nil, nil, nil, calendar.FixedClock(today, calendar.NewZone(time.UTC)))
	rec := httptest.NewRecorder()

	// WHEN probing liveness
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	// THEN the datastore is reported unreachable
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// ADMIN
// =============================================================================

func TestTriggerRun_DefaultsToToday(t *testing.T) {
	// GIVEN an empty database
	srv := newTestServer(t, false)

	// WHEN triggering without a body
	resp, body := do(t, srv, http.MethodPost, "/api/admin/runs", nil)

	// THEN today's run completes with nothing to do
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result batch.RunResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, today, result.Date)
	assert.Zero(t, result.RemindersCreated)
	assert.False(t, result.Skipped)
}

func TestTriggerRun_ExplicitDate(t *testing.T) {
	srv := newTestServer(t, false)

	resp, body := do(t, srv, http.MethodPost, "/api/admin/runs", TriggerRunRequest{Date: "2024-03-01"})

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result batch.RunResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "2024-03-01", result.Date.String())
}

func TestTriggerRun_InvalidDate(t *testing.T) {
	srv := newTestServer(t, false)

	resp, _ := do(t, srv, http.MethodPost, "/api/admin/runs", TriggerRunRequest{Date: "03/01/2024"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTriggerRun_FutureDate(t *testing.T) {
	// GIVEN the contact-gap scenario loaded for 2024-03-10
	srv := newTestServer(t, false)
	loadScenario(t, srv, "contact-gap")

	// WHEN triggering a run for tomorrow
	resp, body := do(t, srv, http.MethodPost, "/api/admin/runs", TriggerRunRequest{Date: "2024-03-11"})

	// THEN it is rejected
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Contains(t, errResp.Details, "after today")

	// AND only the scenario's own run is in the history
	resp, body = do(t, srv, http.MethodGet, "/api/admin/runs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []BatchRunDTO
	require.NoError(t, json.Unmarshal(body, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "2024-03-10", runs[0].RunDate)
}

func TestListRuns(t *testing.T) {
	// GIVEN two manual runs
	srv := newTestServer(t, false)
	do(t, srv, http.MethodPost, "/api/admin/runs", TriggerRunRequest{Date: "2024-03-09"})
	do(t, srv, http.MethodPost, "/api/admin/runs", nil)

	// WHEN listing with a limit of one
	resp, body := do(t, srv, http.MethodGet, "/api/admin/runs?limit=1", nil)

	// THEN only the newest completed run is returned
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []BatchRunDTO
	require.NoError(t, json.Unmarshal(body, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, "manual", runs[0].Trigger)
}

func TestListRuns_InvalidLimit(t *testing.T) {
	srv := newTestServer(t, false)

	resp, _ := do(t, srv, http.MethodGet, "/api/admin/runs?limit=-3", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSchedule(t *testing.T) {
	srv := newTestServer(t, true)
	do(t, srv, http.MethodPost, "/api/admin/runs", nil)

	resp, body := do(t, srv, http.MethodGet, "/api/admin/schedule", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dto ScheduleDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.True(t, dto.Enabled)
	assert.Equal(t, "0 1 * * *", dto.Cron)
	assert.Equal(t, "UTC", dto.Timezone)
	assert.Equal(t, "2024-03-10T01:00:00Z", dto.NextRun)
	assert.True(t, dto.TodayComplete)
}

func TestGetSchedule_WithoutScheduler(t *testing.T) {
	srv := newTestServer(t, false)

	resp, body := do(t, srv, http.MethodGet, "/api/admin/schedule", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dto ScheduleDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.False(t, dto.Enabled)
	assert.Empty(t, dto.NextRun)
	assert.False(t, dto.TodayComplete)
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestListReminders_ContactGapScenario(t *testing.T) {
	// GIVEN persons at 3, 8 and 12 days without liaison contact
	srv := newTestServer(t, false)
	loadScenario(t, srv, "contact-gap")

	// WHEN listing today's reminders
	resp, body := do(t, srv, http.MethodGet, "/api/reminders", nil)

	// THEN Cho is urgent and Ben is suggested, urgent first
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reminders []ReminderDTO
	require.NoError(t, json.Unmarshal(body, &reminders))
	require.Len(t, reminders, 2)
	assert.Equal(t, "p-cho", reminders[0].PersonID)
	assert.Equal(t, "high", reminders[0].Priority)
	assert.Equal(t, "p-ben", reminders[1].PersonID)
	assert.Equal(t, "medium", reminders[1].Priority)
	for _, r := range reminders {
		assert.Equal(t, "overdue", r.Type)
		assert.Equal(t, "2024-03-10", r.Date)
	}
}

func TestListReminders_PersonFilter(t *testing.T) {
	srv := newTestServer(t, false)
	loadScenario(t, srv, "contact-gap")

	resp, body := do(t, srv, http.MethodGet, "/api/reminders?person_id=p-ben", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reminders []ReminderDTO
	require.NoError(t, json.Unmarshal(body, &reminders))
	require.Len(t, reminders, 1)
	assert.Equal(t, "p-ben", reminders[0].PersonID)
}

func TestListReminders_InvalidDate(t *testing.T) {
	srv := newTestServer(t, false)

	resp, _ := do(t, srv, http.MethodGet, "/api/reminders?date=yesterday", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleReminder(t *testing.T) {
	// GIVEN two unhandled reminders
	srv := newTestServer(t, false)
	loadScenario(t, srv, "contact-gap")
	_, body := do(t, srv, http.MethodGet, "/api/reminders", nil)
	var reminders []ReminderDTO
	require.NoError(t, json.Unmarshal(body, &reminders))
	require.NotEmpty(t, reminders)

	// WHEN handling the first one
	resp, _ := do(t, srv, http.MethodPost, "/api/reminders/"+reminders[0].ID+"/handle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// THEN only the other one is still unhandled
	_, body = do(t, srv, http.MethodGet, "/api/reminders?unhandled=true", nil)
	var unhandled []ReminderDTO
	require.NoError(t, json.Unmarshal(body, &unhandled))
	require.Len(t, unhandled, 1)
	assert.Equal(t, reminders[1].ID, unhandled[0].ID)
}

func TestHandleReminder_NotFound(t *testing.T) {
	srv := newTestServer(t, false)

	resp, _ := do(t, srv, http.MethodPost, "/api/reminders/nope/handle", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleReminder_CompletionMarker(t *testing.T) {
	srv := newTestServer(t, false)
	do(t, srv, http.MethodPost, "/api/admin/runs", nil)

	resp, _ := do(t, srv, http.MethodPost, "/api/reminders/system-2024-03-10/handle", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestHealthScore_AllDepartments(t *testing.T) {
	srv := newTestServer(t, false)
	loadScenario(t, srv, "departments")

	resp, body := do(t, srv, http.MethodGet, "/api/reports/health-score", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got HealthScoreResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "all", got.Scope)
	assert.Len(t, got.Details, 3)
	assert.Empty(t, got.Errors)
}

func TestHealthScore_UnknownDepartment(t *testing.T) {
	srv := newTestServer(t, false)

	resp, body := do(t, srv, http.MethodGet, "/api/reports/health-score?department_id=nope", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Contains(t, errResp.Details, "unknown department")
}

func TestRanking_OrdersByCadence(t *testing.T) {
	// GIVEN contact every 5, 9 and 12 days
	srv := newTestServer(t, false)
	loadScenario(t, srv, "departments")

	// WHEN ranking the last 30 days
	resp, body := do(t, srv, http.MethodGet, "/api/reports/ranking", nil)

	// THEN the tightest cadence leads and the loosest trails
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got RankingResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "2024-02-10", got.Start)
	assert.Equal(t, "2024-03-10", got.End)
	require.Len(t, got.Entries, 3)
	assert.Equal(t, "ops", string(got.Entries[0].DepartmentID))
	assert.Equal(t, "fin", string(got.Entries[2].DepartmentID))
	assert.Equal(t, 100, got.Entries[0].Score)
	assert.Greater(t, got.Entries[1].Score, got.Entries[2].Score)
}

func TestRanking_ReversedPeriod(t *testing.T) {
	srv := newTestServer(t, false)

	resp, _ := do(t, srv, http.MethodGet, "/api/reports/ranking?start=2024-03-10&end=2024-03-01", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrends(t *testing.T) {
	srv := newTestServer(t, false)
	loadScenario(t, srv, "departments")

	resp, body := do(t, srv, http.MethodGet, "/api/reports/trends?start=2024-03-01&end=2024-03-10&department_id=ops", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got TrendsResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ops", got.Scope)
	assert.Equal(t, PeriodDTO{Start: "2024-02-20", End: "2024-02-29"}, got.Previous)
	assert.Contains(t, got.Metrics, "score")
	assert.Contains(t, got.Metrics, "urgent_count")
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadScenario_Unknown(t *testing.T) {
	srv := newTestServer(t, false)

	resp, _ := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCurrentScenario_TracksLoadAndReset(t *testing.T) {
	srv := newTestServer(t, false)
	loadScenario(t, srv, "quiet-day")

	_, body := do(t, srv, http.MethodGet, "/api/scenarios/current", nil)
	var current ScenarioDTO
	require.NoError(t, json.Unmarshal(body, &current))
	assert.Equal(t, "quiet-day", current.ID)

	resp, _ := do(t, srv, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = do(t, srv, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", string(body))
}

func TestQuietDay_NoReminders(t *testing.T) {
	srv := newTestServer(t, false)
	loadScenario(t, srv, "quiet-day")

	_, body := do(t, srv, http.MethodGet, "/api/reminders", nil)

	assert.Equal(t, "[]\n", string(body))
}
