/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data relative to today, then run the daily batch so the dashboard has
	reminders and reports to show immediately.

AVAILABLE SCENARIOS:

	quiet-day:        Everyone present and recently contacted, no reminders
	contact-gap:      Present persons at 3, 8 and 12 days without contact
	leave-boundaries: Leaves starting/ending tomorrow, one ended yesterday,
	                  one in progress with nobody calling
	departments:      Three departments contacting every 5, 9 and 12 days over
	                  the last 60 days, for ranking and trends

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create departments and users
 3. Create persons, leave periods and contact events (offsets from today)
 4. Run the daily batch manually for today

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "contact-gap"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(s *seeder)
 3. Add to 'loaders'

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - batch/runner.go: the run executed after seeding
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/logging"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "quiet-day",
		Name:        "Quiet Day",
		Description: "Everyone is at their post and was contacted this week. The batch produces no reminders.",
	},
	{
		ID:          "contact-gap",
		Name:        "Contact Gap",
		Description: "Three present persons last contacted 3, 8 and 12 days ago. Shows suggest (7) and urgent (10) thresholds.",
	},
	{
		ID:          "leave-boundaries",
		Name:        "Leave Boundaries",
		Description: "A leave starting tomorrow, one ending tomorrow, one that ended yesterday and one nobody has called about.",
	},
	{
		ID:          "departments",
		Name:        "Department Comparison",
		Description: "Three departments contacting every 5, 9 and 12 days over 60 days. Use with ranking and trends.",
	},
}

var loaders = map[string]func(s *seeder){
	"quiet-day":        loadQuietDayScenario,
	"contact-gap":      loadContactGapScenario,
	"leave-boundaries": loadLeaveBoundariesScenario,
	"departments":      loadDepartmentsScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.loadedScenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database, seeds a scenario and runs today's batch.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")

	s := newSeeder(ctx, h.Store, h.Clock)
	load(s)
	if s.err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", s.err), s.err)
		return
	}

	result, err := h.Runner.RunForDate(ctx, h.Clock.Today(), liaison.TriggerManual)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Scenario loaded but the batch run failed", err)
		return
	}

	h.setCurrentScenario(req.ScenarioID)
	logging.FromContext(ctx).Info("scenario loaded", "scenario", req.ScenarioID,
		"reminders_created", result.RemindersCreated)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"run":      result,
	})
}

// =============================================================================
// SEEDER
// =============================================================================

// seeder writes scenario records with dates expressed as offsets from
// today. The first error sticks and later calls become no-ops.
type seeder struct {
	ctx   context.Context
	store liaison.SeedStore
	today calendar.Date
	zone  calendar.Zone
	seq   int
	err   error
}

func newSeeder(ctx context.Context, store liaison.SeedStore, clock calendar.Clock) *seeder {
	return &seeder{ctx: ctx, store: store, today: clock.Today(), zone: clock.Zone()}
}

func (s *seeder) do(fn func() error) {
	if s.err == nil {
		s.err = fn()
	}
}

// at returns 10:00 local time, offset days from today.
func (s *seeder) at(offset int) time.Time {
	return s.zone.StartOf(s.today.AddDays(offset)).Add(10 * time.Hour)
}

func (s *seeder) department(id, name string) {
	s.do(func() error {
		return s.store.SaveDepartment(s.ctx, liaison.Department{ID: liaison.DepartmentID(id), Name: name})
	})
}

func (s *seeder) user(id, name, dept string, role liaison.Role) {
	s.do(func() error {
		return s.store.SaveUser(s.ctx, liaison.User{
			ID:           liaison.UserID(id),
			Name:         name,
			DepartmentID: liaison.DepartmentID(dept),
			Role:         role,
		})
	})
}

func (s *seeder) person(id, name, dept, createdBy string) {
	s.do(func() error {
		return s.store.SavePerson(s.ctx, liaison.Person{
			ID:           liaison.PersonID(id),
			Name:         name,
			DepartmentID: liaison.DepartmentID(dept),
			CreatedBy:    liaison.UserID(createdBy),
			CreatedAt:    s.at(-90),
		})
	})
}

// leave records an active leave from today+start to today+end. Leaves that
// already ended stay active so the batch completes them.
func (s *seeder) leave(id, person string, kind liaison.LeaveKind, start, end int) {
	s.do(func() error {
		return s.store.SaveLeavePeriod(s.ctx, liaison.LeavePeriod{
			ID:        liaison.LeavePeriodID(id),
			PersonID:  liaison.PersonID(person),
			Kind:      kind,
			StartDate: s.today.AddDays(start),
			EndDate:   s.today.AddDays(end),
			Status:    liaison.LeaveActive,
			CreatedAt: s.at(start - 14),
		})
	})
}

func (s *seeder) contact(person, by string, offset int) {
	s.seq++
	id := liaison.ContactID(fmt.Sprintf("c-%04d", s.seq))
	s.do(func() error {
		return s.store.SaveContactEvent(s.ctx, liaison.ContactEvent{
			ID:          id,
			PersonID:    liaison.PersonID(person),
			ContactedAt: s.at(offset),
			ContactBy:   liaison.UserID(by),
		})
	})
}

// every logs a contact every step days from today+from up to today.
func (s *seeder) every(person, by string, from, step int) {
	for off := from; off <= 0; off += step {
		s.contact(person, by, off)
	}
}

func (s *seeder) settings(user string, urgent, suggest int) {
	s.do(func() error {
		return s.store.SaveReminderSettings(s.ctx, liaison.ReminderSettings{
			UserID:           liaison.UserID(user),
			UrgentThreshold:  urgent,
			SuggestThreshold: suggest,
		})
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadQuietDayScenario(s *seeder) {
	s.department("ops", "Operations")
	s.user("u-olga", "Olga", "ops", liaison.RoleLiaison)
	for _, p := range []struct{ id, name string }{{"p-ana", "Ana"}, {"p-ben", "Ben"}, {"p-cho", "Cho"}} {
		s.person(p.id, p.name, "ops", "u-olga")
		s.every(p.id, "u-olga", -12, 3)
	}
}

func loadContactGapScenario(s *seeder) {
	s.department("ops", "Operations")
	s.user("u-olga", "Olga", "ops", liaison.RoleLiaison)
	s.user("u-root", "Root", "ops", liaison.RoleAdmin)

	s.person("p-ana", "Ana", "ops", "u-olga")
	s.contact("p-ana", "u-olga", -3)

	s.person("p-ben", "Ben", "ops", "u-olga")
	s.contact("p-ben", "u-olga", -8)

	// The admin's call yesterday does not reset Cho's gap.
	s.person("p-cho", "Cho", "ops", "u-olga")
	s.contact("p-cho", "u-olga", -12)
	s.contact("p-cho", "u-root", -1)
}

func loadLeaveBoundariesScenario(s *seeder) {
	s.department("ops", "Operations")
	s.user("u-olga", "Olga", "ops", liaison.RoleLiaison)
	s.settings("u-olga", 14, 10)

	s.person("p-ana", "Ana", "ops", "u-olga")
	s.contact("p-ana", "u-olga", -2)
	s.leave("lp-ana", "p-ana", liaison.KindTravel, 1, 5)

	s.person("p-ben", "Ben", "ops", "u-olga")
	s.leave("lp-ben", "p-ben", liaison.KindLeave, -10, 1)
	s.every("p-ben", "u-olga", -8, 4)

	s.person("p-cho", "Cho", "ops", "u-olga")
	s.leave("lp-cho", "p-cho", liaison.KindHospitalization, -20, -1)
	s.contact("p-cho", "u-olga", -15)

	s.person("p-dev", "Dev", "ops", "u-olga")
	s.contact("p-dev", "u-olga", -9)
	s.leave("lp-dev", "p-dev", liaison.KindTraining, -6, 6)
}

func loadDepartmentsScenario(s *seeder) {
	depts := []struct {
		id, name, liaison string
		step              int
	}{
		{"ops", "Operations", "u-olga", 5},
		{"hr", "Human Resources", "u-hugo", 9},
		{"fin", "Finance", "u-fay", 12},
	}
	for _, d := range depts {
		s.department(d.id, d.name)
		s.user(d.liaison, d.liaison[2:], d.id, liaison.RoleLiaison)
		for i := 1; i <= 2; i++ {
			pid := fmt.Sprintf("p-%s-%d", d.id, i)
			s.person(pid, fmt.Sprintf("%s %d", d.name, i), d.id, d.liaison)
			s.leave("lp-"+pid, pid, liaison.KindLeave, -60+i, 10)
			s.every(pid, d.liaison, -60+i+d.step, d.step)
		}
	}
}
