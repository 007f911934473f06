/*
generator.go - Daily reminder generation

PURPOSE:

	Turns one day's view of the directory (persons, their leave periods, their
	contact history, their creators' thresholds) into the reminder rows for
	that day. Pure: no store, no clock. The batch runner loads the input,
	deletes the day's previous output and inserts what comes back.

RULES:

	leave_events.go   before / ending / during (never contacted)
	contact_gap.go    overdue (present persons) / during (no contact since
	                  the leave started)

	A person gets at most one reminder per type per day. Two rules producing
	the same (person, type) collapse into the first one emitted.

EXAMPLE:

	gen := reminder.NewGenerator(reminder.Options{Logger: log})
	out := gen.Generate(reminder.GenerateInput{
	    Today:    today,
	    Zone:     zone,
	    Persons:  persons,
	    Leaves:   liaison.LeavesByPerson(active),
	    Contacts: liaison.ContactsByPerson(contacts),
	    Settings: settings,
	})

SEE ALSO:
  - lifecycle.go: leave transitions applied before generation
  - batch/runner.go: loads the input and persists the output
*/
package reminder

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// GENERATOR
// =============================================================================

// Options configures a Generator. Zero values fall back to defaults.
type Options struct {
	UrgentThreshold  int
	SuggestThreshold int
	IncludeOrphans   bool
	Logger           *slog.Logger
	NewID            func() liaison.ReminderID
	Now              func() time.Time
}

// Generator evaluates the reminder rules for one day.
type Generator struct {
	defaults       liaison.ReminderSettings
	includeOrphans bool
	log            *slog.Logger
	newID          func() liaison.ReminderID
	now            func() time.Time
}

// NewGenerator builds a generator from opts.
func NewGenerator(opts Options) *Generator {
	defaults := liaison.DefaultReminderSettings("")
	if opts.UrgentThreshold > 0 {
		defaults.UrgentThreshold = opts.UrgentThreshold
	}
	if opts.SuggestThreshold > 0 {
		defaults.SuggestThreshold = opts.SuggestThreshold
	}

	g := &Generator{
		defaults:       defaults,
		includeOrphans: opts.IncludeOrphans,
		log:            opts.Logger,
		newID:          opts.NewID,
		now:            opts.Now,
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	g.log = g.log.With("component", "reminder")
	if g.newID == nil {
		g.newID = func() liaison.ReminderID { return liaison.ReminderID(uuid.NewString()) }
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// GenerateInput is everything the rules read for one day.
type GenerateInput struct {
	Today calendar.Date
	Zone  calendar.Zone

	Persons []liaison.Person
	// Leaves holds the active leave periods per person after the lifecycle
	// update, so every period here has EndDate >= Today.
	Leaves map[liaison.PersonID][]liaison.LeavePeriod
	// Contacts holds every contact per person, ordered by ContactedAt, with
	// the author's department and role resolved.
	Contacts map[liaison.PersonID][]liaison.ContactEvent
	// Settings holds the thresholds of users that have a settings row.
	Settings map[liaison.UserID]liaison.ReminderSettings
}

// GenerateOutput is the day's reminders plus counters for the run summary.
type GenerateOutput struct {
	Reminders      []liaison.Reminder
	ByType         map[liaison.ReminderType]int
	SkippedOrphans int
}

// Generate evaluates every rule for every person.
func (g *Generator) Generate(in GenerateInput) GenerateOutput {
	out := GenerateOutput{ByType: make(map[liaison.ReminderType]int)}
	seen := make(map[dedupKey]bool)
	createdAt := g.now()

	emit := func(r liaison.Reminder) {
		key := dedupKey{person: r.PersonID, kind: r.Type}
		if seen[key] {
			return
		}
		seen[key] = true
		r.ID = g.newID()
		r.Date = in.Today
		r.CreatedAt = createdAt
		out.Reminders = append(out.Reminders, r)
		out.ByType[r.Type]++
	}

	persons := make([]liaison.Person, len(in.Persons))
	copy(persons, in.Persons)
	sort.Slice(persons, func(i, j int) bool { return persons[i].ID < persons[j].ID })

	for _, p := range persons {
		leaves := in.Leaves[p.ID]
		contacts := in.Contacts[p.ID]

		for _, r := range leaveEventReminders(p, leaves, contacts, in.Today) {
			emit(r)
		}

		if p.IsOrphan() && !g.includeOrphans {
			out.SkippedOrphans++
			g.log.Warn("skipping contact-gap rules for person without department",
				"person_id", p.ID, "date", in.Today.String())
			continue
		}

		for _, r := range g.contactGapReminders(p, leaves, contacts, in) {
			emit(r)
		}
	}

	return out
}

type dedupKey struct {
	person liaison.PersonID
	kind   liaison.ReminderType
}

// ThresholdsFor resolves the thresholds that apply to p: its creator's
// settings, or the generator defaults.
func (g *Generator) ThresholdsFor(p liaison.Person, settings map[liaison.UserID]liaison.ReminderSettings) liaison.ReminderSettings {
	if s, ok := settings[p.CreatedBy]; ok {
		return sanitize(s, g.defaults)
	}
	d := g.defaults
	d.UserID = p.CreatedBy
	return d
}

// sanitize replaces unusable thresholds with the defaults. A suggest
// threshold above the urgent one is capped so medium stays below high.
func sanitize(s, defaults liaison.ReminderSettings) liaison.ReminderSettings {
	if s.UrgentThreshold <= 0 {
		s.UrgentThreshold = defaults.UrgentThreshold
	}
	if s.SuggestThreshold <= 0 {
		s.SuggestThreshold = defaults.SuggestThreshold
	}
	if s.SuggestThreshold > s.UrgentThreshold {
		s.SuggestThreshold = s.UrgentThreshold
	}
	return s
}
