package sim

import (
	"log/slog"

	"github.com/talgya/lifesim/internal/action"
	"github.com/talgya/lifesim/internal/clock"
	"github.com/talgya/lifesim/internal/health"
	"github.com/talgya/lifesim/internal/ledger"
	"github.com/talgya/lifesim/internal/schedule"
)

// SaveVersion is bumped when SaveData changes shape.
const SaveVersion = 1

// ClockState captures the calendar for a snapshot. The weekday cycle
// position and the holiday override are stored separately so a restore
// lands on the exact same effective day type.
type ClockState struct {
	Day     int           `json:"day"`
	Weekday clock.DayType `json:"weekday"`
	Holiday bool          `json:"holiday"`
	Minutes int           `json:"minutes"`
	Season  string        `json:"season"`
}

// EntitySave is one entity's persisted state.
type EntitySave struct {
	ID          schedule.EntityID                 `json:"id"`
	Name        string                            `json:"name"`
	Location    string                            `json:"location"`
	Health      health.State                      `json:"health"`
	Templates   map[clock.DayType][]schedule.Item `json:"templates"`
	SpecialDays map[int][]schedule.Item           `json:"special_days,omitempty"`
}

// SaveData is the full snapshot contract: clock, schedules, ledgers,
// stored resources, economy parameters, and pending scheduled actions.
// The serialization format belongs to the persistence layer; this
// struct is the contract.
type SaveData struct {
	Version  int                     `json:"version"`
	Clock    ClockState              `json:"clock"`
	Entities []EntitySave            `json:"entities"`
	Ledgers  []ledger.Ledger         `json:"ledgers"`
	Stored   []ledger.StoredResource `json:"stored"`
	Economy  ledger.EconomyState     `json:"economy"`
	Pending  []action.Scheduled      `json:"pending_actions,omitempty"`
	Events   []Event                 `json:"events,omitempty"`
}

// Snapshot captures the complete world state as a value.
func (s *Simulation) Snapshot() SaveData {
	data := SaveData{
		Version: SaveVersion,
		Clock: ClockState{
			Day:     s.Clock.Day(),
			Weekday: s.Clock.Weekday(),
			Holiday: s.Clock.DayType() == clock.Holiday,
			Minutes: s.Clock.MinutesOfDay(),
			Season:  s.Clock.Season(),
		},
		Economy: s.Ledgers.Economy,
		Events:  append([]Event{}, s.Events...),
	}

	for _, id := range s.order {
		e := s.entities[id]
		es := EntitySave{
			ID:          e.ID,
			Name:        e.Name,
			Location:    e.Location,
			Health:      *e.Health,
			Templates:   make(map[clock.DayType][]schedule.Item, len(e.Schedule.WeekdayTemplates)),
			SpecialDays: make(map[int][]schedule.Item, len(e.Schedule.SpecialDays)),
		}
		es.Health.Conditions = append([]health.Condition{}, e.Health.Conditions...)
		for dt, items := range e.Schedule.WeekdayTemplates {
			es.Templates[dt] = append([]schedule.Item{}, items...)
		}
		for day, items := range e.Schedule.SpecialDays {
			es.SpecialDays[day] = append([]schedule.Item{}, items...)
		}
		data.Entities = append(data.Entities, es)
	}

	for _, l := range s.Ledgers.All() {
		data.Ledgers = append(data.Ledgers, *l)
	}
	for _, r := range s.Ledgers.Stored() {
		data.Stored = append(data.Stored, *r)
	}
	for _, sc := range s.Dispatcher.Pending() {
		data.Pending = append(data.Pending, *sc)
	}
	return data
}

// Restore replaces the world state from a snapshot. Time-block
// reservations are re-derived from the restored scheduled actions;
// reservation items embedded in saved schedules are discarded first so
// the action records stay the single source of truth.
func (s *Simulation) Restore(data SaveData) {
	s.Clock.SetAbsolute(data.Clock.Day, data.Clock.Weekday, data.Clock.Minutes, data.Clock.Season)
	s.Clock.SetHoliday(data.Clock.Holiday)

	s.entities = make(map[schedule.EntityID]*Entity, len(data.Entities))
	s.order = s.order[:0]
	reserved := make(map[string]bool, len(data.Pending))
	for _, sc := range data.Pending {
		if sc.ReservedItemID != "" {
			reserved[sc.ReservedItemID] = true
		}
	}

	for _, es := range data.Entities {
		hs := es.Health
		e := &Entity{
			ID:       es.ID,
			Name:     es.Name,
			Location: es.Location,
			Health:   &hs,
			Schedule: schedule.New(es.ID),
		}
		for dt, items := range es.Templates {
			e.Schedule.SetTemplate(dt, dropReserved(items, reserved))
		}
		for day, items := range es.SpecialDays {
			e.Schedule.SetSpecialDay(day, dropReserved(items, reserved))
		}
		s.AddEntity(e)
	}

	// In-place restore keeps the dispatcher's ledger wiring intact.
	s.Ledgers.RestoreFrom(data.Ledgers, data.Stored, data.Economy)

	pending := make([]*action.Scheduled, 0, len(data.Pending))
	for i := range data.Pending {
		sc := data.Pending[i]
		pending = append(pending, &sc)
	}
	s.Dispatcher.Restore(pending)
	s.rederiveReservations(pending)

	s.Events = append([]Event{}, data.Events...)
	s.UpdateStats()
}

// rederiveReservations reclaims a time block for each pending action
// that held one, covering its remaining run from the restore point.
func (s *Simulation) rederiveReservations(pending []*action.Scheduled) {
	for _, sc := range pending {
		if sc.ReservedItemID == "" {
			continue
		}
		e, ok := s.entities[sc.EntityID]
		if !ok {
			sc.ReservedItemID = ""
			continue
		}
		slot := schedule.TimeSlot{
			Start: s.Clock.MinutesOfDay(),
			End:   s.Clock.MinutesOfDay() + sc.RemainingMinutes,
		}
		item := schedule.NewItem(slot, sc.ActionID, e.Location, reservationImportance, schedule.Flexibility{})
		if t := sc.Params.Target; t != "" {
			item.Participants = []schedule.EntityID{e.ID, t}
		}
		day := s.Clock.Day()
		res := e.Schedule.Insert(s.DayTypeFor(day), day, item)
		if !res.Accepted() {
			slog.Warn("could not reclaim reservation on restore",
				"entity", sc.EntityID, "action", sc.ActionID, "slot", slot.String())
			sc.ReservedItemID = ""
			continue
		}
		sc.ReservedDay = day
		sc.ReservedItemID = item.ID
	}
}

func dropReserved(items []schedule.Item, reserved map[string]bool) []schedule.Item {
	out := make([]schedule.Item, 0, len(items))
	for _, it := range items {
		if !reserved[it.ID] {
			out = append(out, it)
		}
	}
	return out
}
