// Package sim ties the clock, schedules, ledgers, health tracking, and
// action dispatch together and runs them each tick. Single-threaded:
// one driver calls Tick; modification requests and actions are
// processed synchronously between ticks.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/talgya/lifesim/internal/action"
	"github.com/talgya/lifesim/internal/clock"
	"github.com/talgya/lifesim/internal/health"
	"github.com/talgya/lifesim/internal/ledger"
	"github.com/talgya/lifesim/internal/notify"
	"github.com/talgya/lifesim/internal/schedule"
)

// Seasons cycle in this order, turning over every SeasonLengthDays.
var seasonNames = [4]string{"spring", "summer", "autumn", "winter"}

// reservationImportance is the weight given to time blocks claimed by
// running actions: high enough to resist casual displacement, below
// the 0..100 ceiling so truly critical items still win.
const reservationImportance = 90.0

// Entity is one simulated person: a schedule, vitals, and a home
// location. Economic state lives in the shared ledger book under
// entity-prefixed ledger ids.
type Entity struct {
	ID       schedule.EntityID  `json:"id"`
	Name     string             `json:"name"`
	Location string             `json:"location"`
	Schedule *schedule.Schedule `json:"schedule"`
	Health   *health.State      `json:"health"`
}

// Event is a notable occurrence, kept in a bounded ring.
type Event struct {
	AtMinutes   int64  `json:"at_minutes"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Stats are aggregate values recomputed daily.
type Stats struct {
	Entities       int     `json:"entities"`
	AvgEnergy      float64 `json:"avg_energy"`
	AvgHealth      float64 `json:"avg_health"`
	TotalCurrency  float64 `json:"total_currency"`
	PendingActions int     `json:"pending_actions"`
	StoredGoods    int     `json:"stored_goods"`
}

// Simulation holds the complete world state. All fields are owned by
// the tick driver; nothing here is goroutine-safe.
type Simulation struct {
	Clock      *clock.Clock
	Ledgers    *ledger.Ledgers
	Dispatcher *action.Dispatcher
	Notifier   *notify.Notifier

	entities map[schedule.EntityID]*Entity
	order    []schedule.EntityID

	// ActivityRates maps activity id to energy consumption per minute
	// (negative = recovery).
	ActivityRates map[string]float64

	SeasonLengthDays int

	Events []Event
	Stats  Stats
}

// New wires a simulation from explicitly constructed parts. No global
// lookup, no hidden singletons; the caller owns everything.
func New(clk *clock.Clock, book *ledger.Ledgers, disp *action.Dispatcher, notifier *notify.Notifier, rates map[string]float64, seasonLengthDays int) *Simulation {
	if seasonLengthDays <= 0 {
		seasonLengthDays = 90
	}
	s := &Simulation{
		Clock:            clk,
		Ledgers:          book,
		Dispatcher:       disp,
		Notifier:         notifier,
		entities:         make(map[schedule.EntityID]*Entity),
		ActivityRates:    rates,
		SeasonLengthDays: seasonLengthDays,
	}

	clk.OnDayRollover = func(day int, dt clock.DayType) {
		clk.SetSeason(seasonNames[(day/s.SeasonLengthDays)%len(seasonNames)])
		notifier.PublishDayRollover(notify.DayRollover{Day: day, DayType: dt, Season: clk.Season()})
		s.dailyReport(day, dt)
	}
	clk.OnTimeSet = func(day int, dt clock.DayType, minutes int, season string) {
		notifier.PublishTimeSet(notify.TimeSet{Day: day, DayType: dt, Minutes: minutes, Season: season})
	}

	book.OnCritical = func(id string, amount, threshold float64) {
		notifier.PublishResourceCritical(notify.ResourceCritical{LedgerID: id, Amount: amount, Threshold: threshold})
		s.recordEvent("resource", fmt.Sprintf("%s critical at %.1f (threshold %.1f)", id, amount, threshold))
	}

	disp.OnComplete = func(sc *action.Scheduled, def action.Definition) {
		s.freeReservation(sc)
		if e, ok := s.entities[sc.EntityID]; ok && def.EnergyCost > 0 {
			e.Health.Energy = max(0, e.Health.Energy-def.EnergyCost)
		}
		desc := fmt.Sprintf("%s completed %s", sc.EntityID, sc.ActionID)
		if t := sc.Params.Target; t != "" {
			desc = fmt.Sprintf("%s completed %s with %s", sc.EntityID, sc.ActionID, t)
		}
		notifier.PublishLifeEvent(notify.LifeEvent{
			EntityID:    sc.EntityID,
			ActionID:    sc.ActionID,
			Description: desc,
		})
		s.recordEvent("action", desc)
	}
	disp.OnCancelled = func(sc *action.Scheduled) {
		s.freeReservation(sc)
		notifier.PublishLifeEvent(notify.LifeEvent{
			EntityID:  sc.EntityID,
			ActionID:  sc.ActionID,
			Cancelled: true,
		})
		s.recordEvent("action", fmt.Sprintf("%s cancelled %s", sc.EntityID, sc.ActionID))
	}

	return s
}

// AddEntity registers an entity. Replaces any existing entity with the
// same id.
func (s *Simulation) AddEntity(e *Entity) {
	if _, exists := s.entities[e.ID]; !exists {
		s.order = append(s.order, e.ID)
	}
	s.entities[e.ID] = e
}

// Entity looks up an entity by id.
func (s *Simulation) Entity(id schedule.EntityID) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// EntityIDs returns registered entities in insertion order.
func (s *Simulation) EntityIDs() []schedule.EntityID { return s.order }

// DayTypeFor maps an absolute day number to its day type: today honors
// any holiday override, future days follow the weekday cycle.
func (s *Simulation) DayTypeFor(day int) clock.DayType {
	if day == s.Clock.Day() {
		return s.Clock.DayType()
	}
	offset := day - s.Clock.Day()
	wd := (int(s.Clock.Weekday()) + offset) % 7
	if wd < 0 {
		wd += 7
	}
	return clock.DayType(wd)
}

// Tick advances the world by deltaMinutes: clock first, then each
// entity's vitals based on its current activity, then ledger decay and
// economy drift, then pending action progress. The embedding
// application owns the call cadence; nothing here assumes a frame rate.
func (s *Simulation) Tick(deltaMinutes int) {
	if deltaMinutes <= 0 {
		return
	}

	// Current activity is sampled at the start of the interval.
	activities := make(map[schedule.EntityID]string, len(s.order))
	for _, id := range s.order {
		e := s.entities[id]
		if item, ok := e.Schedule.ItemAt(s.Clock.DayType(), s.Clock.Day(), s.Clock.MinutesOfDay()); ok {
			activities[id] = item.ActivityID
		}
	}

	s.Clock.AdvanceTime(deltaMinutes)

	for _, id := range s.order {
		e := s.entities[id]
		rate := s.ActivityRates[activities[id]] // zero for idle/unknown
		expired := e.Health.Tick(rate, deltaMinutes)
		for _, c := range expired {
			s.Notifier.PublishConditionChanged(notify.HealthConditionChanged{
				EntityID: id, Condition: c, Expired: true,
			})
			s.recordEvent("health", fmt.Sprintf("%s recovered from %s", e.Name, c.Type))
		}
	}

	removals := s.Ledgers.Tick(float64(deltaMinutes)/60, s.Clock.AbsoluteMinutes())
	for _, r := range removals {
		s.Notifier.PublishResourceRemoved(notify.ResourceRemoved{Removal: r})
		s.recordEvent("resource", fmt.Sprintf("%s %s", r.Resource.ResourceID, r.Cause))
	}

	s.Dispatcher.Advance(deltaMinutes)
}

// AddCondition applies a condition to an entity and notifies.
func (s *Simulation) AddCondition(id schedule.EntityID, c health.Condition) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("unknown entity %q", id)
	}
	e.Health.AddCondition(c)
	s.Notifier.PublishConditionChanged(notify.HealthConditionChanged{EntityID: id, Condition: c})
	s.recordEvent("health", fmt.Sprintf("%s contracted %s", e.Name, c.Type))
	return nil
}

// RequestScheduleModification resolves a candidate item against the
// entity's schedule for the requested day. Conflict rejection is a
// normal result; only malformed input returns an error.
func (s *Simulation) RequestScheduleModification(req schedule.ModificationRequest) (schedule.ModificationResult, error) {
	e, ok := s.entities[req.EntityID]
	if !ok {
		return schedule.ModificationResult{}, fmt.Errorf("unknown entity %q", req.EntityID)
	}
	if err := schedule.Validate(req.Candidate); err != nil {
		return schedule.ModificationResult{}, err
	}
	if req.Day < s.Clock.Day() {
		return schedule.ModificationResult{}, fmt.Errorf("day %d is in the past", req.Day)
	}

	res := e.Schedule.Insert(s.DayTypeFor(req.Day), req.Day, req.Candidate)
	result := schedule.ModificationResult{
		RequestID:   req.ID,
		Accepted:    res.Accepted(),
		Decision:    res.Decision,
		Reason:      res.Reason,
		Conflicting: res.Conflicting,
		Schedule:    res.Items,
	}
	if res.Accepted() {
		displaced := ""
		if res.Conflicting != nil {
			displaced = res.Conflicting.ActivityID
		}
		s.Notifier.PublishScheduleChanged(notify.ScheduleChanged{
			EntityID:    req.EntityID,
			Day:         req.Day,
			Decision:    res.Decision,
			ActivityID:  req.Candidate.ActivityID,
			DisplacedID: displaced,
		})
		s.recordEvent("schedule", fmt.Sprintf("%s: %s %s on day %d",
			req.EntityID, res.Decision, req.Candidate.ActivityID, req.Day))
	}
	return result, nil
}

// ProcessAction dispatches an action inside a transaction boundary.
// Slot-reserving scheduled actions claim a block starting now; a claim
// the resolver rejects fails the whole batch. Immediate time costs
// advance the world through the normal tick path after commit.
func (s *Simulation) ProcessAction(entityID schedule.EntityID, actionID string, p action.Params) (action.Result, error) {
	e, ok := s.entities[entityID]
	if !ok {
		return action.Result{}, fmt.Errorf("unknown entity %q", entityID)
	}
	if t := p.Target; t != "" {
		if _, ok := s.entities[t]; !ok {
			return action.Result{}, fmt.Errorf("unknown target entity %q", t)
		}
	}

	batch := ledger.NewBatch()
	res, err := s.Dispatcher.ProcessAction(entityID, actionID, p, batch)
	if err != nil {
		return action.Result{}, err
	}

	if sc := res.Scheduled; sc != nil {
		if def, _ := s.Dispatcher.Catalog().Get(actionID); def.ReservesSlot {
			s.appendReservation(batch, e, sc, def)
		}
	}

	if err := batch.Commit(); err != nil {
		return action.Result{ActionID: actionID}, err
	}
	s.recordEvent("action", fmt.Sprintf("%s started %s", entityID, actionID))

	// Immediate actions spend their declared energy up front; scheduled
	// ones pay on completion.
	if def, _ := s.Dispatcher.Catalog().Get(actionID); res.Scheduled == nil && def.EnergyCost > 0 {
		e.Health.Energy = max(0, e.Health.Energy-def.EnergyCost)
	}

	if res.TimeCostMinutes > 0 {
		s.Tick(res.TimeCostMinutes)
	}
	return res, nil
}

// appendReservation adds a batch change claiming a schedule block for a
// scheduled action, starting at the current minute.
func (s *Simulation) appendReservation(batch *ledger.Batch, e *Entity, sc *action.Scheduled, def action.Definition) {
	day := s.Clock.Day()
	slot := schedule.TimeSlot{
		Start: s.Clock.MinutesOfDay(),
		End:   s.Clock.MinutesOfDay() + def.DurationMinutes,
	}
	item := schedule.NewItem(slot, sc.ActionID, e.Location, reservationImportance, schedule.Flexibility{})
	if t := sc.Params.Target; t != "" {
		item.Participants = []schedule.EntityID{e.ID, t}
	}

	batch.Append(ledger.Change{
		Describe: fmt.Sprintf("reserve %s for %s", slot, sc.ActionID),
		Validate: func() error {
			res := schedule.Resolve(e.Schedule.ForDay(s.DayTypeFor(day), day), item)
			if !res.Accepted() {
				return fmt.Errorf("time block %s unavailable: %s", slot, res.Reason)
			}
			return nil
		},
		Apply: func() error {
			res := e.Schedule.Insert(s.DayTypeFor(day), day, item)
			if !res.Accepted() {
				return fmt.Errorf("time block %s unavailable: %s", slot, res.Reason)
			}
			sc.ReservedDay = day
			sc.ReservedItemID = item.ID
			return nil
		},
		Rollback: func() {
			e.Schedule.Remove(s.DayTypeFor(day), day, item.ID)
			sc.ReservedDay = 0
			sc.ReservedItemID = ""
		},
	})
}

// freeReservation releases a completed or cancelled action's time block.
func (s *Simulation) freeReservation(sc *action.Scheduled) {
	if sc.ReservedItemID == "" {
		return
	}
	if e, ok := s.entities[sc.EntityID]; ok {
		e.Schedule.Remove(s.DayTypeFor(sc.ReservedDay), sc.ReservedDay, sc.ReservedItemID)
	}
	sc.ReservedItemID = ""
}

// EntityStatus is the outward-facing view of one entity right now.
type EntityStatus struct {
	EntityID  schedule.EntityID `json:"entity_id"`
	Name      string            `json:"name"`
	Activity  string            `json:"activity,omitempty"`
	Location  string            `json:"location"`
	Energy    float64           `json:"energy"`
	Health    float64           `json:"health"`
	Condition string            `json:"condition"`
	Available bool              `json:"available"`
}

// GetEntityStatus reports an entity's current activity, location,
// vitals, and availability.
func (s *Simulation) GetEntityStatus(id schedule.EntityID) (EntityStatus, error) {
	e, ok := s.entities[id]
	if !ok {
		return EntityStatus{}, fmt.Errorf("unknown entity %q", id)
	}
	st := EntityStatus{
		EntityID:  id,
		Name:      e.Name,
		Location:  e.Location,
		Energy:    e.Health.Energy,
		Health:    e.Health.Current,
		Condition: e.Health.Status(),
		Available: true,
	}
	if item, ok := e.Schedule.ItemAt(s.Clock.DayType(), s.Clock.Day(), s.Clock.MinutesOfDay()); ok {
		st.Activity = item.ActivityID
		if item.LocationID != "" {
			st.Location = item.LocationID
		}
		st.Available = false
	}
	return st, nil
}

// GetFutureSchedule returns today's remaining items plus the next
// daysAhead full days.
func (s *Simulation) GetFutureSchedule(id schedule.EntityID, daysAhead int) ([]schedule.DatedItem, error) {
	e, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", id)
	}
	return e.Schedule.FutureWindow(s.Clock.Day(), s.Clock.MinutesOfDay(), daysAhead, s.DayTypeFor), nil
}

func (s *Simulation) recordEvent(category, description string) {
	s.Events = append(s.Events, Event{
		AtMinutes:   s.Clock.AbsoluteMinutes(),
		Description: description,
		Category:    category,
	})
	if len(s.Events) > 1000 {
		s.Events = s.Events[len(s.Events)-1000:]
	}
}

// UpdateStats recomputes the aggregate snapshot.
func (s *Simulation) UpdateStats() {
	st := Stats{Entities: len(s.order), PendingActions: len(s.Dispatcher.Pending()), StoredGoods: len(s.Ledgers.Stored())}
	for _, id := range s.order {
		e := s.entities[id]
		st.AvgEnergy += e.Health.Energy
		st.AvgHealth += e.Health.Current
	}
	if len(s.order) > 0 {
		st.AvgEnergy /= float64(len(s.order))
		st.AvgHealth /= float64(len(s.order))
	}
	for _, l := range s.Ledgers.All() {
		if l.Kind == ledger.KindCurrency {
			st.TotalCurrency += l.Amount
		}
	}
	s.Stats = st
}

func (s *Simulation) dailyReport(day int, dt clock.DayType) {
	s.UpdateStats()
	slog.Info("daily report",
		"day", day,
		"day_type", dt.String(),
		"season", s.Clock.Season(),
		"entities", s.Stats.Entities,
		"avg_energy", fmt.Sprintf("%.1f", s.Stats.AvgEnergy),
		"avg_health", fmt.Sprintf("%.1f", s.Stats.AvgHealth),
		"total_currency", fmt.Sprintf("%.1f", s.Stats.TotalCurrency),
		"pending_actions", s.Stats.PendingActions,
		"economy_inflation", fmt.Sprintf("%.3f", s.Ledgers.Economy.Inflation),
		"economy_stability", fmt.Sprintf("%.2f", s.Ledgers.Economy.Stability),
	)
}
