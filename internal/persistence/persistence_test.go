package persistence

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/talgya/lifesim/internal/action"
	"github.com/talgya/lifesim/internal/clock"
	"github.com/talgya/lifesim/internal/health"
	"github.com/talgya/lifesim/internal/ledger"
	"github.com/talgya/lifesim/internal/schedule"
	"github.com/talgya/lifesim/internal/sim"
)

func sampleSave(t *testing.T) sim.SaveData {
	t.Helper()
	slot, err := schedule.NewTimeSlot(540, 600)
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	capacity := 20.0
	return sim.SaveData{
		Version: sim.SaveVersion,
		Clock:   sim.ClockState{Day: 12, Weekday: clock.Friday, Holiday: true, Minutes: 615, Season: "summer"},
		Entities: []sim.EntitySave{{
			ID:       "npc-1",
			Name:     "Mara",
			Location: "home",
			Health: health.State{
				BaseMax: 100, Current: 82, Energy: 55,
				Conditions: []health.Condition{{
					Type: "flu", Severity: 0.6, RemainingMinutes: 300,
					EffectsPerMinute: map[health.Stat]float64{health.StatHealth: -0.02},
				}},
			},
			Templates: map[clock.DayType][]schedule.Item{
				clock.Friday: {schedule.NewItem(slot, "breakfast", "kitchen", 60, schedule.Flexibility{MaxShiftMinutes: 30, SkipProbability: 0.8})},
			},
			SpecialDays: map[int][]schedule.Item{
				12: {schedule.NewItem(slot, "festival", "plaza", 90, schedule.Flexibility{})},
			},
		}},
		Ledgers: []ledger.Ledger{
			{ID: "npc-1.wallet", Kind: ledger.KindCurrency, Amount: 37.5, CriticalThreshold: 5},
			{ID: "npc-1.pantry", Kind: ledger.KindItem, Amount: 6, Capacity: &capacity, DecayRatePerHour: 0.1},
		},
		Stored: []ledger.StoredResource{{
			ResourceKind: ledger.KindItem, ResourceID: "grain", Amount: 10,
			Quality: 0.8, DeteriorationRatePerHour: 0.05, StoredAt: 1000, ExpiresAt: 20000,
		}},
		Economy: ledger.EconomyState{Inflation: 0.04, Stability: 0.7, TaxRate: 0.05, Recession: true, DriftIntervalHours: 24},
		Pending: []action.Scheduled{{
			ID: "act-1", ActionID: "bake", EntityID: "npc-1",
			TotalMinutes: 120, RemainingMinutes: 45, Progress: 0.625,
			ReservedDay: 12, ReservedItemID: "item-9",
		}},
		Events: []sim.Event{
			{AtMinutes: 17895, Description: "npc-1 started bake", Category: "action"},
			{AtMinutes: 17900, Description: "npc-1.wallet critical at 4.0 (threshold 5.0)", Category: "resource"},
		},
	}
}

func TestSaveLoadWorldRoundTrip(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	want := sampleSave(t)
	if err := db.SaveWorld(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := db.LoadWorld()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got.Clock != want.Clock {
		t.Fatalf("clock: got %+v, want %+v", got.Clock, want.Clock)
	}
	if len(got.Entities) != 1 {
		t.Fatalf("entities: %d", len(got.Entities))
	}
	e := got.Entities[0]
	if e.Name != "Mara" || e.Health.Current != 82 || len(e.Health.Conditions) != 1 {
		t.Fatalf("entity: %+v", e)
	}
	if e.Health.Conditions[0].EffectsPerMinute[health.StatHealth] != -0.02 {
		t.Fatalf("condition effects: %+v", e.Health.Conditions[0])
	}
	if len(e.Templates[clock.Friday]) != 1 || e.Templates[clock.Friday][0].ActivityID != "breakfast" {
		t.Fatalf("templates: %+v", e.Templates)
	}
	if len(e.SpecialDays[12]) != 1 || e.SpecialDays[12][0].ActivityID != "festival" {
		t.Fatalf("special days: %+v", e.SpecialDays)
	}

	if len(got.Ledgers) != 2 || got.Ledgers[0].ID != "npc-1.wallet" {
		t.Fatalf("ledger order: %+v", got.Ledgers)
	}
	pantry := got.Ledgers[1]
	if pantry.Capacity == nil || *pantry.Capacity != 20 || pantry.DecayRatePerHour != 0.1 {
		t.Fatalf("pantry: %+v", pantry)
	}
	if got.Ledgers[0].Capacity != nil {
		t.Fatalf("wallet grew a capacity: %+v", got.Ledgers[0])
	}

	if len(got.Stored) != 1 || got.Stored[0].Quality != 0.8 || got.Stored[0].ExpiresAt != 20000 {
		t.Fatalf("stored: %+v", got.Stored)
	}
	if got.Economy != want.Economy {
		t.Fatalf("economy: got %+v, want %+v", got.Economy, want.Economy)
	}
	if len(got.Pending) != 1 || got.Pending[0].RemainingMinutes != 45 || got.Pending[0].ReservedItemID != "item-9" {
		t.Fatalf("pending: %+v", got.Pending)
	}
	if len(got.Events) != 2 || got.Events[0].AtMinutes != 17895 {
		t.Fatalf("events: %+v", got.Events)
	}
}

func TestLoadWorldEmptyDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.LoadWorld(); !errors.Is(err, ErrNoSave) {
		t.Fatalf("got %v, want ErrNoSave", err)
	}
}

func TestSaveWorldReplacesPreviousSave(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	first := sampleSave(t)
	if err := db.SaveWorld(first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second := sampleSave(t)
	second.Clock.Day = 13
	second.Pending = nil
	second.Events = second.Events[:1]
	if err := db.SaveWorld(second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := db.LoadWorld()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Clock.Day != 13 || len(got.Pending) != 0 || len(got.Events) != 1 {
		t.Fatalf("stale rows survived: day %d pending %d events %d",
			got.Clock.Day, len(got.Pending), len(got.Events))
	}
}

func TestRecentEventsNewestFirst(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.SaveWorld(sampleSave(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	events, err := db.RecentEvents(1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 1 || events[0].AtMinutes != 17900 {
		t.Fatalf("recent events: %+v", events)
	}
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves", "day12.snap")
	want := sampleSave(t)

	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if got.Clock != want.Clock || got.Economy != want.Economy {
		t.Fatalf("header state: %+v / %+v", got.Clock, got.Economy)
	}
	if len(got.Entities) != 1 || got.Entities[0].Templates[clock.Friday][0].Slot.Start != 540 {
		t.Fatalf("entities: %+v", got.Entities)
	}
	if len(got.Pending) != 1 || got.Pending[0].ID != "act-1" {
		t.Fatalf("pending: %+v", got.Pending)
	}
}

func TestReadSnapshotRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.snap")
	data := sampleSave(t)
	data.Version = sim.SaveVersion + 1
	if err := WriteSnapshot(path, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("future version accepted")
	}
}
