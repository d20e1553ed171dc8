package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/lifesim/internal/clock"
	"github.com/talgya/lifesim/internal/ledger"
)

const sampleTuning = `
seed: 42
db_path: data/test.db
api_port: 8080
season: spring
activities:
  - id: work
    energy_per_minute: 0.3
  - id: sleep
    energy_per_minute: -0.8
entities:
  - id: npc-1
    name: Mara
    health_max: 100
    location: home
    ledgers:
      - id: npc-1.wallet
        kind: currency
        amount: 40
        critical_threshold: 5
      - id: npc-1.pantry
        kind: item
        amount: 5
        capacity: 20
`

func TestLoadTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(sampleTuning), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tn, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tn.Seed != 42 || tn.APIPort != 8080 {
		t.Fatalf("basic fields: %+v", tn)
	}
	// Defaults fill in.
	if tn.TickMinutes != 1 || tn.Economy.DriftIntervalHours != 24 {
		t.Fatalf("defaults not applied: %+v", tn)
	}
	rates := tn.ActivityRates()
	if rates["sleep"] != -0.8 {
		t.Fatalf("activity rates: %+v", rates)
	}

	l, err := tn.Entities[0].Ledgers[1].ToLedger()
	if err != nil {
		t.Fatalf("to ledger: %v", err)
	}
	if l.Kind != ledger.KindItem || l.Capacity == nil || *l.Capacity != 20 {
		t.Fatalf("ledger conversion: %+v", l)
	}
}

func TestLoadRejectsBadKindAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte(`
entities:
  - id: a
    ledgers:
      - id: a.x
        kind: mana
`), 0o644)
	if _, err := Load(bad); err == nil {
		t.Fatalf("unknown kind accepted")
	}

	dup := filepath.Join(dir, "dup.yaml")
	os.WriteFile(dup, []byte("entities:\n  - id: a\n  - id: a\n"), 0o644)
	if _, err := Load(dup); err == nil {
		t.Fatalf("duplicate entity accepted")
	}
}

const sampleTemplate = `
# Mara's week
mon,tue,wed,thu,fri: 07:00-08:00 breakfast @kitchen !60 ~30/0.8; 09:00-17:00 work @shop !80
sat: 10:00-11:00 market @plaza !40 ~60/0.9
sun: 22:00-06:00 night_shift @mill !70
`

func TestParseTemplates(t *testing.T) {
	tpl, err := ParseTemplates(sampleTemplate)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	mon := tpl[clock.Monday]
	if len(mon) != 2 {
		t.Fatalf("monday entries: got %d, want 2", len(mon))
	}
	bk := mon[0]
	if bk.ActivityID != "breakfast" || bk.Slot.Start != 420 || bk.Slot.End != 480 {
		t.Fatalf("breakfast: %+v", bk)
	}
	if bk.LocationID != "kitchen" || bk.Importance != 60 {
		t.Fatalf("breakfast fields: %+v", bk)
	}
	if bk.Flex.MaxShiftMinutes != 30 || bk.Flex.SkipProbability != 0.8 {
		t.Fatalf("breakfast flex: %+v", bk.Flex)
	}

	work := mon[1]
	if work.Importance != 80 || work.Flex.MaxShiftMinutes != 0 {
		t.Fatalf("work defaults: %+v", work)
	}

	if len(tpl[clock.Friday]) != 2 || len(tpl[clock.Saturday]) != 1 {
		t.Fatalf("day spread: fri %d sat %d", len(tpl[clock.Friday]), len(tpl[clock.Saturday]))
	}

	// Items stamped per day get distinct identities.
	if tpl[clock.Monday][0].ID == tpl[clock.Tuesday][0].ID {
		t.Fatalf("template items share IDs across days")
	}

	// Overnight span runs past midnight.
	night := tpl[clock.Sunday][0]
	if night.Slot.Start != 1320 || night.Slot.End != 1800 {
		t.Fatalf("overnight slot: %+v", night.Slot)
	}
}

func TestParseTemplateErrors(t *testing.T) {
	if _, err := ParseTemplates("xyzday: 09:00-10:00 work"); err == nil {
		t.Fatalf("unknown day accepted")
	}
	if _, err := ParseTemplates("mon: 25:00-26:00 work"); err == nil {
		t.Fatalf("bad hour accepted")
	}
	if _, err := ParseTemplates("mon: 09:00-10:00"); err == nil {
		t.Fatalf("missing activity accepted")
	}
}
