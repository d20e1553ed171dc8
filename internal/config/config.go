// Package config loads the simulation tuning file (YAML) and the
// schedule template format. String-typed enums (ledger kinds, day
// names) are decoded here once, at the boundary.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/lifesim/internal/ledger"
)

// Tuning is the top-level simulation configuration.
type Tuning struct {
	Seed             int64  `yaml:"seed"`
	DBPath           string `yaml:"db_path"`
	APIPort          int    `yaml:"api_port"`
	AdminKey         string `yaml:"admin_key"`
	TickMinutes      int    `yaml:"tick_minutes"`
	TickIntervalMs   int    `yaml:"tick_interval_ms"`
	Season           string `yaml:"season"`
	SeasonLengthDays int    `yaml:"season_length_days"`
	CatalogPath      string `yaml:"catalog_path"`
	SnapshotPath     string `yaml:"snapshot_path"`

	Economy EconomyTuning `yaml:"economy"`

	Activities []ActivityDef `yaml:"activities"`
	Entities   []EntityDef   `yaml:"entities"`
}

// EconomyTuning controls the drift policy.
type EconomyTuning struct {
	DriftIntervalHours float64 `yaml:"drift_interval_hours"`
	DriftAmplitude     float64 `yaml:"drift_amplitude"`
	DriftDisabled      bool    `yaml:"drift_disabled"`
}

// ActivityDef describes one activity's effect on the entity doing it.
// Negative energy per minute means recovery.
type ActivityDef struct {
	ID              string  `yaml:"id"`
	EnergyPerMinute float64 `yaml:"energy_per_minute"`
}

// EntityDef declares one simulated entity.
type EntityDef struct {
	ID           string      `yaml:"id"`
	Name         string      `yaml:"name"`
	HealthMax    float64     `yaml:"health_max"`
	Location     string      `yaml:"location"`
	TemplateFile string      `yaml:"template_file"`
	Ledgers      []LedgerDef `yaml:"ledgers"`
}

// LedgerDef declares one balance. Kind is a string in the file and an
// enum everywhere else.
type LedgerDef struct {
	ID                string   `yaml:"id"`
	Kind              string   `yaml:"kind"`
	Amount            float64  `yaml:"amount"`
	Capacity          *float64 `yaml:"capacity,omitempty"`
	CanGoNegative     bool     `yaml:"can_go_negative"`
	DecayRatePerHour  float64  `yaml:"decay_rate_per_hour"`
	CriticalThreshold float64  `yaml:"critical_threshold"`
}

// ParseKind decodes a ledger kind string.
func ParseKind(s string) (ledger.Kind, error) {
	switch s {
	case "currency":
		return ledger.KindCurrency, nil
	case "item":
		return ledger.KindItem, nil
	case "time":
		return ledger.KindTime, nil
	}
	return 0, fmt.Errorf("unknown ledger kind %q", s)
}

// ToLedger converts a definition into a registered ledger value.
func (d LedgerDef) ToLedger() (*ledger.Ledger, error) {
	kind, err := ParseKind(d.Kind)
	if err != nil {
		return nil, fmt.Errorf("ledger %q: %w", d.ID, err)
	}
	return &ledger.Ledger{
		ID:                d.ID,
		Kind:              kind,
		Amount:            d.Amount,
		Capacity:          d.Capacity,
		CanGoNegative:     d.CanGoNegative,
		DecayRatePerHour:  d.DecayRatePerHour,
		CriticalThreshold: d.CriticalThreshold,
	}, nil
}

// Load reads and validates a tuning file.
func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning: %w", err)
	}
	t.applyDefaults()
	if err := t.validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t *Tuning) applyDefaults() {
	if t.DBPath == "" {
		t.DBPath = "data/lifesim.db"
	}
	if t.APIPort == 0 {
		t.APIPort = 8080
	}
	if t.CatalogPath == "" {
		t.CatalogPath = "config/actions.json"
	}
	if t.TickMinutes == 0 {
		t.TickMinutes = 1
	}
	if t.TickIntervalMs == 0 {
		t.TickIntervalMs = 1000
	}
	if t.Season == "" {
		t.Season = "spring"
	}
	if t.SeasonLengthDays == 0 {
		t.SeasonLengthDays = 90
	}
	if t.Economy.DriftIntervalHours == 0 {
		t.Economy.DriftIntervalHours = 24
	}
	if t.Economy.DriftAmplitude == 0 {
		t.Economy.DriftAmplitude = 0.02
	}
}

func (t *Tuning) validate() error {
	if t.TickMinutes < 0 {
		return fmt.Errorf("tick_minutes must be positive")
	}
	seen := make(map[string]bool)
	for _, e := range t.Entities {
		if e.ID == "" {
			return fmt.Errorf("entity with empty id")
		}
		if seen[e.ID] {
			return fmt.Errorf("duplicate entity id %q", e.ID)
		}
		seen[e.ID] = true
		for _, l := range e.Ledgers {
			if _, err := ParseKind(l.Kind); err != nil {
				return err
			}
		}
	}
	return nil
}

// ActivityRates flattens the activity defs into a lookup table.
func (t *Tuning) ActivityRates() map[string]float64 {
	out := make(map[string]float64, len(t.Activities))
	for _, a := range t.Activities {
		out[a.ID] = a.EnergyPerMinute
	}
	return out
}
