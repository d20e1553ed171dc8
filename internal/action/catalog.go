// Package action maps abstract action ids to ledger and schedule
// mutations. Definitions come from a JSON catalog validated against an
// embedded schema; dispatch builds transaction batches, and
// longer-running actions become scheduled records advanced by the
// clock tick.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	_ "embed"
)

//go:embed catalog.schema.json
var catalogSchema string

// TimeMode says how an action spends its duration.
type TimeMode uint8

const (
	// TimeImmediate: the clock jumps the full duration when the action
	// is processed.
	TimeImmediate TimeMode = iota
	// TimeScheduled: the action becomes a pending record and accrues
	// progress tick by tick.
	TimeScheduled
)

// Cost is one ledger debit an action requires.
type Cost struct {
	LedgerID string  `json:"ledger"`
	Amount   float64 `json:"amount"`
}

// Yield is one ledger credit an action produces on completion.
type Yield struct {
	LedgerID string  `json:"ledger"`
	Amount   float64 `json:"amount"`
}

// Definition is one catalog entry. The time mode string in the JSON is
// decoded here once; nothing downstream parses it again.
type Definition struct {
	ID              string   `json:"id"`
	Description     string   `json:"description,omitempty"`
	DurationMinutes int      `json:"duration_minutes"`
	Mode            TimeMode `json:"-"`
	Costs           []Cost   `json:"costs,omitempty"`
	Yields          []Yield  `json:"yields,omitempty"`
	EnergyCost      float64  `json:"energy_cost,omitempty"`
	ReservesSlot    bool     `json:"reserves_slot,omitempty"`
}

type rawDefinition struct {
	Definition
	TimeMode string `json:"time_mode,omitempty"`
}

type rawCatalog struct {
	Actions []rawDefinition `json:"actions"`
}

// Catalog is the loaded action table.
type Catalog struct {
	defs map[string]Definition
}

// Get looks up a definition by action id.
func (c *Catalog) Get(id string) (Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// IDs returns the catalog keys, unordered.
func (c *Catalog) IDs() []string {
	out := make([]string, 0, len(c.defs))
	for id := range c.defs {
		out = append(out, id)
	}
	return out
}

// LoadCatalog reads and validates an action catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog validates catalog JSON against the embedded schema and
// decodes it.
func ParseCatalog(raw []byte) (*Catalog, error) {
	sch, err := jsonschema.CompileString("catalog.schema.json", catalogSchema)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("catalog json: %w", err)
	}
	if err := sch.Validate(generic); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	var rc rawCatalog
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("catalog decode: %w", err)
	}

	defs := make(map[string]Definition, len(rc.Actions))
	for _, r := range rc.Actions {
		d := r.Definition
		switch r.TimeMode {
		case "", "scheduled":
			d.Mode = TimeScheduled
		case "immediate":
			d.Mode = TimeImmediate
		default:
			return nil, fmt.Errorf("action %q: unknown time_mode %q", d.ID, r.TimeMode)
		}
		if d.DurationMinutes == 0 {
			d.Mode = TimeImmediate
		}
		if _, dup := defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate action id %q", d.ID)
		}
		defs[d.ID] = d
	}
	return &Catalog{defs: defs}, nil
}
