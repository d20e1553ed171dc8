package action

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/lifesim/internal/ledger"
	"github.com/talgya/lifesim/internal/schedule"
)

// ErrUnknownAction reports an action id missing from the catalog.
var ErrUnknownAction = errors.New("unknown action")

// Status is a scheduled action's lifecycle state. Cancellation is a
// flag checked on the next tick, never an interrupt.
type Status uint8

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

var statusNames = [...]string{"pending", "in_progress", "completed", "cancelled"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Params carries the caller-supplied action parameters, decoded at the
// boundary. Quantity scales costs and yields; zero means one. Target
// optionally names a second entity taking part: it joins the reserved
// time block and the completion event.
type Params struct {
	Quantity float64           `json:"quantity,omitempty"`
	Target   schedule.EntityID `json:"target,omitempty"`
}

func (p Params) quantity() float64 {
	if p.Quantity <= 0 {
		return 1
	}
	return p.Quantity
}

// Scheduled is a long-running action advanced by the clock tick. Not a
// thread: a state record whose progress is recomputed each tick.
type Scheduled struct {
	ID               string            `json:"id"`
	ActionID         string            `json:"action_id"`
	EntityID         schedule.EntityID `json:"entity_id"`
	Status           Status            `json:"status"`
	TotalMinutes     int               `json:"total_minutes"`
	RemainingMinutes int               `json:"remaining_minutes"`
	Progress         float64           `json:"progress"`
	Params           Params            `json:"params"`

	// ReservedDay/ReservedItemID point at the schedule item blocking the
	// entity's time while the action runs; freed on completion or
	// cancellation. Re-derived from this record on restore.
	ReservedDay    int    `json:"reserved_day,omitempty"`
	ReservedItemID string `json:"reserved_item_id,omitempty"`
}

// Result reports an immediate dispatch outcome.
type Result struct {
	ActionID        string     `json:"action_id"`
	Applied         bool       `json:"applied"`
	TimeCostMinutes int        `json:"time_cost_minutes"` // clock advance owed by the caller
	Scheduled       *Scheduled `json:"scheduled,omitempty"`
}

// Dispatcher turns catalog definitions into batch changes and owns the
// pending scheduled actions.
type Dispatcher struct {
	catalog *Catalog
	ledgers *ledger.Ledgers
	pending []*Scheduled

	// OnComplete fires when a scheduled action finishes and its yields
	// have been committed.
	OnComplete func(s *Scheduled, def Definition)
	// OnCancelled fires when a cancelled action is reaped on tick.
	OnCancelled func(s *Scheduled)
}

// NewDispatcher wires a catalog to a ledger book.
func NewDispatcher(catalog *Catalog, ledgers *ledger.Ledgers) *Dispatcher {
	return &Dispatcher{catalog: catalog, ledgers: ledgers}
}

// Catalog returns the action table backing this dispatcher.
func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// Pending returns the live scheduled actions.
func (d *Dispatcher) Pending() []*Scheduled { return d.pending }

// Find returns a scheduled action by ID.
func (d *Dispatcher) Find(id string) (*Scheduled, bool) {
	for _, s := range d.pending {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Restore reinstates scheduled actions from a snapshot.
func (d *Dispatcher) Restore(pending []*Scheduled) { d.pending = pending }

// ProcessAction appends the action's declared costs (and, for
// immediate actions, yields) to the batch. The batch is the
// transaction boundary; the caller commits it. Scheduled actions are
// registered pending and their yields apply on completion.
func (d *Dispatcher) ProcessAction(entityID schedule.EntityID, actionID string, p Params, batch *ledger.Batch) (Result, error) {
	def, ok := d.catalog.Get(actionID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, actionID)
	}
	q := p.quantity()

	for _, c := range def.Costs {
		batch.Append(d.ledgers.DebitChange(c.LedgerID, c.Amount*q, actionID))
	}

	if def.Mode == TimeImmediate {
		for _, y := range def.Yields {
			batch.Append(d.ledgers.CreditChange(y.LedgerID, y.Amount*q, actionID))
		}
		return Result{ActionID: actionID, Applied: true, TimeCostMinutes: def.DurationMinutes}, nil
	}

	s := &Scheduled{
		ID:               uuid.New().String(),
		ActionID:         actionID,
		EntityID:         entityID,
		Status:           StatusPending,
		TotalMinutes:     def.DurationMinutes,
		RemainingMinutes: def.DurationMinutes,
		Params:           p,
	}
	batch.Append(ledger.Change{
		Describe: fmt.Sprintf("schedule %s for %s", actionID, entityID),
		Apply: func() error {
			d.pending = append(d.pending, s)
			return nil
		},
		Rollback: func() {
			for i, ps := range d.pending {
				if ps == s {
					d.pending = append(d.pending[:i], d.pending[i+1:]...)
					return
				}
			}
		},
	})
	return Result{ActionID: actionID, Applied: true, Scheduled: s}, nil
}

// Advance moves every pending action forward by elapsed minutes.
// Progress is recomputed as 1 − remaining/total; reaching zero
// transitions to Completed, commits the yields in their own batch, and
// reports the completion. Cancelled actions are reaped without yields.
func (d *Dispatcher) Advance(deltaMinutes int) {
	if deltaMinutes <= 0 {
		return
	}
	kept := d.pending[:0]
	for _, s := range d.pending {
		if s.Status == StatusCancelled {
			if d.OnCancelled != nil {
				d.OnCancelled(s)
			}
			continue
		}
		s.Status = StatusInProgress
		s.RemainingMinutes -= deltaMinutes
		if s.RemainingMinutes > 0 {
			s.Progress = 1 - float64(s.RemainingMinutes)/float64(s.TotalMinutes)
			kept = append(kept, s)
			continue
		}
		s.RemainingMinutes = 0
		s.Progress = 1
		s.Status = StatusCompleted

		def, _ := d.catalog.Get(s.ActionID)
		q := s.Params.quantity()
		batch := ledger.NewBatch()
		for _, y := range def.Yields {
			batch.Append(d.ledgers.CreditChange(y.LedgerID, y.Amount*q, s.ActionID))
		}
		if err := batch.Commit(); err != nil {
			// Yields that cannot land (full ledgers) are forfeit; the
			// action itself still completed.
			slog.Warn("scheduled action yields forfeit", "action", s.ActionID, "error", err)
		}
		if d.OnComplete != nil {
			d.OnComplete(s, def)
		}
	}
	d.pending = kept
}

// Cancel flags a pending action for reaping on the next tick.
func (d *Dispatcher) Cancel(id string) bool {
	s, ok := d.Find(id)
	if !ok || s.Status == StatusCompleted {
		return false
	}
	s.Status = StatusCancelled
	return true
}
