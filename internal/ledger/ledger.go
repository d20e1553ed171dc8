// Package ledger provides typed, capacity-bounded balances (currency,
// stored goods, time budgets), decay over elapsed sim-time, conversion
// between balance kinds at an economy-derived rate, and atomic
// multi-ledger transaction batches with per-change rollback.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Kind classifies what a ledger balance measures.
type Kind uint8

const (
	KindCurrency Kind = iota
	KindItem
	KindTime
)

var kindNames = [...]string{"currency", "item", "time"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Failure classes. Rejected business outcomes are returned as these
// sentinel errors wrapped with context; malformed input is ErrValidation.
var (
	ErrValidation    = errors.New("validation failed")
	ErrInsufficient  = errors.New("insufficient balance")
	ErrUnknownLedger = errors.New("unknown ledger")
	ErrCapacity      = errors.New("capacity exceeded")
)

// Ledger is one typed balance. Capacity nil means unbounded. Amount
// stays within [0, capacity] unless CanGoNegative; overflow is clamped
// and the clamped delta is what gets recorded.
type Ledger struct {
	ID               string   `json:"id"`
	Kind             Kind     `json:"kind"`
	Amount           float64  `json:"amount"`
	Capacity         *float64 `json:"capacity,omitempty"`
	CanGoNegative    bool     `json:"can_go_negative"`
	DecayRatePerHour float64  `json:"decay_rate_per_hour"`

	// CriticalThreshold, when positive, triggers OnCritical whenever the
	// balance drops to or below it.
	CriticalThreshold float64 `json:"critical_threshold,omitempty"`
}

// Entry is one line in the transaction log.
type Entry struct {
	ID       string  `json:"id"`
	LedgerID string  `json:"ledger_id"`
	Delta    float64 `json:"delta"` // applied (post-clamp) delta
	Party    string  `json:"party"` // source or destination label
	Clamped  bool    `json:"clamped"`
}

// Ledgers owns a set of balances, the stored-resource shelf, the
// economy state, and the transaction log. Not goroutine-safe; the
// simulation tick owns it exclusively.
type Ledgers struct {
	ledgers map[string]*Ledger
	order   []string // stable iteration for determinism
	stored  []*StoredResource
	log     []Entry

	Economy EconomyState
	Drift   DriftPolicy

	// OnCritical fires when a balance crosses its critical threshold
	// downward.
	OnCritical func(ledgerID string, amount, threshold float64)
}

// NewLedgers creates an empty book with the given drift policy.
// A nil policy freezes the economy parameters (deterministic tests).
func NewLedgers(drift DriftPolicy) *Ledgers {
	return &Ledgers{
		ledgers: make(map[string]*Ledger),
		Economy: DefaultEconomy(),
		Drift:   drift,
	}
}

// Register adds a ledger to the book. Re-registering an ID replaces it.
func (b *Ledgers) Register(l *Ledger) error {
	if l == nil || l.ID == "" {
		return fmt.Errorf("%w: ledger needs an id", ErrValidation)
	}
	if _, exists := b.ledgers[l.ID]; !exists {
		b.order = append(b.order, l.ID)
	}
	b.ledgers[l.ID] = l
	return nil
}

// RestoreFrom replaces the book's balances, shelf, and economy state
// in place, so holders of the *Ledgers pointer stay wired. The log is
// cleared; drift policy and callbacks are kept.
func (b *Ledgers) RestoreFrom(ledgers []Ledger, stored []StoredResource, eco EconomyState) {
	b.ledgers = make(map[string]*Ledger, len(ledgers))
	b.order = b.order[:0]
	for i := range ledgers {
		l := ledgers[i]
		b.Register(&l)
	}
	b.stored = b.stored[:0]
	for _, r := range stored {
		b.Store(r)
	}
	b.log = nil
	b.Economy = eco
}

// Get returns a ledger by ID.
func (b *Ledgers) Get(id string) (*Ledger, bool) {
	l, ok := b.ledgers[id]
	return l, ok
}

// All returns the ledgers in registration order.
func (b *Ledgers) All() []*Ledger {
	out := make([]*Ledger, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.ledgers[id])
	}
	return out
}

// Log returns the transaction log.
func (b *Ledgers) Log() []Entry { return b.log }

func (b *Ledgers) record(ledgerID string, delta float64, party string, clamped bool) {
	b.log = append(b.log, Entry{
		ID:       uuid.New().String(),
		LedgerID: ledgerID,
		Delta:    delta,
		Party:    party,
		Clamped:  clamped,
	})
	// Bounded log, same discipline as the event ring.
	if len(b.log) > 4096 {
		b.log = b.log[len(b.log)-4096:]
	}
}

// Add credits a ledger. The applied delta is clamped to capacity; a
// clamp that still applies a positive delta is a warning, a clamp down
// to nothing is ErrCapacity. Returns the applied delta.
func (b *Ledgers) Add(id string, amount float64, source string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: add amount %.3f must be positive", ErrValidation, amount)
	}
	l, ok := b.ledgers[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLedger, id)
	}

	applied := amount
	clamped := false
	if l.Capacity != nil && l.Amount+amount > *l.Capacity {
		applied = *l.Capacity - l.Amount
		clamped = true
	}
	if applied <= 0 {
		return 0, fmt.Errorf("%w: ledger %q full at %.3f", ErrCapacity, id, l.Amount)
	}
	l.Amount += applied
	b.record(id, applied, source, clamped)
	if clamped {
		slog.Warn("ledger capacity clamp", "ledger", id, "requested", amount, "applied", applied)
	}
	return applied, nil
}

// Remove debits a ledger. Fails with ErrInsufficient when the balance
// cannot cover the amount and the ledger may not go negative.
func (b *Ledgers) Remove(id string, amount float64, destination string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: remove amount %.3f must be positive", ErrValidation, amount)
	}
	l, ok := b.ledgers[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLedger, id)
	}
	if !l.CanGoNegative && l.Amount < amount {
		return fmt.Errorf("%w: ledger %q has %.3f, need %.3f", ErrInsufficient, id, l.Amount, amount)
	}
	l.Amount -= amount
	b.record(id, -amount, destination, false)
	b.checkCritical(l)
	return nil
}

func (b *Ledgers) checkCritical(l *Ledger) {
	if l.CriticalThreshold > 0 && l.Amount <= l.CriticalThreshold && b.OnCritical != nil {
		b.OnCritical(l.ID, l.Amount, l.CriticalThreshold)
	}
}

// Convert moves value between two ledgers at the economy rate. If the
// destination would overflow its capacity, the converted amount is
// clamped and the source debit is proportionally reduced to match.
// Returns the amount credited to the destination.
func (b *Ledgers) Convert(fromID, toID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: convert amount %.3f must be positive", ErrValidation, amount)
	}
	from, ok := b.ledgers[fromID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLedger, fromID)
	}
	to, ok := b.ledgers[toID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLedger, toID)
	}
	if !from.CanGoNegative && from.Amount < amount {
		return 0, fmt.Errorf("%w: ledger %q has %.3f, need %.3f", ErrInsufficient, fromID, from.Amount, amount)
	}

	rate := b.Economy.Rate(from.Kind, to.Kind)
	converted := amount * rate
	consumed := amount

	if to.Capacity != nil && to.Amount+converted > *to.Capacity {
		headroom := *to.Capacity - to.Amount
		if headroom <= 0 {
			return 0, fmt.Errorf("%w: ledger %q full at %.3f", ErrCapacity, toID, to.Amount)
		}
		consumed = amount * (headroom / converted)
		converted = headroom
		slog.Warn("conversion clamped to destination capacity",
			"from", fromID, "to", toID, "requested", amount, "consumed", consumed)
	}

	from.Amount -= consumed
	to.Amount += converted
	b.record(fromID, -consumed, toID, false)
	b.record(toID, converted, fromID, converted < amount*rate)
	b.checkCritical(from)
	return converted, nil
}
