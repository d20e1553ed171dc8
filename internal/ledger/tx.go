package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// Change is one step of a transaction batch: validated up front,
// applied in order, compensated in reverse on partial failure.
type Change struct {
	Describe string
	Validate func() error
	Apply    func() error
	Rollback func()
}

// Batch is an ordered, all-or-nothing group of changes. Validation
// failures before commit leave every ledger untouched; apply failures
// mid-stream (time-dependent ordering discovered late) unwind the
// already-applied prefix in reverse order.
type Batch struct {
	ID      string
	changes []Change
}

// NewBatch creates an empty batch with a fresh ID.
func NewBatch() *Batch {
	return &Batch{ID: uuid.New().String()}
}

// Append adds a change to the batch.
func (t *Batch) Append(c Change) { t.changes = append(t.changes, c) }

// Len returns the number of changes queued.
func (t *Batch) Len() int { return len(t.changes) }

// Commit validates every change, then applies them in order. Any
// validation error aborts before the first apply. Any apply error
// rolls back the applied prefix in reverse and is returned.
func (t *Batch) Commit() error {
	for _, c := range t.changes {
		if c.Validate == nil {
			continue
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("batch %s validate %q: %w", t.ID, c.Describe, err)
		}
	}
	for i, c := range t.changes {
		if c.Apply == nil {
			continue
		}
		if err := c.Apply(); err != nil {
			for j := i - 1; j >= 0; j-- {
				if t.changes[j].Rollback != nil {
					t.changes[j].Rollback()
				}
			}
			return fmt.Errorf("batch %s apply %q: %w", t.ID, c.Describe, err)
		}
	}
	return nil
}

// CreditChange builds a change crediting a ledger, with a compensating
// debit capturing the actually-applied (possibly clamped) amount.
func (b *Ledgers) CreditChange(id string, amount float64, source string) Change {
	var applied float64
	return Change{
		Describe: fmt.Sprintf("credit %s %+.3f", id, amount),
		Validate: func() error {
			if amount <= 0 {
				return fmt.Errorf("%w: credit amount %.3f", ErrValidation, amount)
			}
			l, ok := b.ledgers[id]
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownLedger, id)
			}
			if l.Capacity != nil && l.Amount >= *l.Capacity {
				return fmt.Errorf("%w: ledger %q full", ErrCapacity, id)
			}
			return nil
		},
		Apply: func() error {
			var err error
			applied, err = b.Add(id, amount, source)
			return err
		},
		Rollback: func() {
			if applied > 0 {
				if l, ok := b.ledgers[id]; ok {
					l.Amount -= applied
					b.record(id, -applied, "rollback", false)
				}
			}
		},
	}
}

// DebitChange builds a change debiting a ledger, with a compensating
// credit. The balance check runs both at validation and at apply time;
// earlier changes in the batch may have moved the balance in between.
func (b *Ledgers) DebitChange(id string, amount float64, destination string) Change {
	return Change{
		Describe: fmt.Sprintf("debit %s %.3f", id, amount),
		Validate: func() error {
			if amount <= 0 {
				return fmt.Errorf("%w: debit amount %.3f", ErrValidation, amount)
			}
			l, ok := b.ledgers[id]
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownLedger, id)
			}
			if !l.CanGoNegative && l.Amount < amount {
				return fmt.Errorf("%w: ledger %q has %.3f, need %.3f", ErrInsufficient, id, l.Amount, amount)
			}
			return nil
		},
		Apply: func() error {
			return b.Remove(id, amount, destination)
		},
		Rollback: func() {
			if l, ok := b.ledgers[id]; ok {
				l.Amount += amount
				b.record(id, amount, "rollback", false)
			}
		},
	}
}
