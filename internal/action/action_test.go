package action

import (
	"errors"
	"testing"

	"github.com/talgya/lifesim/internal/ledger"
)

const testCatalog = `{
  "actions": [
    {
      "id": "buy_bread",
      "duration_minutes": 0,
      "costs": [{"ledger": "wallet", "amount": 4}],
      "yields": [{"ledger": "pantry", "amount": 1}]
    },
    {
      "id": "commute",
      "duration_minutes": 45,
      "time_mode": "immediate",
      "costs": [{"ledger": "wallet", "amount": 2}]
    },
    {
      "id": "bake",
      "duration_minutes": 120,
      "time_mode": "scheduled",
      "costs": [{"ledger": "pantry", "amount": 2}],
      "yields": [{"ledger": "pantry", "amount": 5}],
      "reserves_slot": true
    }
  ]
}`

func capAt(v float64) *float64 { return &v }

func fixture(t *testing.T) (*Dispatcher, *ledger.Ledgers) {
	t.Helper()
	cat, err := ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	b := ledger.NewLedgers(nil)
	b.Register(&ledger.Ledger{ID: "wallet", Kind: ledger.KindCurrency, Amount: 50})
	b.Register(&ledger.Ledger{ID: "pantry", Kind: ledger.KindItem, Amount: 4, Capacity: capAt(30)})
	return NewDispatcher(cat, b), b
}

func TestCatalogRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseCatalog([]byte(`{"actions":[{"duration_minutes":5}]}`)); err == nil {
		t.Fatalf("missing id accepted")
	}
	if _, err := ParseCatalog([]byte(`{"actions":[{"id":"x","costs":[{"ledger":"w","amount":-1}]}]}`)); err == nil {
		t.Fatalf("negative cost accepted")
	}
	if _, err := ParseCatalog([]byte(`{"actions":[{"id":"x","time_mode":"someday"}]}`)); err == nil {
		t.Fatalf("bad time_mode accepted")
	}
}

func TestImmediateActionAppliesCostsAndYields(t *testing.T) {
	d, b := fixture(t)
	batch := ledger.NewBatch()
	res, err := d.ProcessAction("npc-1", "buy_bread", Params{Quantity: 3}, batch)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Scheduled != nil {
		t.Fatalf("immediate action produced a scheduled record")
	}
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	w, _ := b.Get("wallet")
	p, _ := b.Get("pantry")
	if w.Amount != 38 || p.Amount != 7 {
		t.Fatalf("got wallet %.1f pantry %.1f, want 38 / 7", w.Amount, p.Amount)
	}
}

func TestImmediateTimeCostReported(t *testing.T) {
	d, _ := fixture(t)
	batch := ledger.NewBatch()
	res, err := d.ProcessAction("npc-1", "commute", Params{}, batch)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.TimeCostMinutes != 45 {
		t.Fatalf("time cost: got %d, want 45", res.TimeCostMinutes)
	}
}

func TestUnknownActionFails(t *testing.T) {
	d, _ := fixture(t)
	_, err := d.ProcessAction("npc-1", "teleport", Params{}, ledger.NewBatch())
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("got %v, want ErrUnknownAction", err)
	}
}

func TestInsufficientCostAbortsWholeBatch(t *testing.T) {
	d, b := fixture(t)
	batch := ledger.NewBatch()
	if _, err := d.ProcessAction("npc-1", "buy_bread", Params{Quantity: 20}, batch); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := batch.Commit(); !errors.Is(err, ledger.ErrInsufficient) {
		t.Fatalf("commit: got %v, want ErrInsufficient", err)
	}
	w, _ := b.Get("wallet")
	p, _ := b.Get("pantry")
	if w.Amount != 50 || p.Amount != 4 {
		t.Fatalf("batch leaked: wallet %.1f pantry %.1f", w.Amount, p.Amount)
	}
}

func TestScheduledActionProgressAndCompletion(t *testing.T) {
	d, b := fixture(t)
	batch := ledger.NewBatch()
	res, err := d.ProcessAction("npc-1", "bake", Params{}, batch)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	s := res.Scheduled
	if s == nil || s.Status != StatusPending {
		t.Fatalf("scheduled record: %+v", s)
	}
	// Costs apply up front.
	p, _ := b.Get("pantry")
	if p.Amount != 2 {
		t.Fatalf("pantry after costs: got %.1f, want 2", p.Amount)
	}

	var completed *Scheduled
	d.OnComplete = func(sc *Scheduled, def Definition) { completed = sc }

	d.Advance(30)
	if s.Status != StatusInProgress || s.Progress != 0.25 {
		t.Fatalf("after 30m: status %v progress %.2f, want in_progress 0.25", s.Status, s.Progress)
	}
	d.Advance(90)
	if completed == nil || completed.Status != StatusCompleted || completed.Progress != 1 {
		t.Fatalf("completion: %+v", completed)
	}
	if len(d.Pending()) != 0 {
		t.Fatalf("pending not drained: %d", len(d.Pending()))
	}
	// Yields land on completion.
	if p.Amount != 7 {
		t.Fatalf("pantry after yields: got %.1f, want 7", p.Amount)
	}
}

func TestCancelledActionReapedWithoutYields(t *testing.T) {
	d, b := fixture(t)
	batch := ledger.NewBatch()
	res, _ := d.ProcessAction("npc-1", "bake", Params{}, batch)
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var reaped *Scheduled
	d.OnCancelled = func(s *Scheduled) { reaped = s }

	if !d.Cancel(res.Scheduled.ID) {
		t.Fatalf("cancel failed")
	}
	d.Advance(10)
	if reaped == nil || reaped.ID != res.Scheduled.ID {
		t.Fatalf("cancelled action not reaped: %+v", reaped)
	}
	p, _ := b.Get("pantry")
	if p.Amount != 2 {
		t.Fatalf("yields applied despite cancel: got %.1f, want 2", p.Amount)
	}
}
