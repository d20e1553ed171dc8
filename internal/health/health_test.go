package health

import "testing"

func TestTickConsumesAndRecoversEnergy(t *testing.T) {
	s := NewState(100)
	s.Tick(0.5, 60) // working: 0.5/min for an hour
	if s.Energy != 70 {
		t.Fatalf("energy after work: got %.1f, want 70", s.Energy)
	}
	s.Tick(-1.0, 120) // sleeping: recovery clamps at 100
	if s.Energy != 100 {
		t.Fatalf("energy after sleep: got %.1f, want 100 (clamped)", s.Energy)
	}
}

func TestConditionEffectsAndExpiry(t *testing.T) {
	s := NewState(100)
	s.AddCondition(Condition{
		Type:             "fever",
		Severity:         0.5,
		RemainingMinutes: 30,
		EffectsPerMinute: map[Stat]float64{StatHealth: -0.5},
	})

	expired := s.Tick(0, 20)
	if len(expired) != 0 {
		t.Fatalf("expired early: %+v", expired)
	}
	if s.Current != 90 {
		t.Fatalf("health after 20m fever: got %.1f, want 90", s.Current)
	}

	// 20 more minutes, but only 10 remain on the condition: effects
	// apply for the remaining 10 minutes only.
	expired = s.Tick(0, 20)
	if len(expired) != 1 || expired[0].Type != "fever" {
		t.Fatalf("expiry: got %+v, want fever", expired)
	}
	if s.Current != 85 {
		t.Fatalf("health after expiry: got %.1f, want 85", s.Current)
	}
	if len(s.Conditions) != 0 {
		t.Fatalf("conditions remain: %+v", s.Conditions)
	}
}

func TestAddConditionMergesSameType(t *testing.T) {
	s := NewState(100)
	s.AddCondition(Condition{Type: "cold", Severity: 0.3, RemainingMinutes: 120})
	s.AddCondition(Condition{Type: "cold", Severity: 0.6, RemainingMinutes: 60})

	if len(s.Conditions) != 1 {
		t.Fatalf("conditions: got %d, want 1", len(s.Conditions))
	}
	c := s.Conditions[0]
	if c.Severity != 0.6 {
		t.Fatalf("severity: got %.1f, want 0.6 (max)", c.Severity)
	}
	if c.RemainingMinutes != 120 {
		t.Fatalf("remaining: got %d, want 120 (max)", c.RemainingMinutes)
	}
}

func TestStatusPrecedence(t *testing.T) {
	s := NewState(100)
	if got := s.Status(); got != "Healthy" {
		t.Fatalf("fresh state: got %q, want Healthy", got)
	}

	// Low energy dominates everything below it.
	s.Energy = 10
	s.Current = 20
	s.AddCondition(Condition{Type: "plague", Severity: 0.9, RemainingMinutes: 500})
	if got := s.Status(); got != "Tired" {
		t.Fatalf("low energy: got %q, want Tired", got)
	}

	// Rested but low health: Sick beats the named condition.
	s.Energy = 50
	if got := s.Status(); got != "Sick" {
		t.Fatalf("low health: got %q, want Sick", got)
	}

	// Healthy enough otherwise: highest-severity condition name.
	s.Current = 80
	s.AddCondition(Condition{Type: "sprain", Severity: 0.2, RemainingMinutes: 500})
	if got := s.Status(); got != "plague" {
		t.Fatalf("condition name: got %q, want plague", got)
	}

	// Mid energy, no conditions: Normal, not Healthy.
	s.Conditions = nil
	s.Energy = 50
	if got := s.Status(); got != "Normal" {
		t.Fatalf("mid energy: got %q, want Normal", got)
	}
}

func TestHealthyNeedsBothVitalsHigh(t *testing.T) {
	s := NewState(100)
	s.Current = 50 // above the sick line, below the healthy bar
	if got := s.Status(); got != "Normal" {
		t.Fatalf("mid health: got %q, want Normal", got)
	}
	s.Current = 70
	if got := s.Status(); got != "Healthy" {
		t.Fatalf("high health: got %q, want Healthy", got)
	}
}
