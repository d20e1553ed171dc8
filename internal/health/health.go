// Package health tracks per-entity vital stats: energy and health
// driven by the current activity and elapsed time, plus timed
// conditions that apply per-minute effects and expire.
package health

// Stat identifies which vital a condition effect targets. Decoded once
// at the configuration boundary, never re-parsed from strings in here.
type Stat uint8

const (
	StatEnergy Stat = iota
	StatHealth
)

// Status classification thresholds.
const (
	lowEnergy  = 30.0
	lowHealth  = 0.4 // fraction of BaseMax
	highEnergy = 70.0
	highHealth = 0.7 // fraction of BaseMax
)

// Condition is a timed affliction applying per-minute stat effects.
// Severity is 0..1; conditions of the same type merge by keeping the
// higher severity and the longer remaining duration.
type Condition struct {
	Type             string           `json:"type"`
	Severity         float64          `json:"severity"`
	RemainingMinutes int              `json:"remaining_minutes"`
	EffectsPerMinute map[Stat]float64 `json:"effects_per_minute,omitempty"`
}

// State holds one entity's vitals.
type State struct {
	BaseMax    float64     `json:"base_max"`
	Current    float64     `json:"current"` // 0..BaseMax
	Energy     float64     `json:"energy"`  // 0..100
	Conditions []Condition `json:"conditions,omitempty"`
}

// NewState creates a fully rested state.
func NewState(baseMax float64) *State {
	return &State{BaseMax: baseMax, Current: baseMax, Energy: 100}
}

// Tick applies one activity interval: energyRatePerMinute scaled by
// deltaMinutes (negative rate = recovery counts upward), then every
// active condition's per-minute effects, then condition expiry.
// Returns the conditions that expired during this tick.
func (s *State) Tick(energyRatePerMinute float64, deltaMinutes int) []Condition {
	if deltaMinutes <= 0 {
		return nil
	}
	s.Energy = clamp(s.Energy-energyRatePerMinute*float64(deltaMinutes), 0, 100)

	var expired []Condition
	remaining := s.Conditions[:0]
	for _, c := range s.Conditions {
		mins := deltaMinutes
		if c.RemainingMinutes < mins {
			mins = c.RemainingMinutes
		}
		for stat, perMin := range c.EffectsPerMinute {
			delta := perMin * float64(mins)
			switch stat {
			case StatEnergy:
				s.Energy = clamp(s.Energy+delta, 0, 100)
			case StatHealth:
				s.Current = clamp(s.Current+delta, 0, s.BaseMax)
			}
		}
		c.RemainingMinutes -= deltaMinutes
		if c.RemainingMinutes <= 0 {
			c.RemainingMinutes = 0
			expired = append(expired, c)
			continue
		}
		remaining = append(remaining, c)
	}
	s.Conditions = remaining
	return expired
}

// AddCondition adds or merges a condition. An existing condition of the
// same type is replaced by the more severe of the two, keeping the
// longer remaining duration.
func (s *State) AddCondition(c Condition) {
	for i := range s.Conditions {
		if s.Conditions[i].Type != c.Type {
			continue
		}
		if c.Severity > s.Conditions[i].Severity {
			s.Conditions[i].Severity = c.Severity
			s.Conditions[i].EffectsPerMinute = c.EffectsPerMinute
		}
		if c.RemainingMinutes > s.Conditions[i].RemainingMinutes {
			s.Conditions[i].RemainingMinutes = c.RemainingMinutes
		}
		return
	}
	s.Conditions = append(s.Conditions, c)
}

// Status classifies the state in a fixed precedence order. The order is
// deliberate: exhaustion masks sickness, sickness masks named
// conditions, and only a clean, rested state reads as Healthy.
func (s *State) Status() string {
	if len(s.Conditions) == 0 && s.Energy >= highEnergy && s.Current >= s.BaseMax*highHealth {
		return "Healthy"
	}
	if s.Energy < lowEnergy {
		return "Tired"
	}
	if s.Current < s.BaseMax*lowHealth {
		return "Sick"
	}
	if len(s.Conditions) > 0 {
		worst := 0
		for i := range s.Conditions {
			if s.Conditions[i].Severity > s.Conditions[worst].Severity {
				worst = i
			}
		}
		return s.Conditions[worst].Type
	}
	return "Normal"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
