package ledger

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// EconomyState holds the parameters feeding the conversion rate. The
// rate formula itself is deterministic; all randomness lives in the
// drift policy that evolves these parameters on a fixed interval.
type EconomyState struct {
	Inflation float64 `json:"inflation"` // fractional, e.g. 0.05 = 5%
	Stability float64 `json:"stability"` // 0..1
	TaxRate   float64 `json:"tax_rate"`  // 0..1
	Recession bool    `json:"recession"`

	DriftIntervalHours float64 `json:"drift_interval_hours"`
	hoursSinceDrift    float64
}

// DefaultEconomy returns a calm starting economy.
func DefaultEconomy() EconomyState {
	return EconomyState{
		Inflation:          0.02,
		Stability:          0.9,
		TaxRate:            0.05,
		DriftIntervalHours: 24,
	}
}

// baseRates is the base conversion table between ledger kinds. Rates
// below are per source unit; same-kind conversion is 1:1.
var baseRates = map[[2]Kind]float64{
	{KindCurrency, KindItem}: 0.5,  // two coins buy one good
	{KindItem, KindCurrency}: 1.6,  // goods sell at a markup
	{KindCurrency, KindTime}: 0.25, // hiring time is expensive
	{KindTime, KindCurrency}: 3.0,  // an hour of labor earns coins
	{KindItem, KindTime}:     0.4,
	{KindTime, KindItem}:     2.0,
}

// Rate computes the conversion rate between two kinds:
// base × inflation differential × stability factor × (1 − tax).
func (e *EconomyState) Rate(from, to Kind) float64 {
	base := 1.0
	if from != to {
		if r, ok := baseRates[[2]Kind{from, to}]; ok {
			base = r
		}
	}

	// Inflation erodes currency on its way out and inflates what
	// currency buys; the differential cancels for same-kind moves.
	differential := 1.0
	if from == KindCurrency && to != KindCurrency {
		differential = 1 / (1 + e.Inflation)
	} else if from != KindCurrency && to == KindCurrency {
		differential = 1 + e.Inflation
	}

	stability := e.Stability
	if e.Recession {
		stability *= 0.8
	}

	return base * differential * stability * (1 - e.TaxRate)
}

// DriftPolicy evolves the economy parameters between intervals.
// Pluggable so tests can freeze the economy entirely.
type DriftPolicy interface {
	Advance(e *EconomyState)
}

// Drift bounds.
const (
	minInflation = -0.10
	maxInflation = 0.50
	minStability = 0.20
	maxStability = 1.00
	recessionBar = 0.45 // stability below this flips the recession flag
)

// NoiseDrift perturbs the economy with seeded smooth noise: bounded
// steps, fully reproducible from the seed.
type NoiseDrift struct {
	noise     opensimplex.Noise
	step      float64
	Amplitude float64 // max per-interval change
}

// NewNoiseDrift creates a drift policy from a seed.
func NewNoiseDrift(seed int64, amplitude float64) *NoiseDrift {
	if amplitude <= 0 {
		amplitude = 0.01
	}
	return &NoiseDrift{noise: opensimplex.New(seed), Amplitude: amplitude}
}

// Advance applies one bounded perturbation to inflation and stability
// and re-derives the recession flag.
func (d *NoiseDrift) Advance(e *EconomyState) {
	d.step++
	e.Inflation = clampF(e.Inflation+d.Amplitude*d.noise.Eval2(d.step*0.1, 0), minInflation, maxInflation)
	e.Stability = clampF(e.Stability+d.Amplitude*d.noise.Eval2(d.step*0.1, 100), minStability, maxStability)
	e.Recession = e.Stability < recessionBar
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
