package ledger

// StoredResource is a perishable good sitting on the shelf. Quality
// degrades per elapsed hour; the resource is destroyed when quality
// reaches zero or its expiry passes.
type StoredResource struct {
	ResourceKind             Kind    `json:"resource_kind"`
	ResourceID               string  `json:"resource_id"`
	Amount                   float64 `json:"amount"`
	Quality                  float64 `json:"quality"` // (0, 1]
	DeteriorationRatePerHour float64 `json:"deterioration_rate_per_hour"`
	StoredAt                 int64   `json:"stored_at"`            // absolute sim-minutes
	ExpiresAt                int64   `json:"expires_at,omitempty"` // 0 = never
}

// RemovalCause explains why a stored resource was destroyed.
type RemovalCause uint8

const (
	RemovedDeteriorated RemovalCause = iota
	RemovedExpired
)

func (c RemovalCause) String() string {
	if c == RemovedExpired {
		return "expired"
	}
	return "deteriorated"
}

// Removal reports one destroyed stored resource.
type Removal struct {
	Resource StoredResource `json:"resource"`
	Cause    RemovalCause   `json:"cause"`
}

// Store puts a resource on the shelf.
func (b *Ledgers) Store(r StoredResource) {
	b.stored = append(b.stored, &r)
}

// Stored returns the current shelf contents.
func (b *Ledgers) Stored() []*StoredResource { return b.stored }

// Tick advances the book by elapsed sim-time: ledger decay, stored
// resource deterioration and expiry, and the economy drift interval.
// now is the clock's absolute minute; removals are returned in shelf
// order.
func (b *Ledgers) Tick(deltaHours float64, now int64) []Removal {
	if deltaHours <= 0 {
		return nil
	}

	for _, id := range b.order {
		l := b.ledgers[id]
		if l.DecayRatePerHour <= 0 || l.Amount <= 0 {
			continue
		}
		l.Amount -= l.DecayRatePerHour * deltaHours
		if l.Amount < 0 {
			l.Amount = 0
		}
		b.checkCritical(l)
	}

	var removals []Removal
	kept := b.stored[:0]
	for _, r := range b.stored {
		r.Quality -= r.DeteriorationRatePerHour * deltaHours
		if r.Quality < 0 {
			r.Quality = 0
		}
		switch {
		case r.ExpiresAt > 0 && now > r.ExpiresAt:
			removals = append(removals, Removal{Resource: *r, Cause: RemovedExpired})
		case r.Quality <= 0:
			removals = append(removals, Removal{Resource: *r, Cause: RemovedDeteriorated})
		default:
			kept = append(kept, r)
		}
	}
	b.stored = kept

	// A non-positive interval disables drift. Restored economies may
	// carry a zero interval; looping on it would never terminate.
	if b.Economy.DriftIntervalHours > 0 {
		b.Economy.hoursSinceDrift += deltaHours
		for b.Economy.hoursSinceDrift >= b.Economy.DriftIntervalHours {
			b.Economy.hoursSinceDrift -= b.Economy.DriftIntervalHours
			if b.Drift != nil {
				b.Drift.Advance(&b.Economy)
			}
		}
	}

	return removals
}
