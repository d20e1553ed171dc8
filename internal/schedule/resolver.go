package schedule

import "fmt"

// Resolution policy constants. The order of evaluation (importance gate,
// then shift probe, then skip-eviction, then reject) is the scheduling
// contract: callers observe accept/reject behavior that depends on it.
const (
	// ShiftProbeMinutes is the single fixed probe applied when trying to
	// displace a conflicting item. One probe, no rescheduling search.
	ShiftProbeMinutes = 30

	// EvictThreshold is the skip probability above which a conflicting
	// item is dropped outright rather than blocking the candidate.
	EvictThreshold = 0.7
)

// Decision is the resolver's verdict for a candidate item.
type Decision uint8

const (
	DecisionAdmit Decision = iota // no conflict, inserted directly
	DecisionShift                 // conflicting item moved by the probe step
	DecisionEvict                 // conflicting item removed
	DecisionReject
)

var decisionNames = [...]string{"admit", "shift", "evict", "reject"}

func (d Decision) String() string {
	if int(d) < len(decisionNames) {
		return decisionNames[d]
	}
	return "unknown"
}

// Reject reasons distinguish why a candidate lost: the existing item
// outranked it, or the existing item could neither move nor be skipped.
const (
	ReasonTooImportant = "conflicting item is more important"
	ReasonImmovable    = "conflicting item cannot be shifted or skipped"
)

// Resolution is the outcome of one resolver pass.
type Resolution struct {
	Decision    Decision
	Conflicting *Item  // set on shift, evict, and reject
	Reason      string // set on reject
	Items       []Item // resulting committed list, sorted; nil on reject
}

// Accepted reports whether the candidate made it into the schedule.
func (r Resolution) Accepted() bool { return r.Decision != DecisionReject }

// Resolve decides whether candidate is admitted into a day list.
//
// Overlaps are ranked by importance (ties broken by earliest start) and
// only the most important conflicting item is negotiated with:
//
//  1. more important than the candidate: reject
//  2. shiftable by one +30 minute probe into free space: shift it, admit
//  3. skip probability above the eviction threshold: evict it, admit
//  4. otherwise: reject as immovable
//
// The input list is not mutated; the resulting list is returned sorted
// by start.
func Resolve(existing []Item, candidate Item) Resolution {
	var conflicts []int
	for i := range existing {
		if existing[i].Slot.Overlaps(candidate.Slot) {
			conflicts = append(conflicts, i)
		}
	}

	if len(conflicts) == 0 {
		out := append(append([]Item{}, existing...), candidate)
		sortByStart(out)
		return Resolution{Decision: DecisionAdmit, Items: out}
	}

	top := conflicts[0]
	for _, i := range conflicts[1:] {
		if existing[i].Importance > existing[top].Importance ||
			(existing[i].Importance == existing[top].Importance && existing[i].Slot.Start < existing[top].Slot.Start) {
			top = i
		}
	}
	blocker := existing[top]

	if blocker.Importance > candidate.Importance {
		return Resolution{Decision: DecisionReject, Conflicting: &blocker, Reason: ReasonTooImportant}
	}

	// Single-probe shift: the displaced slot must clear every other
	// existing item and the candidate itself.
	if blocker.Flex.MaxShiftMinutes >= ShiftProbeMinutes {
		probe := blocker.Slot.Shifted(ShiftProbeMinutes)
		free := !probe.Overlaps(candidate.Slot)
		for i := range existing {
			if i == top {
				continue
			}
			if probe.Overlaps(existing[i].Slot) {
				free = false
				break
			}
		}
		if free {
			out := make([]Item, 0, len(existing)+1)
			for i := range existing {
				it := existing[i]
				if i == top {
					it.Slot = probe
				}
				out = append(out, it)
			}
			out = append(out, candidate)
			sortByStart(out)
			return Resolution{Decision: DecisionShift, Conflicting: &blocker, Items: out}
		}
	}

	if blocker.Flex.SkipProbability > EvictThreshold {
		out := make([]Item, 0, len(existing))
		for i := range existing {
			if i == top {
				continue
			}
			out = append(out, existing[i])
		}
		out = append(out, candidate)
		sortByStart(out)
		return Resolution{Decision: DecisionEvict, Conflicting: &blocker, Items: out}
	}

	return Resolution{Decision: DecisionReject, Conflicting: &blocker, Reason: ReasonImmovable}
}

// Validate checks a candidate item before resolution. Malformed input
// is a hard failure, unlike a rejected request.
func Validate(candidate Item) error {
	if candidate.ActivityID == "" {
		return fmt.Errorf("candidate has empty activity id")
	}
	if _, err := NewTimeSlot(candidate.Slot.Start, candidate.Slot.End); err != nil {
		return err
	}
	if candidate.Importance < 0 || candidate.Importance > 100 {
		return fmt.Errorf("importance %.1f out of range [0,100]", candidate.Importance)
	}
	if candidate.Flex.SkipProbability < 0 || candidate.Flex.SkipProbability > 1 {
		return fmt.Errorf("skip probability %.2f out of range [0,1]", candidate.Flex.SkipProbability)
	}
	return nil
}
