package schedule

import "testing"

func slot(t *testing.T, start, end int) TimeSlot {
	t.Helper()
	s, err := NewTimeSlot(start, end)
	if err != nil {
		t.Fatalf("slot [%d,%d): %v", start, end, err)
	}
	return s
}

func item(t *testing.T, start, end int, activity string, importance float64, flex Flexibility) Item {
	t.Helper()
	return NewItem(slot(t, start, end), activity, "", importance, flex)
}

func TestOverlapHalfOpen(t *testing.T) {
	a := TimeSlot{Start: 540, End: 600}
	cases := []struct {
		b    TimeSlot
		want bool
	}{
		{TimeSlot{Start: 600, End: 660}, false}, // adjacent, shared boundary
		{TimeSlot{Start: 480, End: 540}, false},
		{TimeSlot{Start: 570, End: 630}, true},
		{TimeSlot{Start: 500, End: 700}, true}, // containment
		{TimeSlot{Start: 550, End: 560}, true},
	}
	for _, c := range cases {
		if got := a.Overlaps(c.b); got != c.want {
			t.Fatalf("%v overlaps %v: got %v, want %v", a, c.b, got, c.want)
		}
	}
}

func TestNonOverlappingCandidateAlwaysAdmitted(t *testing.T) {
	existing := []Item{
		item(t, 540, 600, "breakfast", 70, Flexibility{}),
		item(t, 720, 780, "lunch", 70, Flexibility{}),
	}
	for _, start := range []int{0, 600, 660, 780, 1380} {
		cand := item(t, start, start+30, "walk", 10, Flexibility{})
		res := Resolve(existing, cand)
		if res.Decision != DecisionAdmit {
			t.Fatalf("candidate at %d: got %v, want admit", start, res.Decision)
		}
		for i := 1; i < len(res.Items); i++ {
			if res.Items[i].Slot.Start < res.Items[i-1].Slot.Start {
				t.Fatalf("result not sorted at %d: %v before %v", start, res.Items[i-1].Slot, res.Items[i].Slot)
			}
		}
	}
}

func TestMoreImportantBlockerRejects(t *testing.T) {
	existing := []Item{item(t, 540, 600, "surgery", 95, Flexibility{MaxShiftMinutes: 60, SkipProbability: 1})}
	cand := item(t, 550, 610, "coffee", 20, Flexibility{})

	res := Resolve(existing, cand)
	if res.Decision != DecisionReject {
		t.Fatalf("got %v, want reject", res.Decision)
	}
	if res.Reason != ReasonTooImportant {
		t.Fatalf("reason: got %q, want %q", res.Reason, ReasonTooImportant)
	}
	if res.Conflicting == nil || res.Conflicting.ActivityID != "surgery" {
		t.Fatalf("conflicting item not reported: %+v", res.Conflicting)
	}
}

func TestShiftProbeIntoFreeSpace(t *testing.T) {
	// Blocker 09:00-09:30 can move +30 into free space 09:30-10:00;
	// candidate wants 09:00-09:30.
	existing := []Item{item(t, 540, 570, "stretch", 30, Flexibility{MaxShiftMinutes: 30})}
	cand := item(t, 540, 570, "meeting", 80, Flexibility{})

	res := Resolve(existing, cand)
	if res.Decision != DecisionShift {
		t.Fatalf("got %v, want shift", res.Decision)
	}
	var shifted *Item
	for i := range res.Items {
		if res.Items[i].ActivityID == "stretch" {
			shifted = &res.Items[i]
		}
	}
	if shifted == nil || shifted.Slot.Start != 570 || shifted.Slot.End != 600 {
		t.Fatalf("shifted slot: got %+v, want 570-600", shifted)
	}
}

func TestShiftProbeBlockedByDownstreamItem(t *testing.T) {
	// The +30 probe would land on "standup"; blocker has a low skip
	// probability, so the candidate is rejected as immovable.
	existing := []Item{
		item(t, 540, 570, "stretch", 30, Flexibility{MaxShiftMinutes: 60, SkipProbability: 0.1}),
		item(t, 570, 630, "standup", 30, Flexibility{}),
	}
	cand := item(t, 540, 570, "meeting", 80, Flexibility{})

	res := Resolve(existing, cand)
	if res.Decision != DecisionReject {
		t.Fatalf("got %v, want reject", res.Decision)
	}
	if res.Reason != ReasonImmovable {
		t.Fatalf("reason: got %q, want %q", res.Reason, ReasonImmovable)
	}
}

// Pinned scenario: breakfast 09:00-10:00 importance 70, shiftable by 30
// with skip probability 0.8. Meeting 09:30-10:00 importance 80. The +30
// probe lands breakfast on 09:30-10:30, which still overlaps the
// meeting, so the probe fails and the skip probability (0.8 > 0.7)
// evicts breakfast.
func TestBreakfastEvictedByMeeting(t *testing.T) {
	existing := []Item{item(t, 540, 600, "breakfast", 70, Flexibility{MaxShiftMinutes: 30, SkipProbability: 0.8})}
	cand := item(t, 570, 600, "meeting", 80, Flexibility{})

	res := Resolve(existing, cand)
	if res.Decision != DecisionEvict {
		t.Fatalf("got %v, want evict", res.Decision)
	}
	if res.Conflicting == nil || res.Conflicting.ActivityID != "breakfast" {
		t.Fatalf("conflicting: got %+v, want breakfast", res.Conflicting)
	}
	if len(res.Items) != 1 || res.Items[0].ActivityID != "meeting" {
		t.Fatalf("resulting schedule: got %+v, want only meeting", res.Items)
	}
}

func TestEvictRequiresThresholdExceeded(t *testing.T) {
	// Skip probability exactly at the threshold does not evict.
	existing := []Item{item(t, 540, 600, "breakfast", 70, Flexibility{SkipProbability: EvictThreshold})}
	cand := item(t, 570, 600, "meeting", 80, Flexibility{})

	res := Resolve(existing, cand)
	if res.Decision != DecisionReject {
		t.Fatalf("at threshold: got %v, want reject", res.Decision)
	}
}

func TestTiesBrokenByEarliestStart(t *testing.T) {
	// Two equally important blockers: the earlier one is negotiated with.
	existing := []Item{
		item(t, 560, 620, "late", 50, Flexibility{}),
		item(t, 540, 600, "early", 50, Flexibility{}),
	}
	cand := item(t, 550, 610, "cand", 40, Flexibility{})

	res := Resolve(existing, cand)
	if res.Decision != DecisionReject {
		t.Fatalf("got %v, want reject", res.Decision)
	}
	if res.Conflicting.ActivityID != "early" {
		t.Fatalf("tie break: got %q, want early", res.Conflicting.ActivityID)
	}
}

func TestResolveDeterministic(t *testing.T) {
	existing := []Item{
		item(t, 540, 600, "a", 70, Flexibility{MaxShiftMinutes: 30, SkipProbability: 0.5}),
		item(t, 660, 720, "b", 40, Flexibility{}),
	}
	cand := item(t, 570, 630, "c", 70, Flexibility{})

	first := Resolve(existing, cand)
	for i := 0; i < 50; i++ {
		res := Resolve(existing, cand)
		if res.Decision != first.Decision {
			t.Fatalf("run %d: decision %v differs from %v", i, res.Decision, first.Decision)
		}
	}
}
