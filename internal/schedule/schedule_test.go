package schedule

import (
	"testing"

	"github.com/talgya/lifesim/internal/clock"
)

func TestSpecialDayOverridesTemplate(t *testing.T) {
	s := New("npc-1")
	s.SetTemplate(clock.Monday, []Item{item(t, 540, 600, "work", 50, Flexibility{})})
	s.SetSpecialDay(7, []Item{item(t, 540, 600, "festival", 90, Flexibility{})})

	// Day 0 is a Monday: template applies.
	got := s.ForDay(clock.Monday, 0)
	if len(got) != 1 || got[0].ActivityID != "work" {
		t.Fatalf("day 0: got %+v, want work", got)
	}
	// Day 7 is also a Monday but has an override.
	got = s.ForDay(clock.Monday, 7)
	if len(got) != 1 || got[0].ActivityID != "festival" {
		t.Fatalf("day 7: got %+v, want festival", got)
	}
	// Unknown day type, no override: empty.
	if got := s.ForDay(clock.Holiday, 3); len(got) != 0 {
		t.Fatalf("holiday: got %+v, want empty", got)
	}
}

func TestItemAtContainment(t *testing.T) {
	s := New("npc-1")
	s.SetTemplate(clock.Tuesday, []Item{
		item(t, 540, 600, "breakfast", 50, Flexibility{}),
		item(t, 600, 660, "commute", 50, Flexibility{}),
	})

	it, ok := s.ItemAt(clock.Tuesday, 1, 599)
	if !ok || it.ActivityID != "breakfast" {
		t.Fatalf("minute 599: got %+v ok=%v, want breakfast", it, ok)
	}
	// Half-open: 600 belongs to the next item.
	it, ok = s.ItemAt(clock.Tuesday, 1, 600)
	if !ok || it.ActivityID != "commute" {
		t.Fatalf("minute 600: got %+v ok=%v, want commute", it, ok)
	}
	if _, ok := s.ItemAt(clock.Tuesday, 1, 700); ok {
		t.Fatalf("minute 700: got item, want none")
	}
}

func TestFutureWindowOrdering(t *testing.T) {
	s := New("npc-1")
	s.SetTemplate(clock.Monday, []Item{
		item(t, 540, 600, "mon-early", 50, Flexibility{}),
		item(t, 900, 960, "mon-late", 50, Flexibility{}),
	})
	s.SetTemplate(clock.Tuesday, []Item{item(t, 480, 540, "tue", 50, Flexibility{})})

	dayTypeFor := func(day int) clock.DayType { return clock.DayType(day % 7) }

	// From Monday 10:00: mon-early (09:00) already started, excluded.
	win := s.FutureWindow(0, 600, 1, dayTypeFor)
	if len(win) != 2 {
		t.Fatalf("window size: got %d, want 2", len(win))
	}
	if win[0].Item.ActivityID != "mon-late" || win[0].Day != 0 {
		t.Fatalf("first: got %s day %d, want mon-late day 0", win[0].Item.ActivityID, win[0].Day)
	}
	if win[1].Item.ActivityID != "tue" || win[1].Day != 1 {
		t.Fatalf("second: got %s day %d, want tue day 1", win[1].Item.ActivityID, win[1].Day)
	}
}

func TestInsertOnSpecificDayPromotesToOverride(t *testing.T) {
	s := New("npc-1")
	s.SetTemplate(clock.Monday, []Item{item(t, 540, 600, "work", 50, Flexibility{})})

	res := s.Insert(clock.Monday, 7, item(t, 700, 760, "dentist", 60, Flexibility{}))
	if !res.Accepted() {
		t.Fatalf("insert rejected: %+v", res)
	}

	// Day 7 now has both; the template week (day 0) is untouched.
	if got := s.ForDay(clock.Monday, 7); len(got) != 2 {
		t.Fatalf("day 7: got %d items, want 2", len(got))
	}
	if got := s.ForDay(clock.Monday, 0); len(got) != 1 {
		t.Fatalf("day 0 template mutated: got %d items, want 1", len(got))
	}
}

func TestRemoveAndShiftKeepSorted(t *testing.T) {
	s := New("npc-1")
	a := item(t, 540, 600, "a", 50, Flexibility{})
	b := item(t, 700, 760, "b", 50, Flexibility{})
	s.SetTemplate(clock.Friday, []Item{a, b})

	if !s.Shift(clock.Friday, 4, a.ID, 300) {
		t.Fatalf("shift: item not found")
	}
	got := s.ForDay(clock.Friday, 4)
	if got[0].ActivityID != "b" || got[1].ActivityID != "a" {
		t.Fatalf("after shift, order: got [%s %s], want [b a]", got[0].ActivityID, got[1].ActivityID)
	}

	if !s.Remove(clock.Friday, 4, b.ID) {
		t.Fatalf("remove: item not found")
	}
	got = s.ForDay(clock.Friday, 4)
	if len(got) != 1 || got[0].ActivityID != "a" {
		t.Fatalf("after remove: got %+v, want only a", got)
	}
}

func TestValidateRejectsMalformedCandidates(t *testing.T) {
	good := item(t, 540, 600, "ok", 50, Flexibility{})
	if err := Validate(good); err != nil {
		t.Fatalf("valid candidate rejected: %v", err)
	}

	bad := good
	bad.ActivityID = ""
	if err := Validate(bad); err == nil {
		t.Fatalf("empty activity id accepted")
	}

	bad = good
	bad.Slot = TimeSlot{Start: 600, End: 600}
	if err := Validate(bad); err == nil {
		t.Fatalf("zero-length slot accepted")
	}

	bad = good
	bad.Importance = 101
	if err := Validate(bad); err == nil {
		t.Fatalf("importance 101 accepted")
	}
}
