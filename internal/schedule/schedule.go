package schedule

import (
	"log/slog"

	"github.com/talgya/lifesim/internal/clock"
)

// Schedule is one entity's committed activities: a template per
// weekday day-type plus overrides for specific calendar days. Within
// one day's list, items are sorted by slot start and do not overlap
// once committed.
type Schedule struct {
	EntityID         EntityID                 `json:"entity_id"`
	WeekdayTemplates map[clock.DayType][]Item `json:"weekday_templates"`
	SpecialDays      map[int][]Item           `json:"special_days,omitempty"`
}

// New creates an empty schedule for an entity.
func New(id EntityID) *Schedule {
	return &Schedule{
		EntityID:         id,
		WeekdayTemplates: make(map[clock.DayType][]Item),
		SpecialDays:      make(map[int][]Item),
	}
}

// ForDay returns the committed items governing a specific day:
// the special-day override if present, else the weekday template,
// else nothing.
func (s *Schedule) ForDay(dayType clock.DayType, dayNumber int) []Item {
	if items, ok := s.SpecialDays[dayNumber]; ok {
		return items
	}
	return s.WeekdayTemplates[dayType]
}

// ItemAt returns the activity occupying a given minute of the day.
// Committed items should never overlap; if they do anyway, the first
// in sort order wins and the violation is logged, never fatal.
func (s *Schedule) ItemAt(dayType clock.DayType, dayNumber, minute int) (Item, bool) {
	items := s.ForDay(dayType, dayNumber)
	found := -1
	for i := range items {
		if items[i].Slot.Contains(minute) {
			if found >= 0 {
				slog.Warn("overlapping committed items",
					"entity", s.EntityID,
					"day", dayNumber,
					"first", items[found].ActivityID,
					"second", items[i].ActivityID)
				break
			}
			found = i
		}
	}
	if found < 0 {
		return Item{}, false
	}
	return items[found], true
}

// DatedItem pairs an item with the absolute day it occurs on.
type DatedItem struct {
	Day  int  `json:"day"`
	Item Item `json:"item"`
}

// FutureWindow returns the remainder of today (items starting at or
// after fromMinute) followed by each subsequent day's full schedule,
// in order. dayTypeFor maps an absolute day number to its day type;
// the caller owns the weekday cycle.
func (s *Schedule) FutureWindow(fromDay, fromMinute, daysAhead int, dayTypeFor func(day int) clock.DayType) []DatedItem {
	var out []DatedItem
	for _, it := range s.ForDay(dayTypeFor(fromDay), fromDay) {
		if it.Slot.Start >= fromMinute {
			out = append(out, DatedItem{Day: fromDay, Item: it})
		}
	}
	for d := 1; d <= daysAhead; d++ {
		day := fromDay + d
		for _, it := range s.ForDay(dayTypeFor(day), day) {
			out = append(out, DatedItem{Day: day, Item: it})
		}
	}
	return out
}

// SetTemplate replaces a weekday template wholesale, re-sorting.
func (s *Schedule) SetTemplate(dayType clock.DayType, items []Item) {
	sortByStart(items)
	s.WeekdayTemplates[dayType] = items
}

// SetSpecialDay replaces the override list for one calendar day.
func (s *Schedule) SetSpecialDay(dayNumber int, items []Item) {
	sortByStart(items)
	s.SpecialDays[dayNumber] = items
}

// commitDay writes a resolved list back to whichever layer governs the
// day. Resolving against a weekday template on a specific day promotes
// the result to a special-day override so the template stays pristine
// for other weeks.
func (s *Schedule) commitDay(dayType clock.DayType, dayNumber int, items []Item, promote bool) {
	sortByStart(items)
	if _, ok := s.SpecialDays[dayNumber]; ok || promote {
		s.SpecialDays[dayNumber] = items
		return
	}
	s.WeekdayTemplates[dayType] = items
}

// Insert admits an item into a day through the resolver and commits
// the result. When targeting a specific day whose schedule comes from
// a weekday template, the resolved list becomes a special-day override.
func (s *Schedule) Insert(dayType clock.DayType, dayNumber int, candidate Item) Resolution {
	res := Resolve(s.ForDay(dayType, dayNumber), candidate)
	if res.Accepted() {
		s.commitDay(dayType, dayNumber, res.Items, true)
	}
	return res
}

// InsertTemplate admits an item directly into a weekday template.
func (s *Schedule) InsertTemplate(dayType clock.DayType, candidate Item) Resolution {
	res := Resolve(s.WeekdayTemplates[dayType], candidate)
	if res.Accepted() {
		s.WeekdayTemplates[dayType] = res.Items
	}
	return res
}

// Remove deletes an item by ID from the list governing the given day.
// Returns false if no such item exists.
func (s *Schedule) Remove(dayType clock.DayType, dayNumber int, itemID string) bool {
	items := s.ForDay(dayType, dayNumber)
	for i := range items {
		if items[i].ID == itemID {
			out := append(append([]Item{}, items[:i]...), items[i+1:]...)
			sortByStart(out)
			s.commitDay(dayType, dayNumber, out, true)
			return true
		}
	}
	return false
}

// Shift moves an item by the given number of minutes, re-sorting. The
// shifted slot is not conflict-checked here; displacement under
// contention goes through the resolver.
func (s *Schedule) Shift(dayType clock.DayType, dayNumber int, itemID string, minutes int) bool {
	items := s.ForDay(dayType, dayNumber)
	for i := range items {
		if items[i].ID == itemID {
			out := append([]Item{}, items...)
			out[i].Slot = out[i].Slot.Shifted(minutes)
			sortByStart(out)
			s.commitDay(dayType, dayNumber, out, true)
			return true
		}
	}
	return false
}
