package schedule

import (
	"sort"

	"github.com/google/uuid"
)

// EntityID identifies a scheduled entity. Entities are opaque handles
// here; vitals and ledgers live in the sim package.
type EntityID string

// Flexibility is an item's tolerance for being displaced under
// contention.
type Flexibility struct {
	MaxShiftMinutes int     `json:"max_shift_minutes"`
	SkipProbability float64 `json:"skip_probability"` // 0..1
}

// Item is one committed activity occupying a time slot. Owned by
// exactly one day list within an entity's schedule; once committed it
// is only mutated through the resolver's shift/evict path.
type Item struct {
	ID           string      `json:"id"`
	Slot         TimeSlot    `json:"slot"`
	ActivityID   string      `json:"activity_id"`
	LocationID   string      `json:"location_id"`
	Importance   float64     `json:"importance"` // 0..100
	Flex         Flexibility `json:"flexibility"`
	Participants []EntityID  `json:"participants,omitempty"`
}

// NewItem builds an item with a fresh ID.
func NewItem(slot TimeSlot, activityID, locationID string, importance float64, flex Flexibility) Item {
	return Item{
		ID:         uuid.New().String(),
		Slot:       slot,
		ActivityID: activityID,
		LocationID: locationID,
		Importance: importance,
		Flex:       flex,
	}
}

// sortByStart orders a day list by slot start. Every mutation path
// re-sorts; this is the only invariant-preserving way to mutate a list.
func sortByStart(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Slot.Start < items[j].Slot.Start
	})
}
