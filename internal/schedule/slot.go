// Package schedule provides per-entity daily schedules: time slots,
// committed activity items, day-type templates with special-day
// overrides, and the conflict resolver that decides whether a new
// activity is admitted, displaces an existing one, or is rejected.
package schedule

import (
	"errors"
	"fmt"
)

// ErrBadSlot reports a malformed time slot (end not after start).
var ErrBadSlot = errors.New("time slot end must be after start")

// TimeSlot is a half-open interval [Start, End) in minutes since
// midnight. End may exceed 1440 to represent an overnight span.
// Pure value type, no identity.
type TimeSlot struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewTimeSlot validates and builds a slot.
func NewTimeSlot(start, end int) (TimeSlot, error) {
	if start < 0 || end <= start {
		return TimeSlot{}, fmt.Errorf("%w: [%d, %d)", ErrBadSlot, start, end)
	}
	return TimeSlot{Start: start, End: end}, nil
}

// Duration returns the slot length in minutes.
func (s TimeSlot) Duration() int { return s.End - s.Start }

// Overlaps reports half-open interval overlap.
func (s TimeSlot) Overlaps(o TimeSlot) bool {
	return s.Start < o.End && s.End > o.Start
}

// Contains reports whether the minute falls inside the slot.
func (s TimeSlot) Contains(minute int) bool {
	return minute >= s.Start && minute < s.End
}

// Shifted returns the slot moved by the given number of minutes.
func (s TimeSlot) Shifted(minutes int) TimeSlot {
	return TimeSlot{Start: s.Start + minutes, End: s.End + minutes}
}

// String renders the slot as "HH:MM-HH:MM" (end may pass midnight).
func (s TimeSlot) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", s.Start/60, s.Start%60, s.End/60, s.End%60)
}
