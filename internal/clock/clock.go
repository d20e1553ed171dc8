// Package clock implements the discretized simulation calendar.
//
// Time is counted in whole sim-minutes within a 1440-minute day. The
// clock only moves forward: AdvanceTime and SkipToTimeOfDay add minutes,
// SetAbsolute exists solely for save-restore and reports itself as an
// external override rather than elapsed time.
//
// Note: Clock is not goroutine-safe. The simulation is single-threaded
// and tick-driven; one driver owns the clock for the life of the run.
package clock

// MinutesPerDay is the length of a sim-day.
const MinutesPerDay = 1440

// DayType is the calendar category a day falls into. The weekday cycle
// is Monday..Sunday mod 7; Holiday is an override layered on top of the
// cycle, never part of it.
type DayType uint8

const (
	Monday DayType = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
	Holiday
)

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday", "Holiday"}

// String returns the day-type name.
func (d DayType) String() string {
	if int(d) < len(dayNames) {
		return dayNames[d]
	}
	return "Unknown"
}

// IsWeekday reports whether d is part of the Monday..Sunday cycle.
func (d DayType) IsWeekday() bool { return d < Holiday }

// next advances one step around the weekday cycle.
func (d DayType) next() DayType { return (d + 1) % 7 }

// Clock holds the calendar state of a running simulation.
type Clock struct {
	day     int
	weekday DayType // underlying cycle position, Monday..Sunday
	minutes int     // minutes of day, always in [0, MinutesPerDay)
	season  string
	holiday bool // override: DayType() reports Holiday until next rollover

	// OnDayRollover fires once per day boundary crossed by AdvanceTime,
	// after the day counter has moved.
	OnDayRollover func(day int, dayType DayType)

	// OnTimeSet fires after SetAbsolute. Rollover callbacks are not
	// replayed for externally restored time.
	OnTimeSet func(day int, dayType DayType, minutes int, season string)
}

// New creates a clock at day 0, Monday 00:00 in the given season.
func New(season string) *Clock {
	return &Clock{season: season}
}

// Day returns the absolute day counter.
func (c *Clock) Day() int { return c.day }

// MinutesOfDay returns the intra-day offset in [0, MinutesPerDay).
func (c *Clock) MinutesOfDay() int { return c.minutes }

// Season returns the current season label.
func (c *Clock) Season() string { return c.season }

// SetSeason updates the season label. Seasons are data, not derived
// state; the embedding application decides when they turn over.
func (c *Clock) SetSeason(season string) { c.season = season }

// DayType returns the effective day type: Holiday if the override is
// set, otherwise the weekday cycle position.
func (c *Clock) DayType() DayType {
	if c.holiday {
		return Holiday
	}
	return c.weekday
}

// Weekday returns the underlying cycle position regardless of any
// holiday override.
func (c *Clock) Weekday() DayType { return c.weekday }

// SetHoliday marks the current day as a holiday. The override clears
// on the next rollover.
func (c *Clock) SetHoliday(on bool) { c.holiday = on }

// AdvanceTime moves the clock forward by the given number of minutes.
// Non-positive values are a no-op. Each crossed day boundary increments
// the day counter, advances the weekday cycle by one step, clears any
// holiday override, and fires OnDayRollover exactly once.
func (c *Clock) AdvanceTime(minutes int) {
	if minutes <= 0 {
		return
	}
	c.minutes += minutes
	for c.minutes >= MinutesPerDay {
		c.minutes -= MinutesPerDay
		c.day++
		c.weekday = c.weekday.next()
		c.holiday = false
		if c.OnDayRollover != nil {
			c.OnDayRollover(c.day, c.DayType())
		}
	}
}

// SkipToTimeOfDay advances to the given minute-of-day. If target is not
// strictly after the current time-of-day the clock skips to target on
// the following day; the skip is always a forward move through
// AdvanceTime, so rollover callbacks fire as usual.
func (c *Clock) SkipToTimeOfDay(target int) {
	target = ((target % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	delta := target - c.minutes
	if delta <= 0 {
		delta += MinutesPerDay
	}
	c.AdvanceTime(delta)
}

// SetAbsolute overrides the clock state directly. Used by save-restore.
// No incremental rollover callbacks fire; OnTimeSet fires once.
func (c *Clock) SetAbsolute(day int, dayType DayType, minutes int, season string) {
	c.day = day
	if dayType == Holiday {
		c.holiday = true
		c.weekday = DayType(day % 7)
	} else {
		c.holiday = false
		c.weekday = dayType
	}
	c.minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	c.season = season
	if c.OnTimeSet != nil {
		c.OnTimeSet(c.day, c.DayType(), c.minutes, c.season)
	}
}

// Reset returns the clock to day 0, Monday 00:00, keeping the season.
func (c *Clock) Reset() {
	c.day = 0
	c.weekday = Monday
	c.minutes = 0
	c.holiday = false
}

// AbsoluteMinutes returns total sim-minutes elapsed since day 0 00:00.
// Used as the timestamp base for stored-resource expiry.
func (c *Clock) AbsoluteMinutes() int64 {
	return int64(c.day)*MinutesPerDay + int64(c.minutes)
}

// FormatTime renders a minute-of-day as HH:MM.
func FormatTime(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	h := minutes / 60
	m := minutes % 60
	return twoDigit(h) + ":" + twoDigit(m)
}

func twoDigit(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
