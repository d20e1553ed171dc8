// Package notify fans simulation occurrences out to subscribers as
// plain structured records. Each notification kind has its own payload
// type and its own subscriber list; there is no generic bus and no
// stringly-typed dispatch.
//
// Delivery is synchronous and in subscription order, on the simulation
// goroutine. Subscribers that need to cross a goroutine boundary (the
// API stream does) buffer on their own side.
package notify

import (
	"github.com/talgya/lifesim/internal/clock"
	"github.com/talgya/lifesim/internal/health"
	"github.com/talgya/lifesim/internal/ledger"
	"github.com/talgya/lifesim/internal/schedule"
)

// DayRollover fires once per crossed day boundary.
type DayRollover struct {
	Day     int           `json:"day"`
	DayType clock.DayType `json:"day_type"`
	Season  string        `json:"season"`
}

// ScheduleChanged fires when a modification request alters a schedule.
type ScheduleChanged struct {
	EntityID    schedule.EntityID `json:"entity_id"`
	Day         int               `json:"day"`
	Decision    schedule.Decision `json:"decision"`
	ActivityID  string            `json:"activity_id"`
	DisplacedID string            `json:"displaced_activity_id,omitempty"`
}

// HealthConditionChanged fires when a condition is added or expires.
type HealthConditionChanged struct {
	EntityID  schedule.EntityID `json:"entity_id"`
	Condition health.Condition  `json:"condition"`
	Expired   bool              `json:"expired"`
}

// ResourceCritical fires when a ledger balance crosses its critical
// threshold downward.
type ResourceCritical struct {
	LedgerID  string  `json:"ledger_id"`
	Amount    float64 `json:"amount"`
	Threshold float64 `json:"threshold"`
}

// ResourceRemoved fires when a stored resource deteriorates away or
// expires.
type ResourceRemoved struct {
	Removal ledger.Removal `json:"removal"`
}

// LifeEvent fires when a scheduled action completes or is cancelled.
type LifeEvent struct {
	EntityID    schedule.EntityID `json:"entity_id"`
	ActionID    string            `json:"action_id"`
	Description string            `json:"description"`
	Cancelled   bool              `json:"cancelled,omitempty"`
}

// TimeSet fires after an external clock override (save restore).
type TimeSet struct {
	Day     int           `json:"day"`
	DayType clock.DayType `json:"day_type"`
	Minutes int           `json:"minutes"`
	Season  string        `json:"season"`
}

// Notifier holds the per-kind subscriber lists.
type Notifier struct {
	dayRollover      []func(DayRollover)
	scheduleChanged  []func(ScheduleChanged)
	conditionChanged []func(HealthConditionChanged)
	resourceCritical []func(ResourceCritical)
	resourceRemoved  []func(ResourceRemoved)
	lifeEvent        []func(LifeEvent)
	timeSet          []func(TimeSet)
}

// New creates an empty notifier.
func New() *Notifier { return &Notifier{} }

func (n *Notifier) OnDayRollover(fn func(DayRollover)) {
	n.dayRollover = append(n.dayRollover, fn)
}

func (n *Notifier) OnScheduleChanged(fn func(ScheduleChanged)) {
	n.scheduleChanged = append(n.scheduleChanged, fn)
}

func (n *Notifier) OnConditionChanged(fn func(HealthConditionChanged)) {
	n.conditionChanged = append(n.conditionChanged, fn)
}

func (n *Notifier) OnResourceCritical(fn func(ResourceCritical)) {
	n.resourceCritical = append(n.resourceCritical, fn)
}

func (n *Notifier) OnResourceRemoved(fn func(ResourceRemoved)) {
	n.resourceRemoved = append(n.resourceRemoved, fn)
}

func (n *Notifier) OnLifeEvent(fn func(LifeEvent)) {
	n.lifeEvent = append(n.lifeEvent, fn)
}

func (n *Notifier) OnTimeSet(fn func(TimeSet)) {
	n.timeSet = append(n.timeSet, fn)
}

func (n *Notifier) PublishDayRollover(e DayRollover) {
	for _, fn := range n.dayRollover {
		fn(e)
	}
}

func (n *Notifier) PublishScheduleChanged(e ScheduleChanged) {
	for _, fn := range n.scheduleChanged {
		fn(e)
	}
}

func (n *Notifier) PublishConditionChanged(e HealthConditionChanged) {
	for _, fn := range n.conditionChanged {
		fn(e)
	}
}

func (n *Notifier) PublishResourceCritical(e ResourceCritical) {
	for _, fn := range n.resourceCritical {
		fn(e)
	}
}

func (n *Notifier) PublishResourceRemoved(e ResourceRemoved) {
	for _, fn := range n.resourceRemoved {
		fn(e)
	}
}

func (n *Notifier) PublishLifeEvent(e LifeEvent) {
	for _, fn := range n.lifeEvent {
		fn(e)
	}
}

func (n *Notifier) PublishTimeSet(e TimeSet) {
	for _, fn := range n.timeSet {
		fn(e)
	}
}
