package models

import (
	"fmt"
	"time"
)

// ConditionType identifies which market metric an alert threshold applies to.
type ConditionType string

const (
	ConditionPrice       ConditionType = "price"
	ConditionVolume      ConditionType = "volume"
	ConditionPriceChange ConditionType = "price_change"
	ConditionMarketCap   ConditionType = "market_cap"
)

// Valid reports whether the condition type is one of the supported metrics.
func (c ConditionType) Valid() bool {
	switch c {
	case ConditionPrice, ConditionVolume, ConditionPriceChange, ConditionMarketCap:
		return true
	}
	return false
}

// Direction controls whether an alert fires on crossing upward or downward.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Interval is the reschedule period for recurring alerts.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

func (i Interval) Valid() bool {
	return i == IntervalDaily || i == IntervalWeekly || i == IntervalMonthly
}

// Priority is a user-facing ordering hint; it does not affect evaluation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Alert is a user-defined watch on one symbol with a threshold condition.
//
// A non-recurring alert transitions active=true,triggered_at=nil to
// active=false,triggered_at=t exactly once. A recurring alert keeps
// active=true,triggered_at=nil and advances NextTrigger by its interval
// each time it fires.
type Alert struct {
	ID                  string        `json:"id" db:"id"`
	UserID              string        `json:"user_id" db:"user_id"`
	Symbol              string        `json:"symbol" db:"symbol"`
	Name                string        `json:"name" db:"name"`
	ConditionType       ConditionType `json:"condition_type" db:"condition_type"`
	Direction           Direction     `json:"direction" db:"direction"`
	Target              float64       `json:"target" db:"target"`
	Active              bool          `json:"active" db:"active"`
	TriggeredAt         *time.Time    `json:"triggered_at,omitempty" db:"triggered_at"`
	Recurring           bool          `json:"recurring" db:"recurring"`
	RecurringInterval   Interval      `json:"recurring_interval,omitempty" db:"recurring_interval"`
	NextTrigger         *time.Time    `json:"next_trigger,omitempty" db:"next_trigger"`
	Priority            Priority      `json:"priority" db:"priority"`
	NotificationMethods []string      `json:"notification_methods" db:"notification_methods"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
}

// Snapshot is the most recent known market data for one symbol. It is
// replaced wholesale each ingestion cycle. Optional fields are nil when
// the provider did not report them.
type Snapshot struct {
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	Change24h    *float64  `json:"change_24h,omitempty"`
	ChangePct24h *float64  `json:"change_pct_24h,omitempty"`
	Volume       *float64  `json:"volume,omitempty"`
	MarketCap    *float64  `json:"market_cap,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// TriggerEvent is an immutable history record of one alert firing.
type TriggerEvent struct {
	ID               string    `json:"id" db:"id"`
	AlertID          string    `json:"alert_id" db:"alert_id"`
	Symbol           string    `json:"symbol" db:"symbol"`
	Name             string    `json:"name" db:"name"`
	TriggeredAt      time.Time `json:"triggered_at" db:"triggered_at"`
	Observed         float64   `json:"observed" db:"observed"`
	Condition        string    `json:"condition" db:"condition"`
	NotificationSent bool      `json:"notification_sent" db:"notification_sent"`
}

// NotificationPayload echoes the triggering alert for clients.
type NotificationPayload struct {
	AlertID     string    `json:"alert_id"`
	Symbol      string    `json:"symbol"`
	Observed    float64   `json:"observed"`
	Target      float64   `json:"target"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// Notification is a persisted, user-visible record of one trigger.
// The (AlertID, TriggeredAt) pair inside the payload is the dedup key.
type Notification struct {
	ID        string              `json:"id" db:"id"`
	UserID    string              `json:"user_id" db:"user_id"`
	Type      string              `json:"type" db:"type"`
	Title     string              `json:"title" db:"title"`
	Message   string              `json:"message" db:"message"`
	Read      bool                `json:"read" db:"read"`
	Payload   NotificationPayload `json:"payload" db:"payload"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
}

// Validate checks the invariants a stored alert must satisfy.
func (a *Alert) Validate() error {
	if a.UserID == "" || a.Symbol == "" {
		return fmt.Errorf("alert requires user_id and symbol")
	}
	if !a.ConditionType.Valid() {
		return fmt.Errorf("unknown condition type %q", a.ConditionType)
	}
	if !a.Direction.Valid() {
		return fmt.Errorf("unknown direction %q", a.Direction)
	}
	if a.Recurring && !a.RecurringInterval.Valid() {
		return fmt.Errorf("recurring alert requires an interval, got %q", a.RecurringInterval)
	}
	if !a.Recurring && a.RecurringInterval != "" {
		return fmt.Errorf("interval %q set on a non-recurring alert", a.RecurringInterval)
	}
	return nil
}
