// Package evaluate holds the single condition evaluator shared by every
// execution context, so the interactive loop and the scheduled batch can
// never drift apart on trigger semantics.
package evaluate

import (
	"fmt"
	"math"

	"marketalerts/internal/models"
)

// Decision is the outcome of checking one alert against one snapshot.
type Decision struct {
	Fire     bool
	Observed float64
	Reason   string
}

// Evaluate checks an alert's condition against a snapshot. It is pure:
// no I/O, no mutation, deterministic for the same inputs. Thresholds are
// inclusive in both directions. A missing or non-finite input yields a
// no-fire decision with a diagnostic reason rather than an error.
func Evaluate(alert *models.Alert, snapshot *models.Snapshot) Decision {
	if snapshot == nil {
		return Decision{Reason: fmt.Sprintf("no snapshot for %s", alert.Symbol)}
	}

	observed, reason := observedValue(alert, snapshot)
	if reason != "" {
		return Decision{Reason: reason}
	}
	if !isFinite(observed) {
		return Decision{Reason: fmt.Sprintf("%s for %s is not finite", alert.ConditionType, alert.Symbol)}
	}

	var fire bool
	switch alert.Direction {
	case models.DirectionAbove:
		fire = observed >= alert.Target
	case models.DirectionBelow:
		fire = observed <= alert.Target
	default:
		return Decision{Observed: observed, Reason: fmt.Sprintf("unknown direction %q", alert.Direction)}
	}

	reason = fmt.Sprintf("%s %v (%s %v)", alert.ConditionType, observed, alert.Direction, alert.Target)
	return Decision{Fire: fire, Observed: observed, Reason: reason}
}

// observedValue extracts the metric the condition applies to, returning
// a diagnostic reason when the snapshot lacks it.
func observedValue(alert *models.Alert, snapshot *models.Snapshot) (float64, string) {
	switch alert.ConditionType {
	case models.ConditionPrice:
		return snapshot.Price, ""
	case models.ConditionVolume:
		if snapshot.Volume == nil {
			return 0, fmt.Sprintf("volume missing from snapshot for %s", alert.Symbol)
		}
		return *snapshot.Volume, ""
	case models.ConditionMarketCap:
		if snapshot.MarketCap == nil {
			return 0, fmt.Sprintf("market cap missing from snapshot for %s", alert.Symbol)
		}
		return *snapshot.MarketCap, ""
	case models.ConditionPriceChange:
		// The 24h percentage is derived from the absolute change over
		// the current price, not the provider's own percentage field.
		if snapshot.Change24h == nil {
			return 0, fmt.Sprintf("24h change missing from snapshot for %s", alert.Symbol)
		}
		if snapshot.Price == 0 || !isFinite(snapshot.Price) {
			return 0, fmt.Sprintf("price unusable for change ratio for %s", alert.Symbol)
		}
		return *snapshot.Change24h / snapshot.Price * 100, ""
	default:
		return 0, fmt.Sprintf("unknown condition type %q", alert.ConditionType)
	}
}

// Describe renders the condition for trigger history records.
func Describe(alert *models.Alert) string {
	unit := ""
	switch alert.ConditionType {
	case models.ConditionPrice, models.ConditionMarketCap:
		unit = "$"
	case models.ConditionPriceChange:
		return fmt.Sprintf("24h change %s %v%%", alert.Direction, alert.Target)
	}
	return fmt.Sprintf("%s %s %s%v", alert.ConditionType, alert.Direction, unit, alert.Target)
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
