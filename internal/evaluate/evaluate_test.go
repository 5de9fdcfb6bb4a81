package evaluate

import (
	"math"
	"strings"
	"testing"
	"time"

	"marketalerts/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func snapshot(price float64) *models.Snapshot {
	return &models.Snapshot{
		Symbol:     "BTC",
		Price:      price,
		Change24h:  floatPtr(1200),
		Volume:     floatPtr(2.5e10),
		MarketCap:  floatPtr(9.5e11),
		ObservedAt: time.Now(),
	}
}

func alert(condition models.ConditionType, direction models.Direction, target float64) *models.Alert {
	return &models.Alert{
		ID:            "a1",
		Symbol:        "BTC",
		ConditionType: condition,
		Direction:     direction,
		Target:        target,
	}
}

func TestEvaluateThresholds(t *testing.T) {
	tests := []struct {
		name         string
		condition    models.ConditionType
		direction    models.Direction
		target       float64
		snapshot     *models.Snapshot
		wantFire     bool
		wantObserved float64
	}{
		{
			name:      "price above - triggered",
			condition: models.ConditionPrice, direction: models.DirectionAbove, target: 50000,
			snapshot: snapshot(50500), wantFire: true, wantObserved: 50500,
		},
		{
			name:      "price above - not triggered",
			condition: models.ConditionPrice, direction: models.DirectionAbove, target: 50000,
			snapshot: snapshot(49000), wantFire: false, wantObserved: 49000,
		},
		{
			name:      "price above - exact match fires",
			condition: models.ConditionPrice, direction: models.DirectionAbove, target: 50000,
			snapshot: snapshot(50000), wantFire: true, wantObserved: 50000,
		},
		{
			name:      "price below - exact match fires",
			condition: models.ConditionPrice, direction: models.DirectionBelow, target: 50000,
			snapshot: snapshot(50000), wantFire: true, wantObserved: 50000,
		},
		{
			name:      "price below - triggered",
			condition: models.ConditionPrice, direction: models.DirectionBelow, target: 50000,
			snapshot: snapshot(48000), wantFire: true, wantObserved: 48000,
		},
		{
			name:      "price below - not triggered",
			condition: models.ConditionPrice, direction: models.DirectionBelow, target: 50000,
			snapshot: snapshot(51000), wantFire: false, wantObserved: 51000,
		},
		{
			name:      "volume above - triggered",
			condition: models.ConditionVolume, direction: models.DirectionAbove, target: 1e9,
			snapshot: snapshot(50000), wantFire: true, wantObserved: 2.5e10,
		},
		{
			name:      "volume above - exact match fires",
			condition: models.ConditionVolume, direction: models.DirectionAbove, target: 2.5e10,
			snapshot: snapshot(50000), wantFire: true, wantObserved: 2.5e10,
		},
		{
			name:      "market cap below - not triggered",
			condition: models.ConditionMarketCap, direction: models.DirectionBelow, target: 9e11,
			snapshot: snapshot(50000), wantFire: false, wantObserved: 9.5e11,
		},
		{
			name:      "market cap above - exact match fires",
			condition: models.ConditionMarketCap, direction: models.DirectionAbove, target: 9.5e11,
			snapshot: snapshot(50000), wantFire: true, wantObserved: 9.5e11,
		},
		{
			// 1200 / 50000 * 100 = 2.4%
			name:      "price change above - triggered",
			condition: models.ConditionPriceChange, direction: models.DirectionAbove, target: 2.0,
			snapshot: snapshot(50000), wantFire: true, wantObserved: 2.4,
		},
		{
			name:      "price change above - exact match fires",
			condition: models.ConditionPriceChange, direction: models.DirectionAbove, target: 2.4,
			snapshot: snapshot(50000), wantFire: true, wantObserved: 2.4,
		},
		{
			name:      "price change above - not triggered",
			condition: models.ConditionPriceChange, direction: models.DirectionAbove, target: 3.0,
			snapshot: snapshot(50000), wantFire: false, wantObserved: 2.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Evaluate(alert(tt.condition, tt.direction, tt.target), tt.snapshot)
			if decision.Fire != tt.wantFire {
				t.Errorf("fire = %v, want %v (reason: %s)", decision.Fire, tt.wantFire, decision.Reason)
			}
			if math.Abs(decision.Observed-tt.wantObserved) > 1e-9 {
				t.Errorf("observed = %v, want %v", decision.Observed, tt.wantObserved)
			}
		})
	}
}

func TestEvaluateNegativePriceChange(t *testing.T) {
	s := snapshot(50000)
	s.Change24h = floatPtr(-2500) // -5%

	decision := Evaluate(alert(models.ConditionPriceChange, models.DirectionBelow, -4), s)
	if !decision.Fire {
		t.Fatalf("expected fire for -5%% below -4%% target, reason: %s", decision.Reason)
	}
	if math.Abs(decision.Observed-(-5)) > 1e-9 {
		t.Errorf("observed = %v, want -5", decision.Observed)
	}
}

func TestEvaluateMissingSnapshot(t *testing.T) {
	decision := Evaluate(alert(models.ConditionPrice, models.DirectionAbove, 1), nil)
	if decision.Fire {
		t.Error("expected no fire for nil snapshot")
	}
	if decision.Reason == "" {
		t.Error("expected a diagnostic reason")
	}
}

func TestEvaluateMissingFields(t *testing.T) {
	tests := []struct {
		name      string
		condition models.ConditionType
		mutate    func(*models.Snapshot)
		wantIn    string
	}{
		{"volume missing", models.ConditionVolume, func(s *models.Snapshot) { s.Volume = nil }, "volume missing"},
		{"market cap missing", models.ConditionMarketCap, func(s *models.Snapshot) { s.MarketCap = nil }, "market cap missing"},
		{"change missing", models.ConditionPriceChange, func(s *models.Snapshot) { s.Change24h = nil }, "change missing"},
		{"zero price for change ratio", models.ConditionPriceChange, func(s *models.Snapshot) { s.Price = 0 }, "price unusable"},
		{"non-finite volume", models.ConditionVolume, func(s *models.Snapshot) { s.Volume = floatPtr(math.NaN()) }, "not finite"},
		{"non-finite price", models.ConditionPrice, func(s *models.Snapshot) { s.Price = math.Inf(1) }, "not finite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := snapshot(50000)
			tt.mutate(s)

			decision := Evaluate(alert(tt.condition, models.DirectionAbove, 1), s)
			if decision.Fire {
				t.Error("expected no fire")
			}
			if !strings.Contains(decision.Reason, tt.wantIn) {
				t.Errorf("reason %q does not contain %q", decision.Reason, tt.wantIn)
			}
		})
	}
}

func TestEvaluateUnknownConditionType(t *testing.T) {
	decision := Evaluate(alert("momentum", models.DirectionAbove, 1), snapshot(50000))
	if decision.Fire {
		t.Error("expected no fire for unknown condition type")
	}
	if !strings.Contains(decision.Reason, "unknown condition type") {
		t.Errorf("unexpected reason %q", decision.Reason)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	a := alert(models.ConditionPrice, models.DirectionAbove, 50000)
	s := snapshot(50500)

	first := Evaluate(a, s)
	for i := 0; i < 10; i++ {
		if got := Evaluate(a, s); got != first {
			t.Fatalf("evaluation %d differed: %+v vs %+v", i, got, first)
		}
	}
}
