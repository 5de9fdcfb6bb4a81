package scheduler

import (
	"testing"
	"time"

	"marketalerts/internal/models"
)

func TestNextTrigger(t *testing.T) {
	tests := []struct {
		name     string
		interval models.Interval
		from     string
		want     string
	}{
		{"daily", models.IntervalDaily, "2026-03-10T09:30:00Z", "2026-03-11T09:30:00Z"},
		{"weekly", models.IntervalWeekly, "2026-03-10T09:30:00Z", "2026-03-17T09:30:00Z"},
		{"monthly mid-month", models.IntervalMonthly, "2026-03-15T09:30:00Z", "2026-04-15T09:30:00Z"},
		{"monthly preserves day", models.IntervalMonthly, "2026-01-30T00:00:00Z", "2026-02-28T00:00:00Z"},
		{"monthly clamps jan 31", models.IntervalMonthly, "2026-01-31T12:00:00Z", "2026-02-28T12:00:00Z"},
		{"monthly leap year clamp", models.IntervalMonthly, "2028-01-31T12:00:00Z", "2028-02-29T12:00:00Z"},
		{"monthly dec to jan", models.IntervalMonthly, "2026-12-31T23:00:00Z", "2027-01-31T23:00:00Z"},
		{"unknown interval defaults to daily", models.Interval("hourly"), "2026-03-10T09:30:00Z", "2026-03-11T09:30:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, err := time.Parse(time.RFC3339, tt.from)
			if err != nil {
				t.Fatal(err)
			}
			want, err := time.Parse(time.RFC3339, tt.want)
			if err != nil {
				t.Fatal(err)
			}

			got := NextTrigger(tt.interval, from)
			if !got.Equal(want) {
				t.Errorf("NextTrigger(%s, %s) = %s, want %s", tt.interval, tt.from, got.Format(time.RFC3339), tt.want)
			}
		})
	}
}

func TestNextTriggerDailyIsExactly24Hours(t *testing.T) {
	from := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	if got := NextTrigger(models.IntervalDaily, from); got.Sub(from) != 24*time.Hour {
		t.Errorf("daily advance = %v, want 24h", got.Sub(from))
	}
}

func TestNextTriggerMonotonic(t *testing.T) {
	current := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		next := NextTrigger(models.IntervalMonthly, current)
		if !next.After(current) {
			t.Fatalf("next_trigger regressed: %s -> %s", current, next)
		}
		current = next
	}
}
