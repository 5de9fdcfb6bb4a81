package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"marketalerts/internal/evaluate"
	"marketalerts/internal/logger"
	"marketalerts/internal/metrics"
	"marketalerts/internal/models"
	"marketalerts/internal/tracing"
)

// AlertStore is the persistence surface a pass needs. The conditional
// updates report whether the caller won the transition.
type AlertStore interface {
	ListActiveUntriggered(ctx context.Context, now time.Time) ([]*models.Alert, error)
	CompleteAlert(ctx context.Context, id string, at time.Time) (bool, error)
	RescheduleAlert(ctx context.Context, id string, prevNext *time.Time, next, at time.Time) (bool, error)
	InsertTriggerEvent(ctx context.Context, event *models.TriggerEvent) error
}

// SnapshotReader serves the latest snapshot per symbol, nil when absent.
type SnapshotReader interface {
	Get(ctx context.Context, symbol string) (*models.Snapshot, error)
}

// Dispatcher turns a won trigger into a persisted notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.TriggerEvent, alert *models.Alert) (*models.Notification, error)
}

// PassStats summarizes one evaluation pass.
type PassStats struct {
	Evaluated int
	Triggered int
	Lost      int // transitions another pass won first
	Errors    int
}

// Scheduler drives evaluation passes over all pending alerts. Both
// execution contexts (the interactive loop and the cron batch) call
// RunPass on the same instance or on identically wired instances; the
// store-side guards make concurrent passes safe.
type Scheduler struct {
	alerts     AlertStore
	snapshots  SnapshotReader
	dispatcher Dispatcher
	now        func() time.Time
}

func New(alerts AlertStore, snapshots SnapshotReader, dispatcher Dispatcher, opts ...Option) *Scheduler {
	scheduler := &Scheduler{
		alerts:     alerts,
		snapshots:  snapshots,
		dispatcher: dispatcher,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(scheduler)
	}
	return scheduler
}

type Option func(*Scheduler)

// WithClock replaces the wall clock so tests can drive passes
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// RunPass sweeps every active, untriggered, due alert once. A failure on
// one alert never aborts the pass; the alert is skipped and the sweep
// continues. The pass runs to completion over its batch regardless of
// how long it takes.
func (s *Scheduler) RunPass(ctx context.Context, execContext string) PassStats {
	ctx, span := otel.Tracer(tracing.TracerName).Start(ctx, "RunPass")
	defer span.End()
	span.SetAttributes(attribute.String("context", execContext))

	var stats PassStats
	now := s.now()

	alerts, err := s.alerts.ListActiveUntriggered(ctx, now)
	if err != nil {
		logger.Log.Error("failed to load pending alerts",
			zap.String("context", execContext),
			zap.Error(err),
		)
		stats.Errors++
		return stats
	}

	for _, alert := range alerts {
		s.checkAlert(ctx, alert, &stats)
	}

	metrics.PassesTotal.WithLabelValues(execContext).Inc()
	logger.Log.Info("evaluation pass complete",
		zap.String("context", execContext),
		zap.Int("evaluated", stats.Evaluated),
		zap.Int("triggered", stats.Triggered),
		zap.Int("lost_races", stats.Lost),
		zap.Int("errors", stats.Errors),
	)
	return stats
}

func (s *Scheduler) checkAlert(ctx context.Context, alert *models.Alert, stats *PassStats) {
	now := s.now()

	// Rescheduled recurring alerts are not due before next_trigger.
	// The store filters these already; fakes may not.
	if alert.NextTrigger != nil && now.Before(*alert.NextTrigger) {
		return
	}

	snapshot, err := s.snapshots.Get(ctx, alert.Symbol)
	if err != nil {
		logger.Log.Error("failed to load snapshot",
			zap.String("alert_id", alert.ID),
			zap.String("symbol", alert.Symbol),
			zap.Error(err),
		)
		stats.Errors++
		return
	}

	stats.Evaluated++
	metrics.AlertsEvaluatedTotal.Inc()

	decision := evaluate.Evaluate(alert, snapshot)
	if !decision.Fire {
		if snapshot == nil {
			logger.Log.Debug("alert skipped", zap.String("alert_id", alert.ID), zap.String("reason", decision.Reason))
		}
		return
	}

	event := &models.TriggerEvent{
		ID:          uuid.New().String(),
		AlertID:     alert.ID,
		Symbol:      alert.Symbol,
		Name:        alert.Name,
		TriggeredAt: now,
		Observed:    decision.Observed,
		Condition:   evaluate.Describe(alert),
	}

	// History first. If this insert fails the alert's state is
	// untouched and the next pass retries the whole trigger.
	if err := s.alerts.InsertTriggerEvent(ctx, event); err != nil {
		logger.Log.Error("failed to insert trigger event",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		stats.Errors++
		return
	}

	applied, err := s.transition(ctx, alert, now)
	if err != nil {
		logger.Log.Error("failed to transition alert",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		stats.Errors++
		return
	}
	if !applied {
		// Another pass won the compare-and-swap; it owns the
		// notification for this trigger.
		logger.Log.Debug("lost transition race", zap.String("alert_id", alert.ID))
		stats.Lost++
		return
	}

	metrics.AlertsTriggeredTotal.WithLabelValues(string(alert.ConditionType)).Inc()
	stats.Triggered++

	if _, err := s.dispatcher.Dispatch(ctx, event, alert); err != nil {
		logger.Log.Error("failed to dispatch notification",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		stats.Errors++
		return
	}

	logger.Log.Info("alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("symbol", alert.Symbol),
		zap.String("condition", event.Condition),
		zap.Float64("observed", decision.Observed),
		zap.Bool("recurring", alert.Recurring),
	)
}

// transition applies the guarded state change for a fired alert: one-shot
// alerts become terminal, recurring alerts advance next_trigger by their
// interval and stay active.
func (s *Scheduler) transition(ctx context.Context, alert *models.Alert, firedAt time.Time) (bool, error) {
	if !alert.Recurring {
		return s.alerts.CompleteAlert(ctx, alert.ID, firedAt)
	}
	next := NextTrigger(alert.RecurringInterval, firedAt)
	return s.alerts.RescheduleAlert(ctx, alert.ID, alert.NextTrigger, next, firedAt)
}
