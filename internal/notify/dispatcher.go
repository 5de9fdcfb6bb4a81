package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"marketalerts/internal/cache"
	"marketalerts/internal/logger"
	"marketalerts/internal/metrics"
	"marketalerts/internal/models"
)

// NotificationStore persists notifications with dedup on the
// (alert_id, triggered_at) key.
type NotificationStore interface {
	NotificationExists(ctx context.Context, alertID string, triggeredAt time.Time) (bool, error)
	InsertNotification(ctx context.Context, notification *models.Notification) (bool, error)
}

// Publisher fans a created notification out to stream consumers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ChannelSender delivers a notification over one external channel
// (push, email, sms). Implementations live outside this core.
type ChannelSender interface {
	Send(ctx context.Context, notification *models.Notification) error
}

// Dispatcher converts trigger events into persisted, deduplicated
// notifications and hands them to the configured delivery channels.
type Dispatcher struct {
	store     NotificationStore
	publisher Publisher // nil disables the stream fan-out
	senders   map[string]ChannelSender
	now       func() time.Time
	printer   *message.Printer
}

func NewDispatcher(store NotificationStore, opts ...Option) *Dispatcher {
	dispatcher := &Dispatcher{
		store:   store,
		senders: map[string]ChannelSender{},
		now:     time.Now,
		printer: message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	return dispatcher
}

type Option func(*Dispatcher)

func WithPublisher(publisher Publisher) Option {
	return func(d *Dispatcher) { d.publisher = publisher }
}

// WithSender registers a delivery channel by method name.
func WithSender(method string, sender ChannelSender) Option {
	return func(d *Dispatcher) { d.senders[method] = sender }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatch persists one notification for a trigger event. The
// (alert_id, triggered_at) key is checked before insert and enforced by
// the store's uniqueness constraint, so concurrent dispatchers produce
// at most one notification per logical trigger. A deduplicated call
// returns (nil, nil).
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.TriggerEvent, alert *models.Alert) (*models.Notification, error) {
	exists, err := d.store.NotificationExists(ctx, event.AlertID, event.TriggeredAt)
	if err != nil {
		return nil, fmt.Errorf("checking notification dedup key: %w", err)
	}
	if exists {
		metrics.NotificationsDedupedTotal.Inc()
		return nil, nil
	}

	title, body := d.compose(event, alert)
	notification := &models.Notification{
		ID:      uuid.New().String(),
		UserID:  alert.UserID,
		Type:    "alert",
		Title:   title,
		Message: body,
		Payload: models.NotificationPayload{
			AlertID:     event.AlertID,
			Symbol:      event.Symbol,
			Observed:    event.Observed,
			Target:      alert.Target,
			TriggeredAt: event.TriggeredAt,
		},
		CreatedAt: d.now(),
	}

	inserted, err := d.store.InsertNotification(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("inserting notification: %w", err)
	}
	if !inserted {
		metrics.NotificationsDedupedTotal.Inc()
		return nil, nil
	}
	metrics.NotificationsCreatedTotal.Inc()

	d.fanOut(ctx, notification, alert)
	return notification, nil
}

func (d *Dispatcher) fanOut(ctx context.Context, notification *models.Notification, alert *models.Alert) {
	if d.publisher != nil {
		payload, err := json.Marshal(notification)
		if err == nil {
			err = d.publisher.Publish(ctx, cache.NotificationsChannel, payload)
		}
		if err != nil {
			logger.Log.Warn("failed to publish notification to stream",
				zap.String("notification_id", notification.ID),
				zap.Error(err),
			)
		}
	}

	for _, method := range alert.NotificationMethods {
		sender, ok := d.senders[method]
		if !ok {
			logger.Log.Debug("no sender registered for method",
				zap.String("method", method),
				zap.String("notification_id", notification.ID),
			)
			continue
		}
		if err := sender.Send(ctx, notification); err != nil {
			logger.Log.Warn("channel delivery failed",
				zap.String("method", method),
				zap.String("notification_id", notification.ID),
				zap.Error(err),
			)
		}
	}
}

// compose builds the user-facing title and message from the condition
// type and the observed versus target values.
func (d *Dispatcher) compose(event *models.TriggerEvent, alert *models.Alert) (string, string) {
	symbol := strings.ToUpper(event.Symbol)
	name := alert.Name
	if name == "" {
		name = symbol
	}

	verb := "reached"
	if alert.Direction == models.DirectionBelow {
		verb = "dropped to"
	}

	switch alert.ConditionType {
	case models.ConditionPrice:
		return fmt.Sprintf("Price Alert: %s", symbol),
			d.printer.Sprintf("%s has %s $%.2f (target: $%.2f)", name, verb, event.Observed, alert.Target)
	case models.ConditionVolume:
		return fmt.Sprintf("Volume Alert: %s", symbol),
			d.printer.Sprintf("%s 24h volume has %s %.0f (target: %.0f)", name, verb, event.Observed, alert.Target)
	case models.ConditionMarketCap:
		return fmt.Sprintf("Market Cap Alert: %s", symbol),
			d.printer.Sprintf("%s market cap has %s $%.0f (target: $%.0f)", name, verb, event.Observed, alert.Target)
	case models.ConditionPriceChange:
		return fmt.Sprintf("Price Change Alert: %s", symbol),
			d.printer.Sprintf("%s 24h change has %s %.2f%% (target: %.2f%%)", name, verb, event.Observed, alert.Target)
	default:
		return fmt.Sprintf("Alert: %s", symbol),
			d.printer.Sprintf("%s %s: %.2f (target: %.2f)", name, event.Condition, event.Observed, alert.Target)
	}
}
