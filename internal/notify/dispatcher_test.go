package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"marketalerts/internal/models"
)

type fakeStore struct {
	mu            sync.Mutex
	notifications []*models.Notification
	preExisting   bool
	rejectInsert  bool
}

func (f *fakeStore) NotificationExists(_ context.Context, _ string, _ time.Time) (bool, error) {
	return f.preExisting, nil
}

func (f *fakeStore) InsertNotification(_ context.Context, notification *models.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectInsert {
		return false, nil
	}
	f.notifications = append(f.notifications, notification)
	return true, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *recordingPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func triggeredAt() time.Time {
	return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func event(observed float64) *models.TriggerEvent {
	return &models.TriggerEvent{
		ID:          "event-1",
		AlertID:     "alert-1",
		Symbol:      "BTC",
		Name:        "Bitcoin",
		TriggeredAt: triggeredAt(),
		Observed:    observed,
		Condition:   "price above $50000",
	}
}

func alertFor(condition models.ConditionType, direction models.Direction, target float64) *models.Alert {
	return &models.Alert{
		ID:            "alert-1",
		UserID:        "user-1",
		Symbol:        "BTC",
		Name:          "Bitcoin",
		ConditionType: condition,
		Direction:     direction,
		Target:        target,
	}
}

func TestDispatchCreatesNotification(t *testing.T) {
	store := &fakeStore{}
	publisher := &recordingPublisher{}
	dispatcher := NewDispatcher(store, WithPublisher(publisher))

	notification, err := dispatcher.Dispatch(context.Background(), event(50500), alertFor(models.ConditionPrice, models.DirectionAbove, 50000))
	if err != nil {
		t.Fatal(err)
	}
	if notification == nil {
		t.Fatal("expected a notification")
	}

	if notification.UserID != "user-1" || notification.Type != "alert" {
		t.Errorf("unexpected ownership/type: %+v", notification)
	}
	if notification.Payload.AlertID != "alert-1" || !notification.Payload.TriggeredAt.Equal(triggeredAt()) {
		t.Errorf("payload missing dedup key fields: %+v", notification.Payload)
	}
	if notification.Payload.Observed != 50500 || notification.Payload.Target != 50000 {
		t.Errorf("payload values = %+v", notification.Payload)
	}
	if len(store.notifications) != 1 {
		t.Errorf("stored notifications = %d, want 1", len(store.notifications))
	}
	if len(publisher.payloads) != 1 {
		t.Errorf("published payloads = %d, want 1", len(publisher.payloads))
	}
}

func TestDispatchMessageFormats(t *testing.T) {
	tests := []struct {
		name        string
		condition   models.ConditionType
		direction   models.Direction
		target      float64
		observed    float64
		wantTitle   string
		wantMessage []string
	}{
		{
			name:      "price above",
			condition: models.ConditionPrice, direction: models.DirectionAbove,
			target: 50000, observed: 50500,
			wantTitle:   "Price Alert: BTC",
			wantMessage: []string{"Bitcoin", "reached", "$50,500.00", "$50,000.00"},
		},
		{
			name:      "price below",
			condition: models.ConditionPrice, direction: models.DirectionBelow,
			target: 40000, observed: 39500,
			wantTitle:   "Price Alert: BTC",
			wantMessage: []string{"dropped to", "$39,500.00", "$40,000.00"},
		},
		{
			name:      "volume above",
			condition: models.ConditionVolume, direction: models.DirectionAbove,
			target: 1_000_000_000, observed: 1_200_000_000,
			wantTitle:   "Volume Alert: BTC",
			wantMessage: []string{"volume", "1,200,000,000", "1,000,000,000"},
		},
		{
			name:      "market cap above",
			condition: models.ConditionMarketCap, direction: models.DirectionAbove,
			target: 900_000_000_000, observed: 950_000_000_000,
			wantTitle:   "Market Cap Alert: BTC",
			wantMessage: []string{"market cap", "$950,000,000,000", "$900,000,000,000"},
		},
		{
			name:      "price change above",
			condition: models.ConditionPriceChange, direction: models.DirectionAbove,
			target: 2.0, observed: 2.4,
			wantTitle:   "Price Change Alert: BTC",
			wantMessage: []string{"24h change", "2.40%", "2.00%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			dispatcher := NewDispatcher(store)

			notification, err := dispatcher.Dispatch(
				context.Background(),
				event(tt.observed),
				alertFor(tt.condition, tt.direction, tt.target),
			)
			if err != nil {
				t.Fatal(err)
			}
			if notification == nil {
				t.Fatal("expected a notification")
			}

			if notification.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", notification.Title, tt.wantTitle)
			}
			for _, fragment := range tt.wantMessage {
				if !strings.Contains(notification.Message, fragment) {
					t.Errorf("message %q missing %q", notification.Message, fragment)
				}
			}
		})
	}
}

func TestDispatchDedupOnExistingKey(t *testing.T) {
	store := &fakeStore{preExisting: true}
	dispatcher := NewDispatcher(store)

	notification, err := dispatcher.Dispatch(context.Background(), event(50500), alertFor(models.ConditionPrice, models.DirectionAbove, 50000))
	if err != nil {
		t.Fatal(err)
	}
	if notification != nil {
		t.Error("expected dedup to suppress the notification")
	}
	if len(store.notifications) != 0 {
		t.Errorf("stored notifications = %d, want 0", len(store.notifications))
	}
}

func TestDispatchDedupOnInsertConflict(t *testing.T) {
	// A concurrent writer can land between the existence check and the
	// insert; the constraint-backed insert reports the loss.
	store := &fakeStore{rejectInsert: true}
	publisher := &recordingPublisher{}
	dispatcher := NewDispatcher(store, WithPublisher(publisher))

	notification, err := dispatcher.Dispatch(context.Background(), event(50500), alertFor(models.ConditionPrice, models.DirectionAbove, 50000))
	if err != nil {
		t.Fatal(err)
	}
	if notification != nil {
		t.Error("expected insert conflict to suppress the notification")
	}
	if len(publisher.payloads) != 0 {
		t.Error("suppressed notification must not be published")
	}
}
