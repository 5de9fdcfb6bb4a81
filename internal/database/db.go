package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"marketalerts/internal/logger"
	"marketalerts/internal/models"
)

// ErrAlertNotFound is returned when a lookup matches no alert row.
var ErrAlertNotFound = errors.New("alert not found")

// Store wraps the Postgres connection pool for alerts, trigger history,
// and notifications. One Store is constructed in main and shared.
type Store struct {
	db *sql.DB
}

// NewStore opens the connection pool and verifies connectivity.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	logger.Log.Info("database connection established")
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

const alertColumns = `
	id, user_id, symbol, name, condition_type, direction, target,
	active, triggered_at, recurring, recurring_interval, next_trigger,
	priority, notification_methods, created_at, updated_at
`

// CreateAlert inserts a new alert row.
func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.UserID,
		alert.Symbol,
		alert.Name,
		alert.ConditionType,
		alert.Direction,
		alert.Target,
		alert.Active,
		alert.TriggeredAt,
		alert.Recurring,
		nullString(string(alert.RecurringInterval)),
		alert.NextTrigger,
		alert.Priority,
		pq.Array(alert.NotificationMethods),
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		logger.Log.Error("failed to create alert",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// GetAlertByID retrieves one alert.
func (s *Store) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		logger.Log.Error("failed to retrieve alert",
			zap.String("alert_id", id),
			zap.Error(err),
		)
		return nil, err
	}
	return alert, nil
}

// ListAlertsByUser retrieves all alerts for a user, newest first.
func (s *Store) ListAlertsByUser(ctx context.Context, userID string) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = $1 ORDER BY created_at DESC`
	return s.queryAlerts(ctx, query, userID)
}

// ListAlertsBySymbol retrieves all alerts watching a symbol.
func (s *Store) ListAlertsBySymbol(ctx context.Context, symbol string) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE symbol = $1 ORDER BY created_at DESC`
	return s.queryAlerts(ctx, query, symbol)
}

// ListAllAlerts retrieves every alert.
func (s *Store) ListAllAlerts(ctx context.Context) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts ORDER BY created_at DESC`
	return s.queryAlerts(ctx, query)
}

// ListActiveUntriggered loads the alerts an evaluation pass must check:
// active, never triggered, and (for rescheduled recurring alerts) due.
func (s *Store) ListActiveUntriggered(ctx context.Context, now time.Time) ([]*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE active AND triggered_at IS NULL
		AND (next_trigger IS NULL OR next_trigger <= $1)
		ORDER BY created_at
	`
	return s.queryAlerts(ctx, query, now)
}

// ActiveSymbols returns the distinct symbols referenced by active alerts.
func (s *Store) ActiveSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM alerts WHERE active AND triggered_at IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// DeleteAlert removes an alert.
func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		logger.Log.Error("failed to delete alert",
			zap.String("alert_id", id),
			zap.Error(err),
		)
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// CompleteAlert makes the one-shot terminal transition. The WHERE clause
// is the compare-and-swap guard: only the first writer finds the row
// still active and untriggered, so concurrent passes cannot apply the
// transition twice. It reports whether this caller won.
func (s *Store) CompleteAlert(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE alerts
		SET active = false, triggered_at = $2, updated_at = $2
		WHERE id = $1 AND active AND triggered_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RescheduleAlert advances a recurring alert's next_trigger. Because a
// recurring alert stays active and untriggered, the guard additionally
// requires next_trigger to still hold the value read at load time; the
// losing pass in a concurrent race sees a changed value and applies
// nothing.
func (s *Store) RescheduleAlert(ctx context.Context, id string, prevNext *time.Time, next, at time.Time) (bool, error) {
	query := `
		UPDATE alerts
		SET next_trigger = $2, updated_at = $3
		WHERE id = $1 AND active AND triggered_at IS NULL
		AND next_trigger IS NOT DISTINCT FROM $4
	`

	result, err := s.db.ExecContext(ctx, query, id, next, at, prevNext)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// InsertTriggerEvent appends an immutable history record.
func (s *Store) InsertTriggerEvent(ctx context.Context, event *models.TriggerEvent) error {
	query := `
		INSERT INTO trigger_events
			(id, alert_id, symbol, name, triggered_at, observed, condition, notification_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		event.ID,
		event.AlertID,
		event.Symbol,
		event.Name,
		event.TriggeredAt,
		event.Observed,
		event.Condition,
		event.NotificationSent,
	)
	if err != nil {
		logger.Log.Error("failed to insert trigger event",
			zap.String("alert_id", event.AlertID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// ListTriggerEventsByAlert returns an alert's firing history, newest first.
func (s *Store) ListTriggerEventsByAlert(ctx context.Context, alertID string, limit int) ([]*models.TriggerEvent, error) {
	query := `
		SELECT id, alert_id, symbol, name, triggered_at, observed, condition, notification_sent
		FROM trigger_events
		WHERE alert_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, alertID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.TriggerEvent
	for rows.Next() {
		event := &models.TriggerEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.AlertID,
			&event.Symbol,
			&event.Name,
			&event.TriggeredAt,
			&event.Observed,
			&event.Condition,
			&event.NotificationSent,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// NotificationExists reports whether a notification already exists for
// the (alert, triggered_at) dedup key.
func (s *Store) NotificationExists(ctx context.Context, alertID string, triggeredAt time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE alert_id = $1 AND triggered_at = $2)`,
		alertID, triggeredAt,
	).Scan(&exists)
	return exists, err
}

// InsertNotification persists a notification. The unique constraint on
// (alert_id, triggered_at) makes the insert a no-op when another writer
// got there first; the return reports whether a row was written.
func (s *Store) InsertNotification(ctx context.Context, notification *models.Notification) (bool, error) {
	query := `
		INSERT INTO notifications
			(id, user_id, type, title, message, read, alert_id, triggered_at, observed, target, symbol, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (alert_id, triggered_at) DO NOTHING
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		notification.ID,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.Read,
		notification.Payload.AlertID,
		notification.Payload.TriggeredAt,
		notification.Payload.Observed,
		notification.Payload.Target,
		notification.Payload.Symbol,
		notification.CreatedAt,
	)
	if err != nil {
		logger.Log.Error("failed to insert notification",
			zap.String("alert_id", notification.Payload.AlertID),
			zap.Error(err),
		)
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListNotificationsByUser returns a user's notifications, newest first.
func (s *Store) ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, read, alert_id, triggered_at, observed, target, symbol, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		notification := &models.Notification{}
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Type,
			&notification.Title,
			&notification.Message,
			&notification.Read,
			&notification.Payload.AlertID,
			&notification.Payload.TriggeredAt,
			&notification.Payload.Observed,
			&notification.Payload.Target,
			&notification.Payload.Symbol,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags a notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	return err
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Log.Error("failed to query alerts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	alert := &models.Alert{}
	var triggeredAt, nextTrigger sql.NullTime
	var interval sql.NullString
	var methods pq.StringArray

	if err := row.Scan(
		&alert.ID,
		&alert.UserID,
		&alert.Symbol,
		&alert.Name,
		&alert.ConditionType,
		&alert.Direction,
		&alert.Target,
		&alert.Active,
		&triggeredAt,
		&alert.Recurring,
		&interval,
		&nextTrigger,
		&alert.Priority,
		&methods,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if triggeredAt.Valid {
		t := triggeredAt.Time
		alert.TriggeredAt = &t
	}
	if nextTrigger.Valid {
		t := nextTrigger.Time
		alert.NextTrigger = &t
	}
	if interval.Valid {
		alert.RecurringInterval = models.Interval(interval.String)
	}
	alert.NotificationMethods = methods

	return alert, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
