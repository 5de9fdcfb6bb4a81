package notify

import (
	"context"

	"go.uber.org/zap"

	"marketalerts/internal/logger"
	"marketalerts/internal/models"
)

// ConsoleSender logs notifications instead of delivering them. Useful in
// development and as the fallback when no transport is configured.
type ConsoleSender struct{}

func NewConsoleSender() *ConsoleSender { return &ConsoleSender{} }

func (ConsoleSender) Send(_ context.Context, notification *models.Notification) error {
	logger.Log.Info("notification",
		zap.String("user_id", notification.UserID),
		zap.String("title", notification.Title),
		zap.String("message", notification.Message),
	)
	return nil
}
