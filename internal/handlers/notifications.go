package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"marketalerts/internal/logger"
	"marketalerts/internal/tracing"
)

// NotificationsHandler routes /notifications and
// /notifications/{id}/read.
func (h *Handlers) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	if len(pathParts) == 3 && pathParts[2] == "read" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.MarkNotificationReadHandler(w, r, pathParts[1])
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.BrowseNotificationsHandler(w, r)
}

// BrowseNotificationsHandler lists a user's notifications, newest first.
func (h *Handlers) BrowseNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer(tracing.TracerName)
	ctx, span := tracer.Start(ctx, "BrowseNotificationsHandler")
	defer span.End()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing required field: user_id", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	notifications, err := h.store.ListNotificationsByUser(ctx, userID, limit)
	if err != nil {
		logger.Log.Error("failed to fetch notifications",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		http.Error(w, "Failed to fetch notifications", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Notifications retrieved successfully",
		Data:    notifications,
	})
}

// MarkNotificationReadHandler flags one notification as read.
func (h *Handlers) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	tracer := otel.Tracer(tracing.TracerName)
	ctx, span := tracer.Start(ctx, "MarkNotificationReadHandler")
	defer span.End()

	if err := h.store.MarkNotificationRead(ctx, id); err != nil {
		logger.Log.Error("failed to mark notification read",
			zap.String("notification_id", id),
			zap.Error(err),
		)
		http.Error(w, "Failed to update notification", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Notification marked read",
	})
}
