package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"marketalerts/internal/database"
	"marketalerts/internal/logger"
	"marketalerts/internal/models"
	"marketalerts/internal/tracing"
)

type CreateAlertRequest struct {
	UserID              string   `json:"user_id"`
	Symbol              string   `json:"symbol"`
	Name                string   `json:"name"`
	ConditionType       string   `json:"condition_type"`
	Direction           string   `json:"direction"`
	Target              float64  `json:"target"`
	Recurring           bool     `json:"recurring"`
	RecurringInterval   string   `json:"recurring_interval,omitempty"`
	Priority            string   `json:"priority,omitempty"`
	NotificationMethods []string `json:"notification_methods,omitempty"`
}

// AlertsHandler routes all alert operations based on path and method.
// URL patterns: /alerts, /alerts/{id}, /alerts/{id}/history.
func (h *Handlers) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	// Collection endpoint
	if len(pathParts) <= 1 || pathParts[1] == "" {
		switch r.Method {
		case http.MethodGet:
			h.BrowseAlertsHandler(w, r)
		case http.MethodPost:
			h.CreateAlertHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	alertID := pathParts[1]

	if len(pathParts) == 3 && pathParts[2] == "history" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.AlertHistoryHandler(w, r, alertID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.GetAlertHandler(w, r, alertID)
	case http.MethodDelete:
		h.DeleteAlertHandler(w, r, alertID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// BrowseAlertsHandler lists alerts, optionally filtered by user_id or symbol.
func (h *Handlers) BrowseAlertsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer(tracing.TracerName)
	ctx, span := tracer.Start(ctx, "BrowseAlertsHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()
	cacheKey := generateCacheKey(r, "browse_alerts_")

	if h.responses != nil {
		cached, err := h.responses.Get(ctx, cacheKey, "/alerts")
		if err == nil && cached != "" {
			logger.Log.Info("cache hit for /alerts",
				zap.String("trace_id", traceID),
				zap.String("cache_key", cacheKey),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(cached))
			return
		}
	}

	userID := r.URL.Query().Get("user_id")
	symbol := r.URL.Query().Get("symbol")

	var alerts []*models.Alert
	var dbErr error

	if userID != "" {
		alerts, dbErr = h.store.ListAlertsByUser(ctx, userID)
	} else if symbol != "" {
		alerts, dbErr = h.store.ListAlertsBySymbol(ctx, strings.ToUpper(symbol))
	} else {
		alerts, dbErr = h.store.ListAllAlerts(ctx)
	}

	if dbErr != nil {
		logger.Log.Error("failed to fetch alerts",
			zap.String("trace_id", traceID),
			zap.Error(dbErr),
		)
		http.Error(w, "Failed to fetch alerts", http.StatusInternalServerError)
		return
	}

	response := Response{
		Message: "Alerts retrieved successfully",
		Data:    alerts,
	}

	respBytes, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
		return
	}

	if h.responses != nil {
		if cacheErr := h.responses.Set(ctx, cacheKey, string(respBytes), browseCacheTTL); cacheErr != nil {
			logger.Log.Warn("failed to store response in cache",
				zap.String("trace_id", traceID),
				zap.String("cache_key", cacheKey),
				zap.Error(cacheErr),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(respBytes)
}

// CreateAlertHandler validates and persists a new alert.
func (h *Handlers) CreateAlertHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer(tracing.TracerName)
	ctx, span := tracer.Start(ctx, "CreateAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Target <= 0 && models.ConditionType(req.ConditionType) != models.ConditionPriceChange {
		http.Error(w, "Target must be positive", http.StatusBadRequest)
		return
	}

	now := time.Now()
	priority := models.Priority(req.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	methods := req.NotificationMethods
	if methods == nil {
		methods = []string{}
	}

	alert := &models.Alert{
		ID:                  uuid.New().String(),
		UserID:              req.UserID,
		Symbol:              strings.ToUpper(req.Symbol),
		Name:                req.Name,
		ConditionType:       models.ConditionType(req.ConditionType),
		Direction:           models.Direction(req.Direction),
		Target:              req.Target,
		Active:              true,
		Recurring:           req.Recurring,
		RecurringInterval:   models.Interval(req.RecurringInterval),
		Priority:            priority,
		NotificationMethods: methods,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := alert.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.CreateAlert(ctx, alert); err != nil {
		logger.Log.Error("failed to create alert",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Failed to create alert", http.StatusInternalServerError)
		return
	}

	if h.responses != nil {
		h.responses.InvalidateByPrefix(ctx, "browse_alerts_")
	}

	writeJSON(w, http.StatusCreated, Response{
		Message: "Alert created successfully",
		Data:    alert,
	})
}

// GetAlertHandler retrieves one alert by id.
func (h *Handlers) GetAlertHandler(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()
	tracer := otel.Tracer(tracing.TracerName)
	ctx, span := tracer.Start(ctx, "GetAlertHandler")
	defer span.End()

	alert, err := h.store.GetAlertByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch alert", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Alert retrieved successfully",
		Data:    alert,
	})
}

// AlertHistoryHandler returns an alert's trigger history.
func (h *Handlers) AlertHistoryHandler(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()
	tracer := otel.Tracer(tracing.TracerName)
	ctx, span := tracer.Start(ctx, "AlertHistoryHandler")
	defer span.End()

	events, err := h.store.ListTriggerEventsByAlert(ctx, alertID, 100)
	if err != nil {
		http.Error(w, "Failed to fetch trigger history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Trigger history retrieved successfully",
		Data:    events,
	})
}

// DeleteAlertHandler removes an alert.
func (h *Handlers) DeleteAlertHandler(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()
	tracer := otel.Tracer(tracing.TracerName)
	ctx, span := tracer.Start(ctx, "DeleteAlertHandler")
	defer span.End()

	if err := h.store.DeleteAlert(ctx, alertID); err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		logger.Log.Error("failed to delete alert",
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		http.Error(w, "Failed to delete alert", http.StatusInternalServerError)
		return
	}

	if h.responses != nil {
		h.responses.InvalidateByPrefix(ctx, "browse_alerts_")
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Alert deleted successfully",
	})
}
