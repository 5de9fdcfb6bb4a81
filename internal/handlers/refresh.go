package handlers

import (
	"errors"
	"net/http"

	"github.com/go-redis/redis_rate/v10"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"marketalerts/internal/auth"
	"marketalerts/internal/logger"
	"marketalerts/internal/tracing"
)

// RefreshPricesHandler is the administrative trigger for one ingestion
// cycle. POST only; requires a valid bearer credential. A cycle either
// upserts its whole snapshot batch or writes nothing, so a 500 never
// leaves partial price updates behind.
func (h *Handlers) RefreshPricesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer(tracing.TracerName)
	ctx, span := tracer.Start(ctx, "RefreshPricesHandler")
	defer span.End()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.limiter != nil {
		result, err := h.limiter.Allow(ctx, "refresh:"+r.RemoteAddr, redis_rate.PerMinute(h.refreshRate))
		if err == nil && result.Allowed == 0 {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
	}

	token := auth.BearerToken(r)
	if err := h.verifier.Verify(ctx, token); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		logger.Log.Error("credential verification failed", zap.Error(err))
		http.Error(w, "Verification failed", http.StatusInternalServerError)
		return
	}

	updated, err := h.ingestor.Refresh(ctx)
	if err != nil {
		logger.Log.Error("manual price refresh failed", zap.Error(err))
		http.Error(w, "Refresh failed", http.StatusInternalServerError)
		return
	}

	logger.Log.Info("manual price refresh complete", zap.Int("updated", updated))
	writeJSON(w, http.StatusOK, Response{
		Message: "Prices refreshed",
		Data:    map[string]int{"updated": updated},
	})
}
