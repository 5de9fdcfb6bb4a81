package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis_rate/v10"

	"marketalerts/internal/auth"
	"marketalerts/internal/cache"
	"marketalerts/internal/models"
	"marketalerts/internal/scheduler"
)

// Store is the persistence surface the HTTP layer consumes.
type Store interface {
	CreateAlert(ctx context.Context, alert *models.Alert) error
	GetAlertByID(ctx context.Context, id string) (*models.Alert, error)
	ListAlertsByUser(ctx context.Context, userID string) ([]*models.Alert, error)
	ListAlertsBySymbol(ctx context.Context, symbol string) ([]*models.Alert, error)
	ListAllAlerts(ctx context.Context) ([]*models.Alert, error)
	DeleteAlert(ctx context.Context, id string) error
	ListTriggerEventsByAlert(ctx context.Context, alertID string, limit int) ([]*models.TriggerEvent, error)
	ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Response is the JSON envelope for every endpoint.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Handlers bundles the HTTP surface with its collaborators. One instance
// is constructed in main; no package-level state.
type Handlers struct {
	store       Store
	ingestor    scheduler.Refresher
	verifier    auth.Verifier
	responses   *cache.ResponseCache // nil disables response caching
	limiter     *redis_rate.Limiter  // nil disables rate limiting
	refreshRate int
	instance    string
}

func New(store Store, ingestor scheduler.Refresher, verifier auth.Verifier, opts ...Option) *Handlers {
	h := &Handlers{
		store:       store,
		ingestor:    ingestor,
		verifier:    verifier,
		refreshRate: 10,
		instance:    "monitor-1",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type Option func(*Handlers)

func WithResponseCache(responses *cache.ResponseCache) Option {
	return func(h *Handlers) { h.responses = responses }
}

func WithRateLimiter(limiter *redis_rate.Limiter, perMinute int) Option {
	return func(h *Handlers) {
		h.limiter = limiter
		if perMinute > 0 {
			h.refreshRate = perMinute
		}
	}
}

func WithInstance(instance string) Option {
	return func(h *Handlers) { h.instance = instance }
}

func writeJSON(w http.ResponseWriter, status int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// generateCacheKey hashes the sorted query string under a prefix.
func generateCacheKey(r *http.Request, prefix string) string {
	queryParams := r.URL.Query()
	var keys []string
	for k := range queryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var queryString []string
	for _, k := range keys {
		queryString = append(queryString, fmt.Sprintf("%s=%s", k, strings.Join(queryParams[k], ",")))
	}
	joinedParams := strings.Join(queryString, "&")

	hash := sha256.Sum256([]byte(joinedParams))
	return prefix + hex.EncodeToString(hash[:8])
}

const browseCacheTTL = 30 * time.Second
