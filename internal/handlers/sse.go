package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketalerts/internal/cache"
	"marketalerts/internal/logger"
	"marketalerts/internal/models"
)

// SSEHub fans dispatched notifications out to connected SSE clients.
// Notifications arrive over the Redis channel, so every web process sees
// dispatches made by any execution context.
type SSEHub struct {
	redisClient *redis.Client

	mu      sync.Mutex
	clients map[chan *models.Notification]bool
}

func NewSSEHub(redisClient *redis.Client) *SSEHub {
	return &SSEHub{
		redisClient: redisClient,
		clients:     map[chan *models.Notification]bool{},
	}
}

// Start subscribes to the notifications channel and broadcasts until the
// context is cancelled.
func (hub *SSEHub) Start(ctx context.Context) error {
	subscriber, err := cache.NewSubscriber(ctx, hub.redisClient, cache.NotificationsChannel)
	if err != nil {
		return err
	}

	go hub.listen(ctx, subscriber)
	return nil
}

func (hub *SSEHub) listen(ctx context.Context, subscriber *cache.Subscriber) {
	defer subscriber.Close()
	logger.Log.Info("listening for notifications on redis channel")

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := subscriber.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Error("error receiving notification message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var notification models.Notification
		if err := json.Unmarshal([]byte(msg.Payload), &notification); err != nil {
			logger.Log.Error("error unmarshaling notification message", zap.Error(err))
			continue
		}

		hub.broadcast(&notification)
	}
}

func (hub *SSEHub) broadcast(notification *models.Notification) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for clientChan := range hub.clients {
		select {
		case clientChan <- notification:
		default:
			logger.Log.Warn("notification dropped due to slow client")
		}
	}
}

// StreamNotificationsHandler holds an SSE connection open, streaming each
// notification as it is dispatched.
func (hub *SSEHub) StreamNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientChan := make(chan *models.Notification, 10)

	hub.mu.Lock()
	hub.clients[clientChan] = true
	clientCount := len(hub.clients)
	hub.mu.Unlock()

	logger.Log.Info("new SSE client connected", zap.Int("total_clients", clientCount))

	defer func() {
		hub.mu.Lock()
		delete(hub.clients, clientChan)
		clientCount := len(hub.clients)
		hub.mu.Unlock()
		logger.Log.Info("SSE client disconnected", zap.Int("total_clients", clientCount))
	}()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case notification := <-clientChan:
			data, err := json.Marshal(notification)
			if err != nil {
				logger.Log.Error("failed to marshal notification", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
