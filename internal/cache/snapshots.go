package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"marketalerts/internal/models"
)

const snapshotKeyPrefix = "snapshot:"

// snapshotTTL guards against unbounded staleness if ingestion stops; a
// cycle refreshes every key well inside this window.
const snapshotTTL = 24 * time.Hour

// SnapshotStore keeps the latest snapshot per symbol in Redis,
// overwritten wholesale each ingestion cycle.
type SnapshotStore struct {
	client *redis.Client
}

func NewSnapshotStore(client *redis.Client) *SnapshotStore {
	return &SnapshotStore{client: client}
}

// NewRedisClient connects and pings the Redis instance.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// PutBatch upserts one cycle's snapshots inside a single pipeline, so a
// failed cycle writes nothing and readers never observe a partial batch.
func (s *SnapshotStore) PutBatch(ctx context.Context, snapshots []models.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, snapshot := range snapshots {
			value, err := json.Marshal(snapshot)
			if err != nil {
				return fmt.Errorf("encoding snapshot for %s: %w", snapshot.Symbol, err)
			}
			pipe.Set(ctx, snapshotKey(snapshot.Symbol), value, snapshotTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing snapshot batch: %w", err)
	}
	return nil
}

// Get returns the latest snapshot for a symbol, or nil when none exists.
func (s *SnapshotStore) Get(ctx context.Context, symbol string) (*models.Snapshot, error) {
	value, err := s.client.Get(ctx, snapshotKey(symbol)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot for %s: %w", symbol, err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot for %s: %w", symbol, err)
	}
	return &snapshot, nil
}

func snapshotKey(symbol string) string {
	return snapshotKeyPrefix + strings.ToUpper(symbol)
}
