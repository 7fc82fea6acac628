// Package cache keeps computed inventory snapshots in Redis so dashboards do not re-read every log.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

// DefaultTTL bounds how stale a snapshot can be when an invalidation is lost.
const DefaultTTL = 5 * time.Minute

// redisClient is the subset of redis.Cmdable the cache needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// SnapshotCache stores one snapshot per tenant and generation. Invalidate bumps the tenant's
// generation, so a snapshot computed from logs read before a mutation is written under a key no reader
// will look up again.
type SnapshotCache struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewSnapshotCache wraps client. A non-positive ttl uses DefaultTTL.
func NewSnapshotCache(client redisClient, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(tenantID string, gen int64) string {
	return fmt.Sprintf("stockbook:snapshot:%s:%d", tenantID, gen)
}

func generationKey(tenantID string) string {
	return "stockbook:snapshot-gen:" + tenantID
}

func (c *SnapshotCache) generation(ctx context.Context, tenantID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get snapshot generation of %s: %w", tenantID, err)
	}
	return gen, nil
}

// Get returns the tenant's current generation and its snapshot, nil on a miss. Callers that compute a
// snapshot after a miss pass the generation back to Set.
func (c *SnapshotCache) Get(ctx context.Context, tenantID string) (*models.InventorySnapshot, int64, error) {
	gen, err := c.generation(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}

	val, err := c.client.Get(ctx, snapshotKey(tenantID, gen)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, gen, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get snapshot of %s: %w", tenantID, err)
	}

	var snap models.InventorySnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, 0, fmt.Errorf("failed to decode snapshot of %s: %w", tenantID, err)
	}
	return &snap, gen, nil
}

// Set stores snap under generation gen for the configured ttl.
func (c *SnapshotCache) Set(ctx context.Context, tenantID string, gen int64, snap *models.InventorySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(tenantID, gen), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot of %s: %w", tenantID, err)
	}
	return nil
}

// Invalidate moves the tenant to a new generation and drops the previous generation's snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context, tenantID string) error {
	gen, err := c.client.Incr(ctx, generationKey(tenantID)).Result()
	if err != nil {
		return fmt.Errorf("failed to bump snapshot generation of %s: %w", tenantID, err)
	}
	if err := c.client.Del(ctx, snapshotKey(tenantID, gen-1)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot of %s: %w", tenantID, err)
	}
	return nil
}
