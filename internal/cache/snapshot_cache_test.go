package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

type mockRedis struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newMockRedis() *mockRedis {
	return &mockRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if m.failGet != nil {
		cmd.SetErr(m.failGet)
		return cmd
	}
	if val, ok := m.data[key]; ok {
		cmd.SetVal(val)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = expiration
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	cmd := redis.NewIntCmd(ctx, "del")
	cmd.SetVal(n)
	return cmd
}

func (m *mockRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	cmd := redis.NewIntCmd(ctx, "incr", key)
	cmd.SetVal(n)
	return cmd
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newMockRedis()
	c := NewSnapshotCache(client, 0)

	snap, gen, err := c.Get(ctx, "shop-a")
	if err != nil || snap != nil || gen != 0 {
		t.Fatalf("expected miss at generation 0, got %v, %d, %v", snap, gen, err)
	}

	in := &models.InventorySnapshot{
		TenantID:           "shop-a",
		TotalStockQuantity: 12,
		TotalSalesAmount:   decimal.RequireFromString("150.50"),
		Products:           []models.ProductSnapshot{{Product: "Rice", Category: "Food", CurrentStock: 12}},
	}
	if err := c.Set(ctx, "shop-a", gen, in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if client.ttls[snapshotKey("shop-a", 0)] != DefaultTTL {
		t.Errorf("ttl = %v, want %v", client.ttls[snapshotKey("shop-a", 0)], DefaultTTL)
	}

	out, _, err := c.Get(ctx, "shop-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out == nil || out.TotalStockQuantity != 12 || !out.TotalSalesAmount.Equal(in.TotalSalesAmount) {
		t.Fatalf("unexpected snapshot %+v", out)
	}
	if p, ok := out.Product("Rice"); !ok || p.CurrentStock != 12 {
		t.Fatalf("product not restored: %+v", out.Products)
	}

	if err := c.Invalidate(ctx, "shop-a"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := client.data[snapshotKey("shop-a", 0)]; ok {
		t.Error("previous generation must be deleted")
	}
	snap, gen, _ = c.Get(ctx, "shop-a")
	if snap != nil || gen != 1 {
		t.Fatalf("expected miss at generation 1, got %v at %d", snap, gen)
	}
}

func TestSnapshotCacheDropsWriteFromBeforeInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewSnapshotCache(newMockRedis(), time.Minute)

	// A reader misses and starts computing from the logs.
	_, readerGen, err := c.Get(ctx, "shop-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// A mutation commits and invalidates before the reader stores its result.
	if err := c.Invalidate(ctx, "shop-a"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	stale := &models.InventorySnapshot{TenantID: "shop-a", TotalStockQuantity: 20}
	if err := c.Set(ctx, "shop-a", readerGen, stale); err != nil {
		t.Fatalf("Set: %v", err)
	}

	snap, gen, err := c.Get(ctx, "shop-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap != nil {
		t.Fatalf("stale snapshot served after invalidate: %+v", snap)
	}
	if gen != readerGen+1 {
		t.Fatalf("generation = %d, want %d", gen, readerGen+1)
	}
}

func TestSnapshotCacheGetError(t *testing.T) {
	client := newMockRedis()
	client.failGet = errors.New("connection refused")
	c := NewSnapshotCache(client, time.Minute)

	if _, _, err := c.Get(context.Background(), "shop-a"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSnapshotCacheCorruptValue(t *testing.T) {
	client := newMockRedis()
	client.data[snapshotKey("shop-a", 0)] = "{not json"
	c := NewSnapshotCache(client, time.Minute)

	if _, _, err := c.Get(context.Background(), "shop-a"); err == nil {
		t.Fatal("expected decode error")
	}
}
