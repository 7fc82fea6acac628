package reporting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository"
	"github.com/mamadbah2/stockbook/internal/repository/memory"
	"github.com/mamadbah2/stockbook/internal/service/forecast"
	"github.com/mamadbah2/stockbook/internal/service/ledger"
)

const tenant = "shop-a"

var now = time.Date(2024, 3, 20, 18, 30, 0, 0, time.UTC)

type mockCache struct {
	gens  map[string]int64
	snaps map[string]*models.InventorySnapshot
	gets  int
	sets  int
}

func newMockCache() *mockCache {
	return &mockCache{gens: make(map[string]int64), snaps: make(map[string]*models.InventorySnapshot)}
}

func cacheKey(tenantID string, gen int64) string { return fmt.Sprintf("%s/%d", tenantID, gen) }

func (m *mockCache) Get(_ context.Context, tenantID string) (*models.InventorySnapshot, int64, error) {
	m.gets++
	gen := m.gens[tenantID]
	return m.snaps[cacheKey(tenantID, gen)], gen, nil
}

func (m *mockCache) Set(_ context.Context, tenantID string, gen int64, snap *models.InventorySnapshot) error {
	m.sets++
	m.snaps[cacheKey(tenantID, gen)] = snap
	return nil
}

func (m *mockCache) Invalidate(_ context.Context, tenantID string) error {
	delete(m.snaps, cacheKey(tenantID, m.gens[tenantID]))
	m.gens[tenantID]++
	return nil
}

// racingStore runs onLoad once, after reading the logs and before returning them, as if a mutation
// committed while the snapshot was being computed.
type racingStore struct {
	*memory.Store
	onLoad func()
}

func (r *racingStore) LoadLogs(ctx context.Context, tenantID string) (*models.Logs, error) {
	logs, err := r.Store.LoadLogs(ctx, tenantID)
	if r.onLoad != nil {
		hook := r.onLoad
		r.onLoad = nil
		hook()
	}
	return logs, err
}

type mockObserver struct{ cached, computed int }

func (m *mockObserver) ObserveSnapshot(_ time.Duration, cached bool) {
	if cached {
		m.cached++
		return
	}
	m.computed++
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	svc := ledger.NewService(store, nil, nil, ledger.Config{}, nil)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 3, d, 10, 0, 0, 0, time.UTC) }

	purchases := []ledger.PurchaseInput{
		{ID: "p1", Supplier: "Acme", Product: "Rice", Category: "Food", Quantity: 20, Amount: decimal.NewFromInt(200), Date: day(1)},
		{ID: "p2", Supplier: "Acme", Product: "Soap", Category: "Hygiene", Quantity: 3, Amount: decimal.NewFromInt(15), Date: day(2)},
		{ID: "p3", Supplier: "Bolt", Product: "Oil", Category: "Food", Quantity: 50, Amount: decimal.NewFromInt(400), Date: day(3)},
	}
	for _, in := range purchases {
		if _, err := svc.AddPurchase(ctx, tenant, in); err != nil {
			t.Fatalf("AddPurchase: %v", err)
		}
	}
	sales := []ledger.SaleInput{
		{ID: "s1", Customer: "Ann", Product: "Rice", Category: "Food", Quantity: 18, Amount: decimal.NewFromInt(270), Date: day(10)},
		{ID: "s2", Customer: "Ben", Product: "Soap", Category: "Hygiene", Quantity: 3, Amount: decimal.NewFromInt(30), Date: day(12)},
	}
	for _, in := range sales {
		if _, err := svc.AddSale(ctx, tenant, in); err != nil {
			t.Fatalf("AddSale: %v", err)
		}
	}
	return store
}

func newTestService(store repository.Store, cache SnapshotCache, observer Observer) *Service {
	svc := NewService(store, cache, observer, forecast.New(forecast.Config{}), nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestComputeSnapshotUsesCache(t *testing.T) {
	cache := newMockCache()
	observer := &mockObserver{}
	svc := newTestService(seed(t), cache, observer)
	ctx := context.Background()

	first, err := svc.ComputeSnapshot(ctx, tenant)
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if first.TotalStockQuantity != 52 || first.ProductsInStock != 2 || first.DistinctCategories != 1 {
		t.Fatalf("aggregates = %d/%d/%d", first.TotalStockQuantity, first.ProductsInStock, first.DistinctCategories)
	}
	if !first.TotalSalesAmount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("total sales = %s", first.TotalSalesAmount)
	}

	second, err := svc.ComputeSnapshot(ctx, tenant)
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if second != first {
		t.Fatal("second call must be served from the cache")
	}
	if cache.sets != 1 || observer.cached != 1 || observer.computed != 1 {
		t.Fatalf("cache sets %d, observer %+v", cache.sets, observer)
	}
}

func TestComputeSnapshotAfterInvalidateSeesMutation(t *testing.T) {
	ctx := context.Background()
	inner := seed(t)
	cache := newMockCache()
	ledgerSvc := ledger.NewService(inner, cache, nil, ledger.Config{}, nil)

	store := &racingStore{Store: inner}
	store.onLoad = func() {
		in := ledger.PurchaseInput{
			ID: "p4", Supplier: "Acme", Product: "Rice", Category: "Food",
			Quantity: 100, Amount: decimal.NewFromInt(1000), Date: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		}
		if _, err := ledgerSvc.AddPurchase(ctx, tenant, in); err != nil {
			t.Errorf("AddPurchase: %v", err)
		}
	}
	svc := newTestService(store, cache, nil)

	stale, err := svc.ComputeSnapshot(ctx, tenant)
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if p, _ := stale.Product("Rice"); p.Purchased != 20 {
		t.Fatalf("first snapshot purchased = %d, want 20 from the logs it read", p.Purchased)
	}

	fresh, err := svc.ComputeSnapshot(ctx, tenant)
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if p, _ := fresh.Product("Rice"); p.Purchased != 120 || p.CurrentStock != 102 {
		t.Fatalf("snapshot after the mutation = %+v, want purchased 120 and stock 102", p)
	}

	third, err := svc.ComputeSnapshot(ctx, tenant)
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if third != fresh {
		t.Fatal("the recomputed snapshot must be cached")
	}
}

func TestComputeSnapshotRejectsEmptyTenant(t *testing.T) {
	svc := newTestService(memory.NewStore(), nil, nil)
	if _, err := svc.ComputeSnapshot(context.Background(), ""); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListLowStock(t *testing.T) {
	svc := newTestService(seed(t), nil, nil)

	low, err := svc.ListLowStock(context.Background(), tenant)
	if err != nil {
		t.Fatalf("ListLowStock: %v", err)
	}
	// Rice: 18 sold over 90 days gives min 2 against 2 in stock. Soap is sold out. Oil has no sales.
	if len(low) != 2 || low[0] != "Rice" || low[1] != "Soap" {
		t.Fatalf("low stock = %v, want [Rice Soap]", low)
	}
}

func TestRecentActivityAndListings(t *testing.T) {
	svc := newTestService(seed(t), nil, nil)
	ctx := context.Background()

	activity, err := svc.RecentActivity(ctx, tenant, 0)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(activity) != DefaultActivityLimit {
		t.Fatalf("activity = %d entries, want %d", len(activity), DefaultActivityLimit)
	}
	if activity[0].ItemID != "s2" || activity[0].Type != models.ActivitySale || activity[0].Party != "Ben" {
		t.Fatalf("newest entry = %+v", activity[0])
	}

	purchases, err := svc.ListPurchases(ctx, tenant)
	if err != nil || len(purchases) != 3 || purchases[0].ID != "p3" || purchases[0].Supplier != "Bolt" {
		t.Fatalf("purchases = %+v, %v", purchases, err)
	}
	sales, err := svc.ListSales(ctx, tenant)
	if err != nil || len(sales) != 2 || sales[0].Customer != "Ben" {
		t.Fatalf("sales = %+v, %v", sales, err)
	}
}

func TestDriftMatchesAfterLedgerMutations(t *testing.T) {
	svc := newTestService(seed(t), nil, nil)

	drift, err := svc.Drift(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Drift: %v", err)
	}
	if len(drift) != 0 {
		t.Fatalf("ledger and logs must agree, got %+v", drift)
	}
}

func TestDailyReport(t *testing.T) {
	svc := newTestService(seed(t), nil, nil)

	report, err := svc.DailyReport(context.Background(), tenant)
	if err != nil {
		t.Fatalf("DailyReport: %v", err)
	}
	if !report.Date.Equal(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)) || !report.CreatedAt.Equal(now) {
		t.Fatalf("report dates = %v / %v", report.Date, report.CreatedAt)
	}
	if report.TotalStockQuantity != 52 || len(report.LowStockProducts) != 2 {
		t.Fatalf("report = %+v", report)
	}
}
