package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository"
	"github.com/mamadbah2/stockbook/internal/service/forecast"
	"github.com/mamadbah2/stockbook/internal/service/reconcile"
)

// DefaultActivityLimit is the size of the recent activity feed when the caller gives none.
const DefaultActivityLimit = 5

// SnapshotCache stores computed snapshots per tenant and generation. Get returns a nil snapshot on a
// miss along with the generation a freshly computed snapshot must be stored under; invalidation moves
// the tenant to a new generation.
type SnapshotCache interface {
	Get(ctx context.Context, tenantID string) (*models.InventorySnapshot, int64, error)
	Set(ctx context.Context, tenantID string, gen int64, snap *models.InventorySnapshot) error
}

// Observer receives timings of snapshot computations.
type Observer interface {
	ObserveSnapshot(elapsed time.Duration, cached bool)
}

// Service exposes the read models the dashboards consume.
type Service struct {
	store      repository.Store
	cache      SnapshotCache
	observer   Observer
	forecaster *forecast.Forecaster
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires a new reporting service instance. cache and observer may be nil.
func NewService(store repository.Store, cache SnapshotCache, observer Observer, forecaster *forecast.Forecaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if forecaster == nil {
		forecaster = forecast.New(forecast.Config{})
	}
	return &Service{
		store:      store,
		cache:      cache,
		observer:   observer,
		forecaster: forecaster,
		logger:     logger,
		now:        time.Now,
	}
}

// ComputeSnapshot reconciles the tenant's logs, serving from the cache when possible.
func (s *Service) ComputeSnapshot(ctx context.Context, tenantID string) (*models.InventorySnapshot, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", models.ErrValidation)
	}
	start := time.Now()

	// The generation is read before the logs so a mutation committed in between is never cached.
	var gen int64
	cacheable := false
	if s.cache != nil {
		snap, g, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			s.logger.Debug("snapshot cache read failed", zap.String("tenant", tenantID), zap.Error(err))
		} else if snap != nil {
			s.observe(start, true)
			return snap, nil
		} else {
			gen, cacheable = g, true
		}
	}

	logs, err := s.store.LoadLogs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}

	snap := reconcile.Compute(logs, s.now())
	for _, o := range snap.Omissions {
		s.logger.Debug("skipped line item",
			zap.String("tenant", tenantID),
			zap.String("source", o.Source),
			zap.String("document", o.DocumentID),
			zap.Int("index", o.Index),
			zap.String("reason", o.Reason))
	}

	if cacheable {
		if err := s.cache.Set(ctx, tenantID, gen, snap); err != nil {
			s.logger.Debug("snapshot cache write failed", zap.String("tenant", tenantID), zap.Error(err))
		}
	}
	s.observe(start, false)
	return snap, nil
}

func (s *Service) observe(start time.Time, cached bool) {
	if s.observer != nil {
		s.observer.ObserveSnapshot(time.Since(start), cached)
	}
}

// Forecast evaluates every product of the tenant against its dynamic minimum stock.
func (s *Service) Forecast(ctx context.Context, tenantID string) ([]models.StockForecast, error) {
	snap, err := s.ComputeSnapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.forecaster.Evaluate(snap.Products, s.now()), nil
}

// ListLowStock returns the sorted names of products at or below their reorder threshold.
func (s *Service) ListLowStock(ctx context.Context, tenantID string) ([]string, error) {
	forecasts, err := s.Forecast(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return forecast.LowStock(forecasts), nil
}

// Drift compares the stock buckets with the reconciled stock.
func (s *Service) Drift(ctx context.Context, tenantID string) ([]models.StockDrift, error) {
	snap, err := s.ComputeSnapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stock, err := s.store.ListStock(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return reconcile.Drift(snap, stock), nil
}

// PurchaseRow is a purchase line item flattened with its supplier.
type PurchaseRow struct {
	Supplier string `json:"supplier"`
	models.PurchaseLineItem
}

// SaleRow is a sale line item flattened with its customer.
type SaleRow struct {
	Customer string `json:"customer"`
	models.SaleLineItem
}

// ListPurchases returns every purchase line item, newest first.
func (s *Service) ListPurchases(ctx context.Context, tenantID string) ([]PurchaseRow, error) {
	logs, err := s.store.LoadLogs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}
	rows := make([]PurchaseRow, 0)
	for _, log := range logs.Purchases {
		for _, item := range log.Purchases {
			rows = append(rows, PurchaseRow{Supplier: log.Supplier, PurchaseLineItem: item})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	return rows, nil
}

// ListSales returns every sale line item, newest first.
func (s *Service) ListSales(ctx context.Context, tenantID string) ([]SaleRow, error) {
	logs, err := s.store.LoadLogs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}
	rows := make([]SaleRow, 0)
	for _, log := range logs.Sales {
		for _, item := range log.Sales {
			rows = append(rows, SaleRow{Customer: log.CustomerName, SaleLineItem: item})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	return rows, nil
}

// RecentActivity merges purchases and sales into one feed, newest first, capped at limit.
func (s *Service) RecentActivity(ctx context.Context, tenantID string, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	logs, err := s.store.LoadLogs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}

	activities := make([]models.Activity, 0)
	for _, log := range logs.Purchases {
		for _, item := range log.Purchases {
			if item.Product == "" {
				continue
			}
			activities = append(activities, models.Activity{
				Type: models.ActivityPurchase, Party: log.Supplier, ItemID: item.ID,
				Product: item.Product, Category: item.Category,
				Quantity: item.Quantity, Amount: item.Amount, Date: item.Date,
			})
		}
	}
	for _, log := range logs.Sales {
		for _, item := range log.Sales {
			if item.Product == "" {
				continue
			}
			activities = append(activities, models.Activity{
				Type: models.ActivitySale, Party: log.CustomerName, ItemID: item.ID,
				Product: item.Product, Category: item.Category,
				Quantity: item.Quantity, Amount: item.Revenue(), Date: item.Date,
			})
		}
	}

	sort.SliceStable(activities, func(i, j int) bool { return activities[i].Date.After(activities[j].Date) })
	if len(activities) > limit {
		activities = activities[:limit]
	}
	return activities, nil
}

// DailyReport summarizes the tenant for the scheduled archive.
func (s *Service) DailyReport(ctx context.Context, tenantID string) (models.DailyReport, error) {
	snap, err := s.ComputeSnapshot(ctx, tenantID)
	if err != nil {
		return models.DailyReport{}, err
	}
	now := s.now().UTC()
	low := forecast.LowStock(s.forecaster.Evaluate(snap.Products, now))
	return models.DailyReport{
		TenantID:           tenantID,
		Date:               time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		TotalStockQuantity: snap.TotalStockQuantity,
		ProductsInStock:    snap.ProductsInStock,
		DistinctCategories: snap.DistinctCategories,
		TotalSalesAmount:   snap.TotalSalesAmount,
		LowStockProducts:   low,
		CreatedAt:          now,
	}, nil
}
