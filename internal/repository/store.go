// Package repository defines the tenant document store contract shared by the storage backends.
package repository

import (
	"context"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

// Store is the multi-tenant document store holding purchase logs, sales logs and product stock buckets.
type Store interface {
	// RunInTx executes fn atomically for one tenant. Backends may invoke fn more than once when
	// the underlying transaction is retried, so fn must not have side effects outside tx.
	RunInTx(ctx context.Context, tenantID string, fn func(ctx context.Context, tx Tx) error) error

	// LoadLogs decodes every purchase and sales log of the tenant.
	LoadLogs(ctx context.Context, tenantID string) (*models.Logs, error)

	// ListStock returns every product stock bucket of the tenant.
	ListStock(ctx context.Context, tenantID string) ([]models.ProductStock, error)

	// ListTenants returns the ids of tenants that hold at least one document.
	ListTenants(ctx context.Context) ([]string, error)
}

// Tx is the read-modify-write surface available inside RunInTx. Get and Find return (nil, nil)
// when the document is absent. Saves are conditional on the Version that was read; Version 0
// inserts. A stale version yields models.ErrConflict.
type Tx interface {
	GetPurchaseLog(ctx context.Context, supplier string) (*models.PurchaseLog, error)
	SavePurchaseLog(ctx context.Context, log *models.PurchaseLog) error
	DeletePurchaseLog(ctx context.Context, log *models.PurchaseLog) error

	GetSalesLog(ctx context.Context, customer string) (*models.SalesLog, error)
	SaveSalesLog(ctx context.Context, log *models.SalesLog) error
	DeleteSalesLog(ctx context.Context, log *models.SalesLog) error

	// FindStock looks a bucket up by its full key, supplier included.
	FindStock(ctx context.Context, key models.BucketKey) (*models.ProductStock, error)
	// FindSaleStock returns the oldest bucket for the product in the category and month,
	// whatever its supplier.
	FindSaleStock(ctx context.Context, category, monthKey, product string) (*models.ProductStock, error)
	SaveStock(ctx context.Context, stock *models.ProductStock) error
	DeleteStock(ctx context.Context, stock *models.ProductStock) error
}
