package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is the derived inventory state of one product name.
type ProductSnapshot struct {
	Product           string     `json:"product"`
	Category          string     `json:"category,omitempty"`
	Purchased         int64      `json:"purchased"`
	Sold              int64      `json:"sold"`
	CurrentStock      int64      `json:"current_stock"`
	TotalQuantitySold int64      `json:"total_quantity_sold"`
	LastSaleDate      *time.Time `json:"last_sale_date,omitempty"`
}

// PeriodTotal is revenue accumulated under one key (a "2006-01" month or a category).
type PeriodTotal struct {
	Key    string          `json:"key"`
	Amount decimal.Decimal `json:"amount"`
}

// InventorySnapshot is the reconciled view of a tenant's logs. DistinctCategories counts the
// categories of products currently in stock.
type InventorySnapshot struct {
	TenantID           string            `json:"tenant_id"`
	GeneratedAt        time.Time         `json:"generated_at"`
	Products           []ProductSnapshot `json:"products"`
	TotalStockQuantity int64             `json:"total_stock_quantity"`
	ProductsInStock    int               `json:"products_in_stock"`
	DistinctCategories int               `json:"distinct_categories"`
	TotalSalesAmount   decimal.Decimal   `json:"total_sales_amount"`
	MonthlySales       []PeriodTotal     `json:"monthly_sales"`
	SalesByCategory    []PeriodTotal     `json:"sales_by_category"`
	Omissions          []Omission        `json:"omissions,omitempty"`
}

// Product returns the snapshot entry for name, if any.
func (s *InventorySnapshot) Product(name string) (ProductSnapshot, bool) {
	for _, p := range s.Products {
		if p.Product == name {
			return p, true
		}
	}
	return ProductSnapshot{}, false
}

// StockForecast is the low-stock evaluation of one product.
type StockForecast struct {
	Product           string  `json:"product"`
	CurrentStock      int64   `json:"current_stock"`
	AverageDailySales float64 `json:"average_daily_sales"`
	DynamicMinStock   int64   `json:"dynamic_min_stock"`
	Low               bool    `json:"low"`
}

// DailyReport is the summary archived for each tenant on every scheduled run.
type DailyReport struct {
	TenantID           string          `json:"tenant_id"`
	Date               time.Time       `json:"date"`
	TotalStockQuantity int64           `json:"total_stock_quantity"`
	ProductsInStock    int             `json:"products_in_stock"`
	DistinctCategories int             `json:"distinct_categories"`
	TotalSalesAmount   decimal.Decimal `json:"total_sales_amount"`
	LowStockProducts   []string        `json:"low_stock_products"`
	CreatedAt          time.Time       `json:"created_at"`
}
