package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthKeyLayout formats month buckets such as "May-2025".
const MonthKeyLayout = "Jan-2006"

// MonthKey returns the month bucket for t, evaluated in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthKeyLayout)
}

// BucketKey identifies one ProductStock record.
type BucketKey struct {
	Category string `json:"category"`
	MonthKey string `json:"month_key"`
	Product  string `json:"product"`
	Supplier string `json:"supplier,omitempty"`
}

// ProductStock is the denormalized on-hand projection for one bucket. Quantity and Amount are never
// negative; a bucket whose quantity would reach zero is deleted instead.
type ProductStock struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Key       BucketKey       `json:"key"`
	Quantity  int64           `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	AddedAt   time.Time       `json:"added_at"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
	Version   int64           `json:"version"`
}

// UnitCost is the current average cost of one unit in the bucket.
func (p *ProductStock) UnitCost() decimal.Decimal {
	if p == nil || p.Quantity <= 0 {
		return decimal.Zero
	}
	return p.Amount.Div(decimal.NewFromInt(p.Quantity))
}

// StockDrift compares the ledger projection for a product with the stock reconciled from the logs.
type StockDrift struct {
	Product        string `json:"product"`
	LedgerQuantity int64  `json:"ledger_quantity"`
	ComputedStock  int64  `json:"computed_stock"`
	Difference     int64  `json:"difference"`
	Buckets        int    `json:"buckets"`
}
