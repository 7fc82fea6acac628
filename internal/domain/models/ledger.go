package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseLineItem is one purchase event inside a supplier's purchase log.
type PurchaseLineItem struct {
	ID        string          `json:"id"`
	Product   string          `json:"product"`
	Category  string          `json:"category"`
	Quantity  int64           `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}

// PurchaseLog groups every purchase line item recorded against one supplier.
type PurchaseLog struct {
	TenantID  string             `json:"tenant_id"`
	Supplier  string             `json:"supplier"`
	Purchases []PurchaseLineItem `json:"purchases"`
	CreatedAt time.Time          `json:"created_at"`
	Version   int64              `json:"version"`
}

// IndexOf returns the position of the line item with id, or -1.
func (l *PurchaseLog) IndexOf(id string) int {
	for i := range l.Purchases {
		if l.Purchases[i].ID == id {
			return i
		}
	}
	return -1
}

// HasID reports whether any line item already uses id.
func (l *PurchaseLog) HasID(id string) bool {
	return l != nil && l.IndexOf(id) >= 0
}

// SaleLineItem is one sale event inside a customer's sales log. Amount is revenue, not cost.
// UnitCost and Supplier capture the bucket the sale drew from so the sale can be reversed
// after the bucket itself has been deleted.
type SaleLineItem struct {
	ID        string              `json:"id"`
	Product   string              `json:"product"`
	Category  string              `json:"category"`
	Quantity  int64               `json:"quantity"`
	Amount    decimal.Decimal     `json:"amount"`
	Price     decimal.NullDecimal `json:"price"`
	UnitCost  decimal.NullDecimal `json:"unit_cost"`
	Supplier  string              `json:"supplier,omitempty"`
	Date      time.Time           `json:"date"`
	CreatedAt time.Time           `json:"created_at"`
}

// Revenue is price*quantity when a unit price was recorded, else the stored amount.
func (s SaleLineItem) Revenue() decimal.Decimal {
	if s.Price.Valid && s.Quantity > 0 {
		return s.Price.Decimal.Mul(decimal.NewFromInt(s.Quantity))
	}
	return s.Amount
}

// SalesLog groups every sale line item recorded against one customer. Legacy logs were decoded from
// a flat single-sale document and cannot be mutated.
type SalesLog struct {
	TenantID     string         `json:"tenant_id"`
	CustomerName string         `json:"customer_name"`
	Sales        []SaleLineItem `json:"sales"`
	CreatedAt    time.Time      `json:"created_at"`
	Version      int64          `json:"version"`
	Legacy       bool           `json:"legacy,omitempty"`
}

// IndexOf returns the position of the line item with id, or -1.
func (l *SalesLog) IndexOf(id string) int {
	for i := range l.Sales {
		if l.Sales[i].ID == id {
			return i
		}
	}
	return -1
}

// HasID reports whether any line item already uses id.
func (l *SalesLog) HasID(id string) bool {
	return l != nil && l.IndexOf(id) >= 0
}

// Omission records an input the aggregation skipped or coerced instead of failing.
type Omission struct {
	Source     string `json:"source"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Reason     string `json:"reason"`
}

// Logs is the decoded purchase and sales history of one tenant.
type Logs struct {
	TenantID  string
	Purchases []PurchaseLog
	Sales     []SalesLog
	Omissions []Omission
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	Type     string          `json:"type"`
	Party    string          `json:"party"`
	ItemID   string          `json:"item_id"`
	Product  string          `json:"product"`
	Category string          `json:"category"`
	Quantity int64           `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
	Date     time.Time       `json:"date"`
}

const (
	ActivityPurchase = "purchase"
	ActivitySale     = "sale"
)
