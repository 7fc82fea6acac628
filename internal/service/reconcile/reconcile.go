// Package reconcile derives current stock and sales aggregates from the purchase and sales logs.
package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

const monthLayout = "2006-01"

type purchaseRef struct {
	supplier string
	index    int
	item     models.PurchaseLineItem
}

type productTotals struct {
	category     string
	purchased    int64
	sold         int64
	lastSaleDate time.Time
}

// Compute walks every line item of logs and builds the tenant snapshot. Purchases are visited oldest
// first (ties broken by supplier then position) so a product's category is the one of its most
// recent purchase. Items without a product name are skipped and recorded as omissions.
func Compute(logs *models.Logs, now time.Time) *models.InventorySnapshot {
	snap := &models.InventorySnapshot{
		GeneratedAt:      now.UTC(),
		TotalSalesAmount: decimal.Zero,
	}
	if logs == nil {
		return snap
	}
	snap.TenantID = logs.TenantID
	snap.Omissions = append(snap.Omissions, logs.Omissions...)

	products := make(map[string]*productTotals)
	entry := func(name string) *productTotals {
		p, ok := products[name]
		if !ok {
			p = &productTotals{}
			products[name] = p
		}
		return p
	}

	for _, ref := range orderedPurchases(logs.Purchases) {
		name := strings.TrimSpace(ref.item.Product)
		if name == "" {
			snap.Omissions = append(snap.Omissions, models.Omission{
				Source: "purchase", DocumentID: ref.supplier, Index: ref.index, Reason: "missing product",
			})
			continue
		}
		p := entry(name)
		p.purchased += max(ref.item.Quantity, 0)
		if category := strings.TrimSpace(ref.item.Category); category != "" {
			p.category = category
		}
	}

	monthly := make(map[string]decimal.Decimal)
	byCategory := make(map[string]decimal.Decimal)

	for _, log := range orderedSales(logs.Sales) {
		for i, item := range log.Sales {
			name := strings.TrimSpace(item.Product)
			if name == "" {
				snap.Omissions = append(snap.Omissions, models.Omission{
					Source: "sale", DocumentID: log.CustomerName, Index: i, Reason: "missing product",
				})
				continue
			}

			quantity := max(item.Quantity, 0)
			revenue := item.Revenue()
			if revenue.IsNegative() {
				revenue = decimal.Zero
			}

			p := entry(name)
			p.sold += quantity
			snap.TotalSalesAmount = snap.TotalSalesAmount.Add(revenue)

			date := item.Date
			if date.IsZero() {
				date = item.CreatedAt
			}
			if date.IsZero() {
				snap.Omissions = append(snap.Omissions, models.Omission{
					Source: "sale", DocumentID: log.CustomerName, Index: i, Reason: "missing date",
				})
			} else {
				key := date.UTC().Format(monthLayout)
				monthly[key] = monthly[key].Add(revenue)
				if quantity > 0 && date.After(p.lastSaleDate) {
					p.lastSaleDate = date.UTC()
				}
			}

			if category := strings.TrimSpace(item.Category); category != "" {
				byCategory[category] = byCategory[category].Add(revenue)
			}
		}
	}

	names := make([]string, 0, len(products))
	for name := range products {
		names = append(names, name)
	}
	sort.Strings(names)

	inStockCategories := make(map[string]struct{})
	for _, name := range names {
		p := products[name]
		ps := models.ProductSnapshot{
			Product:           name,
			Category:          p.category,
			Purchased:         p.purchased,
			Sold:              p.sold,
			CurrentStock:      p.purchased - p.sold,
			TotalQuantitySold: p.sold,
		}
		if !p.lastSaleDate.IsZero() {
			last := p.lastSaleDate
			ps.LastSaleDate = &last
		}
		if ps.CurrentStock > 0 {
			snap.TotalStockQuantity += ps.CurrentStock
			snap.ProductsInStock++
			if ps.Category != "" {
				inStockCategories[ps.Category] = struct{}{}
			}
		}
		snap.Products = append(snap.Products, ps)
	}
	snap.DistinctCategories = len(inStockCategories)
	snap.MonthlySales = sortedTotals(monthly)
	snap.SalesByCategory = sortedTotals(byCategory)

	return snap
}

func orderedPurchases(logs []models.PurchaseLog) []purchaseRef {
	var refs []purchaseRef
	for _, log := range logs {
		for i, item := range log.Purchases {
			refs = append(refs, purchaseRef{supplier: log.Supplier, index: i, item: item})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if !a.item.Date.Equal(b.item.Date) {
			return a.item.Date.Before(b.item.Date)
		}
		if a.supplier != b.supplier {
			return a.supplier < b.supplier
		}
		return a.index < b.index
	})
	return refs
}

func orderedSales(logs []models.SalesLog) []models.SalesLog {
	out := append([]models.SalesLog(nil), logs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CustomerName < out[j].CustomerName })
	return out
}

func sortedTotals(totals map[string]decimal.Decimal) []models.PeriodTotal {
	out := make([]models.PeriodTotal, 0, len(totals))
	for key, amount := range totals {
		out = append(out, models.PeriodTotal{Key: key, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
