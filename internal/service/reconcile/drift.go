package reconcile

import (
	"sort"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

// Drift lists the products whose bucket quantities, summed over every month and supplier, differ from
// the stock reconciled from the logs. Month bucketing means some drift is expected after cross-month
// sales or edits.
func Drift(snap *models.InventorySnapshot, stock []models.ProductStock) []models.StockDrift {
	ledger := make(map[string]int64)
	buckets := make(map[string]int)
	for _, st := range stock {
		ledger[st.Key.Product] += st.Quantity
		buckets[st.Key.Product]++
	}

	computed := make(map[string]int64)
	if snap != nil {
		for _, p := range snap.Products {
			computed[p.Product] = p.CurrentStock
		}
	}

	names := make(map[string]struct{})
	for name := range ledger {
		names[name] = struct{}{}
	}
	for name := range computed {
		names[name] = struct{}{}
	}

	var out []models.StockDrift
	for name := range names {
		// Fully sold products are absent from the buckets; negative computed stock counts as zero.
		want := max(computed[name], 0)
		if ledger[name] == want {
			continue
		}
		out = append(out, models.StockDrift{
			Product:        name,
			LedgerQuantity: ledger[name],
			ComputedStock:  computed[name],
			Difference:     ledger[name] - want,
			Buckets:        buckets[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	return out
}
