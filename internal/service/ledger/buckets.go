package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository"
)

// bucketSet stages stock bucket changes for one transaction. Reversals and applications are computed
// on working copies and only written by flush, so a rejected step leaves every bucket untouched.
type bucketSet struct {
	tx     repository.Tx
	loaded map[models.BucketKey]*bucket
	order  []models.BucketKey
}

type bucket struct {
	stock   models.ProductStock
	existed bool
	dirty   bool
}

func newBucketSet(tx repository.Tx) *bucketSet {
	return &bucketSet{tx: tx, loaded: make(map[models.BucketKey]*bucket)}
}

func (b *bucketSet) track(st models.ProductStock, existed bool) *bucket {
	if cur, ok := b.loaded[st.Key]; ok {
		return cur
	}
	bk := &bucket{stock: st, existed: existed}
	b.loaded[st.Key] = bk
	b.order = append(b.order, st.Key)
	return bk
}

// byKey returns the bucket for key, staging an empty one when the store has none.
func (b *bucketSet) byKey(ctx context.Context, key models.BucketKey) (*bucket, error) {
	if cur, ok := b.loaded[key]; ok {
		return cur, nil
	}
	st, err := b.tx.FindStock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find stock bucket: %w", err)
	}
	if st == nil {
		return b.track(models.ProductStock{Key: key}, false), nil
	}
	return b.track(*st, true), nil
}

// forSale returns the bucket a sale of product in category and month draws from, or nil.
func (b *bucketSet) forSale(ctx context.Context, category, monthKey, product string) (*bucket, error) {
	st, err := b.tx.FindSaleStock(ctx, category, monthKey, product)
	if err != nil {
		return nil, fmt.Errorf("find stock bucket: %w", err)
	}
	var found *bucket
	if st != nil {
		found = b.track(*st, true)
		if found.stock.Quantity > 0 {
			return found, nil
		}
	}
	for _, key := range b.order {
		bk := b.loaded[key]
		if key.Category == category && key.MonthKey == monthKey && key.Product == product && bk.stock.Quantity > 0 {
			return bk, nil
		}
	}
	return found, nil
}

// hasPurchase reports whether the supplier's purchase log still holds a line item for key.
func (b *bucketSet) hasPurchase(ctx context.Context, key models.BucketKey) (bool, error) {
	log, err := b.tx.GetPurchaseLog(ctx, key.Supplier)
	if err != nil {
		return false, fmt.Errorf("load purchase log: %w", err)
	}
	if log == nil {
		return false, nil
	}
	for _, item := range log.Purchases {
		if item.Product == key.Product && item.Category == key.Category && models.MonthKey(item.Date) == key.MonthKey {
			return true, nil
		}
	}
	return false, nil
}

func (bk *bucket) add(quantity int64, amount decimal.Decimal, date time.Time) {
	if !bk.existed && bk.stock.Date.IsZero() {
		bk.stock.Date = date
	}
	bk.stock.Quantity += quantity
	bk.stock.Amount = bk.stock.Amount.Add(amount)
	bk.dirty = true
}

// remove may leave the working copy negative; flush settles it.
func (bk *bucket) remove(quantity int64, amount decimal.Decimal) {
	bk.stock.Quantity -= quantity
	bk.stock.Amount = bk.stock.Amount.Sub(amount)
	bk.dirty = true
}

// sell takes quantity units out at the bucket's current unit cost and returns that cost.
func (bk *bucket) sell(quantity int64) (decimal.Decimal, error) {
	if bk.stock.Quantity < quantity {
		return decimal.Zero, fmt.Errorf("%w: %q has %d units available, %d requested",
			models.ErrInsufficientStock, bk.stock.Key.Product, max(bk.stock.Quantity, 0), quantity)
	}
	unitCost := bk.stock.UnitCost()
	bk.remove(quantity, unitCost.Mul(decimal.NewFromInt(quantity)))
	if bk.stock.Quantity == 0 {
		bk.stock.Amount = decimal.Zero
	}
	return unitCost, nil
}

// flush writes every touched bucket: buckets at or below zero units are deleted, the rest saved.
func (b *bucketSet) flush(ctx context.Context, now time.Time) error {
	for _, key := range b.order {
		bk := b.loaded[key]
		if !bk.dirty {
			continue
		}

		if bk.stock.Quantity <= 0 {
			if !bk.existed {
				continue
			}
			if err := b.tx.DeleteStock(ctx, &bk.stock); err != nil {
				return fmt.Errorf("delete stock bucket: %w", err)
			}
			continue
		}

		if bk.stock.Amount.IsNegative() {
			bk.stock.Amount = decimal.Zero
		}
		if bk.existed {
			bk.stock.UpdatedAt = now
		} else {
			bk.stock.AddedAt = now
		}
		if err := b.tx.SaveStock(ctx, &bk.stock); err != nil {
			return fmt.Errorf("save stock bucket: %w", err)
		}
	}
	return nil
}
