package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository"
)

const (
	OpAddPurchase    = "add_purchase"
	OpEditPurchase   = "edit_purchase"
	OpDeletePurchase = "delete_purchase"
)

// PurchaseInput describes a new purchase. ID is optional; a random one is generated when empty.
type PurchaseInput struct {
	ID       string
	Supplier string
	Product  string
	Category string
	Quantity int64
	Amount   decimal.Decimal
	Date     time.Time
}

// PurchaseUpdate replaces the editable fields of an existing purchase line item.
type PurchaseUpdate struct {
	Product  string
	Category string
	Quantity int64
	Amount   decimal.Decimal
	Date     time.Time
}

func validatePurchase(product, category string, quantity int64, amount decimal.Decimal, date time.Time) error {
	if err := required("product", product); err != nil {
		return err
	}
	if err := required("category", category); err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive number", models.ErrValidation)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount must be a non-negative number", models.ErrValidation)
	}
	if date.IsZero() {
		return fmt.Errorf("%w: date is required", models.ErrValidation)
	}
	return nil
}

func purchaseBucket(supplier string, item models.PurchaseLineItem) models.BucketKey {
	return models.BucketKey{
		Category: item.Category,
		MonthKey: models.MonthKey(item.Date),
		Product:  item.Product,
		Supplier: supplier,
	}
}

// AddPurchase appends a purchase to the supplier's log and adds its units and cost to the
// matching stock bucket, creating either document when absent.
func (s *Service) AddPurchase(ctx context.Context, tenantID string, in PurchaseInput) (models.PurchaseLineItem, error) {
	in.Supplier = strings.TrimSpace(in.Supplier)
	in.Product = strings.TrimSpace(in.Product)
	in.Category = strings.TrimSpace(in.Category)
	if err := required("supplier", in.Supplier); err != nil {
		return models.PurchaseLineItem{}, err
	}
	if err := validatePurchase(in.Product, in.Category, in.Quantity, in.Amount, in.Date); err != nil {
		return models.PurchaseLineItem{}, err
	}

	var created models.PurchaseLineItem
	err := s.mutate(ctx, OpAddPurchase, tenantID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now().UTC()

		log, err := tx.GetPurchaseLog(ctx, in.Supplier)
		if err != nil {
			return fmt.Errorf("load purchase log: %w", err)
		}
		if log == nil {
			log = &models.PurchaseLog{Supplier: in.Supplier, CreatedAt: now}
		}

		id := in.ID
		if id == "" {
			id = s.newID()
		}
		item := models.PurchaseLineItem{
			ID:        uniqueID(id, log.HasID, now),
			Product:   in.Product,
			Category:  in.Category,
			Quantity:  in.Quantity,
			Amount:    in.Amount,
			Date:      in.Date.UTC(),
			CreatedAt: now,
		}
		if item.ID != id {
			s.logger.Warn("duplicate purchase id, generated a new one", zap.String("requested", id), zap.String("assigned", item.ID))
		}

		log.Purchases = append(log.Purchases, item)
		if err := tx.SavePurchaseLog(ctx, log); err != nil {
			return fmt.Errorf("save purchase log: %w", err)
		}

		buckets := newBucketSet(tx)
		bk, err := buckets.byKey(ctx, purchaseBucket(in.Supplier, item))
		if err != nil {
			return err
		}
		bk.add(item.Quantity, item.Amount, item.Date)
		if err := buckets.flush(ctx, now); err != nil {
			return err
		}

		created = item
		return nil
	})
	if err != nil {
		return models.PurchaseLineItem{}, err
	}
	return created, nil
}

// EditPurchase rewrites a purchase line item in place. The old item's units and cost are taken out of
// its bucket and the new item's are added to its own, which may be the same bucket.
func (s *Service) EditPurchase(ctx context.Context, tenantID, supplier, purchaseID string, upd PurchaseUpdate) (models.PurchaseLineItem, error) {
	upd.Product = strings.TrimSpace(upd.Product)
	upd.Category = strings.TrimSpace(upd.Category)
	if err := required("supplier", supplier); err != nil {
		return models.PurchaseLineItem{}, err
	}
	if err := required("purchase id", purchaseID); err != nil {
		return models.PurchaseLineItem{}, err
	}
	if err := validatePurchase(upd.Product, upd.Category, upd.Quantity, upd.Amount, upd.Date); err != nil {
		return models.PurchaseLineItem{}, err
	}

	var updated models.PurchaseLineItem
	err := s.mutate(ctx, OpEditPurchase, tenantID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now().UTC()

		log, idx, err := loadPurchase(ctx, tx, supplier, purchaseID)
		if err != nil {
			return err
		}
		old := log.Purchases[idx]

		next := old
		next.Product = upd.Product
		next.Category = upd.Category
		next.Quantity = upd.Quantity
		next.Amount = upd.Amount
		next.Date = upd.Date.UTC()

		buckets := newBucketSet(tx)
		if err := s.revertPurchase(ctx, buckets, supplier, old); err != nil {
			return err
		}
		bk, err := buckets.byKey(ctx, purchaseBucket(supplier, next))
		if err != nil {
			return err
		}
		bk.add(next.Quantity, next.Amount, next.Date)
		if err := buckets.flush(ctx, now); err != nil {
			return err
		}

		log.Purchases[idx] = next
		if err := tx.SavePurchaseLog(ctx, log); err != nil {
			return fmt.Errorf("save purchase log: %w", err)
		}

		updated = next
		return nil
	})
	if err != nil {
		return models.PurchaseLineItem{}, err
	}
	return updated, nil
}

// DeletePurchase removes a purchase line item, takes its units and cost back out of the bucket and
// deletes the supplier log once it holds no line items.
func (s *Service) DeletePurchase(ctx context.Context, tenantID, supplier, purchaseID string) error {
	if err := required("supplier", supplier); err != nil {
		return err
	}
	if err := required("purchase id", purchaseID); err != nil {
		return err
	}

	return s.mutate(ctx, OpDeletePurchase, tenantID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now().UTC()

		log, idx, err := loadPurchase(ctx, tx, supplier, purchaseID)
		if err != nil {
			return err
		}
		old := log.Purchases[idx]

		buckets := newBucketSet(tx)
		if err := s.revertPurchase(ctx, buckets, supplier, old); err != nil {
			return err
		}
		if err := buckets.flush(ctx, now); err != nil {
			return err
		}

		log.Purchases = append(log.Purchases[:idx], log.Purchases[idx+1:]...)
		if len(log.Purchases) == 0 {
			if err := tx.DeletePurchaseLog(ctx, log); err != nil {
				return fmt.Errorf("delete purchase log: %w", err)
			}
			return nil
		}
		if err := tx.SavePurchaseLog(ctx, log); err != nil {
			return fmt.Errorf("save purchase log: %w", err)
		}
		return nil
	})
}

func loadPurchase(ctx context.Context, tx repository.Tx, supplier, purchaseID string) (*models.PurchaseLog, int, error) {
	log, err := tx.GetPurchaseLog(ctx, supplier)
	if err != nil {
		return nil, 0, fmt.Errorf("load purchase log: %w", err)
	}
	if log == nil {
		return nil, 0, fmt.Errorf("%w: no purchases recorded for supplier %q", models.ErrNotFound, supplier)
	}
	idx := log.IndexOf(purchaseID)
	if idx < 0 {
		return nil, 0, fmt.Errorf("%w: purchase %q of supplier %q", models.ErrNotFound, purchaseID, supplier)
	}
	return log, idx, nil
}

// revertPurchase takes a purchase back out of its bucket. A bucket that is already gone means the units
// were sold off; the purchase is still reverted in the log.
func (s *Service) revertPurchase(ctx context.Context, buckets *bucketSet, supplier string, item models.PurchaseLineItem) error {
	key := purchaseBucket(supplier, item)
	bk, err := buckets.byKey(ctx, key)
	if err != nil {
		return err
	}
	if !bk.existed && !bk.dirty {
		s.logger.Warn("stock bucket not found while reverting purchase",
			zap.String("product", key.Product),
			zap.String("category", key.Category),
			zap.String("month", key.MonthKey),
			zap.String("supplier", supplier))
		return nil
	}
	bk.remove(item.Quantity, item.Amount)
	return nil
}
