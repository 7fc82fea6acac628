package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository"
)

const (
	OpAddSale    = "add_sale"
	OpEditSale   = "edit_sale"
	OpDeleteSale = "delete_sale"
)

// SaleInput describes a new sale. Amount is the revenue of the line; when Price is set the revenue is
// Price*Quantity instead.
type SaleInput struct {
	ID       string
	Customer string
	Product  string
	Category string
	Quantity int64
	Amount   decimal.Decimal
	Price    decimal.NullDecimal
	Date     time.Time
}

// SaleUpdate replaces the editable fields of an existing sale line item.
type SaleUpdate struct {
	Product  string
	Category string
	Quantity int64
	Amount   decimal.Decimal
	Price    decimal.NullDecimal
	Date     time.Time
}

var errUnrestorable = errors.New("sold units cannot be returned to stock")

func validateSale(product, category string, quantity int64, amount decimal.Decimal, price decimal.NullDecimal, date time.Time) error {
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
	if price.Valid && price.Decimal.IsNegative() {
		return fmt.Errorf("%w: price must be a non-negative number", models.ErrValidation)
	}
	if date.IsZero() {
		return fmt.Errorf("%w: date is required", models.ErrValidation)
	}
	return nil
}

// saleRevenue is the amount stored on the line item. It matches models.SaleLineItem.Revenue so listings
// and snapshot totals agree: a unit price wins over the caller's amount.
func saleRevenue(amount decimal.Decimal, price decimal.NullDecimal, quantity int64) decimal.Decimal {
	return models.SaleLineItem{Amount: amount, Price: price, Quantity: quantity}.Revenue()
}

// AddSale takes the sold units out of the product's bucket for the sale month, reducing the bucket's
// value at its current unit cost, and appends the sale to the customer's log.
func (s *Service) AddSale(ctx context.Context, tenantID string, in SaleInput) (models.SaleLineItem, error) {
	in.Customer = strings.TrimSpace(in.Customer)
	in.Product = strings.TrimSpace(in.Product)
	in.Category = strings.TrimSpace(in.Category)
	if err := required("customer", in.Customer); err != nil {
		return models.SaleLineItem{}, err
	}
	if err := validateSale(in.Product, in.Category, in.Quantity, in.Amount, in.Price, in.Date); err != nil {
		return models.SaleLineItem{}, err
	}

	var created models.SaleLineItem
	err := s.mutate(ctx, OpAddSale, tenantID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now().UTC()
		date := in.Date.UTC()
		monthKey := models.MonthKey(date)

		buckets := newBucketSet(tx)
		bk, err := buckets.forSale(ctx, in.Category, monthKey, in.Product)
		if err != nil {
			return err
		}
		if bk == nil {
			return fmt.Errorf("%w: product %q in category %q for %s is not in inventory",
				models.ErrNotFound, in.Product, in.Category, monthKey)
		}
		unitCost, err := bk.sell(in.Quantity)
		if err != nil {
			return err
		}

		log, err := tx.GetSalesLog(ctx, in.Customer)
		if err != nil {
			return fmt.Errorf("load sales log: %w", err)
		}
		if log == nil {
			log = &models.SalesLog{CustomerName: in.Customer, CreatedAt: now}
		}
		if log.Legacy {
			return fmt.Errorf("%w: sales document of %q is read-only", models.ErrValidation, in.Customer)
		}

		id := in.ID
		if id == "" {
			id = s.newID()
		}
		item := models.SaleLineItem{
			ID:        uniqueID(id, log.HasID, now),
			Product:   in.Product,
			Category:  in.Category,
			Quantity:  in.Quantity,
			Amount:    saleRevenue(in.Amount, in.Price, in.Quantity),
			Price:     in.Price,
			UnitCost:  decimal.NewNullDecimal(unitCost),
			Supplier:  bk.stock.Key.Supplier,
			Date:      date,
			CreatedAt: now,
		}
		if item.ID != id {
			s.logger.Warn("duplicate sale id, generated a new one", zap.String("requested", id), zap.String("assigned", item.ID))
		}

		if err := buckets.flush(ctx, now); err != nil {
			return err
		}
		log.Sales = append(log.Sales, item)
		if err := tx.SaveSalesLog(ctx, log); err != nil {
			return fmt.Errorf("save sales log: %w", err)
		}

		created = item
		return nil
	})
	if err != nil {
		return models.SaleLineItem{}, err
	}
	return created, nil
}

// EditSale returns the old sale's units to their bucket, checks the new bucket can cover the new
// quantity and then takes it out. When it cannot, nothing is written: the staged return of the old
// units is discarded together with the transaction.
func (s *Service) EditSale(ctx context.Context, tenantID, customer, saleID string, upd SaleUpdate) (models.SaleLineItem, error) {
	upd.Product = strings.TrimSpace(upd.Product)
	upd.Category = strings.TrimSpace(upd.Category)
	if err := required("customer", customer); err != nil {
		return models.SaleLineItem{}, err
	}
	if err := required("sale id", saleID); err != nil {
		return models.SaleLineItem{}, err
	}
	if err := validateSale(upd.Product, upd.Category, upd.Quantity, upd.Amount, upd.Price, upd.Date); err != nil {
		return models.SaleLineItem{}, err
	}

	var updated models.SaleLineItem
	err := s.mutate(ctx, OpEditSale, tenantID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now().UTC()

		log, idx, err := loadSale(ctx, tx, customer, saleID)
		if err != nil {
			return err
		}
		old := log.Sales[idx]

		buckets := newBucketSet(tx)
		oldBucket, err := s.revertSale(ctx, buckets, old)
		if err != nil {
			if errors.Is(err, errUnrestorable) {
				return fmt.Errorf("%w: stock bucket of the original sale %q no longer exists", models.ErrNotFound, saleID)
			}
			return err
		}

		next := old
		next.Product = upd.Product
		next.Category = upd.Category
		next.Quantity = upd.Quantity
		next.Amount = saleRevenue(upd.Amount, upd.Price, upd.Quantity)
		next.Price = upd.Price
		next.Date = upd.Date.UTC()
		monthKey := models.MonthKey(next.Date)

		target := oldBucket
		if old.Product != next.Product || old.Category != next.Category || models.MonthKey(old.Date) != monthKey {
			target, err = buckets.forSale(ctx, next.Category, monthKey, next.Product)
			if err != nil {
				return err
			}
			if target == nil {
				return fmt.Errorf("%w: product %q in category %q for %s is not in inventory",
					models.ErrNotFound, next.Product, next.Category, monthKey)
			}
		}

		unitCost, err := target.sell(next.Quantity)
		if err != nil {
			s.logger.Info("sale edit rejected, returned units rolled back",
				zap.String("sale", saleID),
				zap.Int64("requested", next.Quantity),
				zap.Error(err))
			return err
		}
		next.UnitCost = decimal.NewNullDecimal(unitCost)
		next.Supplier = target.stock.Key.Supplier

		if err := buckets.flush(ctx, now); err != nil {
			return err
		}
		log.Sales[idx] = next
		if err := tx.SaveSalesLog(ctx, log); err != nil {
			return fmt.Errorf("save sales log: %w", err)
		}

		updated = next
		return nil
	})
	if err != nil {
		return models.SaleLineItem{}, err
	}
	return updated, nil
}

// DeleteSale removes a sale line item and returns its units to stock. When the bucket was deleted
// because the stock ran out and the sale carries no recorded unit cost, the units cannot be put back;
// the sale is still removed and the gap is logged.
func (s *Service) DeleteSale(ctx context.Context, tenantID, customer, saleID string) error {
	if err := required("customer", customer); err != nil {
		return err
	}
	if err := required("sale id", saleID); err != nil {
		return err
	}

	return s.mutate(ctx, OpDeleteSale, tenantID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now().UTC()

		log, idx, err := loadSale(ctx, tx, customer, saleID)
		if err != nil {
			return err
		}
		old := log.Sales[idx]

		buckets := newBucketSet(tx)
		if _, err := s.revertSale(ctx, buckets, old); err != nil {
			if !errors.Is(err, errUnrestorable) {
				return err
			}
			s.logger.Warn("stock not restored on sale deletion",
				zap.String("sale", saleID),
				zap.String("product", old.Product),
				zap.Int64("quantity", old.Quantity),
				zap.Error(fmt.Errorf("%w: %w", models.ErrInconsistentState, err)))
		}
		if err := buckets.flush(ctx, now); err != nil {
			return err
		}

		log.Sales = append(log.Sales[:idx], log.Sales[idx+1:]...)
		if len(log.Sales) == 0 {
			if err := tx.DeleteSalesLog(ctx, log); err != nil {
				return fmt.Errorf("delete sales log: %w", err)
			}
			return nil
		}
		if err := tx.SaveSalesLog(ctx, log); err != nil {
			return fmt.Errorf("save sales log: %w", err)
		}
		return nil
	})
}

func loadSale(ctx context.Context, tx repository.Tx, customer, saleID string) (*models.SalesLog, int, error) {
	log, err := tx.GetSalesLog(ctx, customer)
	if err != nil {
		return nil, 0, fmt.Errorf("load sales log: %w", err)
	}
	if log == nil {
		return nil, 0, fmt.Errorf("%w: no sales recorded for customer %q", models.ErrNotFound, customer)
	}
	if log.Legacy {
		return nil, 0, fmt.Errorf("%w: sales document of %q is read-only", models.ErrValidation, customer)
	}
	idx := log.IndexOf(saleID)
	if idx < 0 {
		return nil, 0, fmt.Errorf("%w: sale %q of customer %q", models.ErrNotFound, saleID, customer)
	}
	return log, idx, nil
}

// revertSale stages the return of a sale's units to the bucket it drew from. The value put back uses
// the unit cost recorded on the sale, falling back to the bucket's current unit cost. A deleted bucket
// is recreated only when the sale recorded both its supplier and unit cost and a purchase from that
// supplier still stocks the bucket.
func (s *Service) revertSale(ctx context.Context, buckets *bucketSet, item models.SaleLineItem) (*bucket, error) {
	monthKey := models.MonthKey(item.Date)

	var bk *bucket
	var err error
	if item.Supplier != "" {
		bk, err = buckets.byKey(ctx, models.BucketKey{
			Category: item.Category,
			MonthKey: monthKey,
			Product:  item.Product,
			Supplier: item.Supplier,
		})
	} else {
		bk, err = buckets.forSale(ctx, item.Category, monthKey, item.Product)
	}
	if err != nil {
		return nil, err
	}

	live := bk != nil && bk.stock.Quantity > 0
	switch {
	case live:
		unitCost := bk.stock.UnitCost()
		if item.UnitCost.Valid {
			unitCost = item.UnitCost.Decimal
		}
		bk.add(item.Quantity, unitCost.Mul(decimal.NewFromInt(item.Quantity)), item.Date)
	case bk != nil && item.UnitCost.Valid && item.Supplier != "":
		backed, err := buckets.hasPurchase(ctx, bk.stock.Key)
		if err != nil {
			return nil, err
		}
		if !backed {
			return nil, fmt.Errorf("%w: bucket %s/%s/%s is gone and no purchase from %q remains",
				errUnrestorable, item.Category, monthKey, item.Product, item.Supplier)
		}
		bk.add(item.Quantity, item.UnitCost.Decimal.Mul(decimal.NewFromInt(item.Quantity)), item.Date)
	default:
		return nil, fmt.Errorf("%w: bucket %s/%s/%s is gone and the sale has no recorded unit cost",
			errUnrestorable, item.Category, monthKey, item.Product)
	}
	return bk, nil
}
