package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository"
)

func key(product, supplier string) models.BucketKey {
	return models.BucketKey{Category: "Food", MonthKey: "Mar-2024", Product: product, Supplier: supplier}
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.RunInTx(ctx, "t1", func(ctx context.Context, tx repository.Tx) error {
		log := &models.PurchaseLog{Supplier: "Acme", Purchases: []models.PurchaseLineItem{{ID: "p1", Product: "Rice"}}}
		if err := tx.SavePurchaseLog(ctx, log); err != nil {
			return err
		}
		if log.Version != 1 || log.TenantID != "t1" {
			t.Errorf("save must stamp tenant and bump version, got %+v", log)
		}
		return tx.SaveStock(ctx, &models.ProductStock{Key: key("Rice", "Acme"), Quantity: 3, Amount: decimal.NewFromInt(30)})
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	logs, _ := s.LoadLogs(ctx, "t1")
	if len(logs.Purchases) != 1 || logs.Purchases[0].Purchases[0].ID != "p1" {
		t.Fatalf("purchase log not committed: %+v", logs)
	}
	stock, _ := s.ListStock(ctx, "t1")
	if len(stock) != 1 || stock[0].ID == "" || stock[0].Version != 1 {
		t.Fatalf("stock not committed: %+v", stock)
	}
	tenants, _ := s.ListTenants(ctx)
	if len(tenants) != 1 || tenants[0] != "t1" {
		t.Fatalf("tenants = %v", tenants)
	}
}

func TestRunInTxDiscardsOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, "t1", func(ctx context.Context, tx repository.Tx) error {
		if err := tx.SaveSalesLog(ctx, &models.SalesLog{CustomerName: "Bob"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	logs, _ := s.LoadLogs(ctx, "t1")
	if len(logs.Sales) != 0 {
		t.Fatalf("aborted write leaked: %+v", logs.Sales)
	}
}

func TestVersionConflicts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	seed := func(ctx context.Context, tx repository.Tx) error {
		return tx.SavePurchaseLog(ctx, &models.PurchaseLog{Supplier: "Acme"})
	}
	if err := s.RunInTx(ctx, "t1", seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name string
		fn   func(ctx context.Context, tx repository.Tx) error
	}{
		{"insert over existing", seed},
		{"stale update", func(ctx context.Context, tx repository.Tx) error {
			return tx.SavePurchaseLog(ctx, &models.PurchaseLog{Supplier: "Acme", Version: 7})
		}},
		{"stale delete", func(ctx context.Context, tx repository.Tx) error {
			return tx.DeletePurchaseLog(ctx, &models.PurchaseLog{Supplier: "Acme", Version: 2})
		}},
		{"update of missing stock", func(ctx context.Context, tx repository.Tx) error {
			return tx.SaveStock(ctx, &models.ProductStock{ID: "stk-999999", Key: key("Rice", "Acme"), Version: 1})
		}},
		{"duplicate stock key", func(ctx context.Context, tx repository.Tx) error {
			if err := tx.SaveStock(ctx, &models.ProductStock{Key: key("Rice", "Acme"), Quantity: 1}); err != nil {
				return err
			}
			return tx.SaveStock(ctx, &models.ProductStock{Key: key("Rice", "Acme"), Quantity: 1})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.RunInTx(ctx, "t1", tt.fn); !errors.Is(err, models.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	}
}

func TestFindSaleStockReturnsOldestBucket(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.RunInTx(ctx, "t1", func(ctx context.Context, tx repository.Tx) error {
		for _, st := range []models.ProductStock{
			{Key: key("Rice", "Zed"), Quantity: 1, Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
			{Key: key("Rice", "Acme"), Quantity: 1, Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
			{Key: key("Beans", "Acme"), Quantity: 1, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		} {
			st := st
			if err := tx.SaveStock(ctx, &st); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = s.RunInTx(ctx, "t1", func(ctx context.Context, tx repository.Tx) error {
		st, err := tx.FindSaleStock(ctx, "Food", "Mar-2024", "Rice")
		if err != nil {
			return err
		}
		if st == nil || st.Key.Supplier != "Acme" {
			t.Errorf("oldest rice bucket = %+v, want Acme", st)
		}
		missing, err := tx.FindSaleStock(ctx, "Food", "Apr-2024", "Rice")
		if err != nil {
			return err
		}
		if missing != nil {
			t.Errorf("expected no bucket for April, got %+v", missing)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
}

func TestEmptyTenantIsDropped(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	log := &models.SalesLog{CustomerName: "Bob"}
	_ = s.RunInTx(ctx, "t1", func(ctx context.Context, tx repository.Tx) error { return tx.SaveSalesLog(ctx, log) })
	_ = s.RunInTx(ctx, "t1", func(ctx context.Context, tx repository.Tx) error { return tx.DeleteSalesLog(ctx, log) })

	tenants, _ := s.ListTenants(ctx)
	if len(tenants) != 0 {
		t.Fatalf("tenants = %v, want none", tenants)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStore().LoadLogs(ctx, "t1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
