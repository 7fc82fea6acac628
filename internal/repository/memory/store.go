// Package memory provides an in-process Store used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository"
)

// Store keeps every tenant in memory. Transactions are serialized and run against a private copy of
// the tenant that replaces the live one only when fn succeeds.
type Store struct {
	mu      sync.Mutex
	tenants map[string]*tenantState
	seq     int64
}

type tenantState struct {
	purchases map[string]models.PurchaseLog
	sales     map[string]models.SalesLog
	stock     map[string]models.ProductStock
}

var _ repository.Store = (*Store)(nil)

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		tenants: make(map[string]*tenantState),
	}
}

func newTenantState() *tenantState {
	return &tenantState{
		purchases: make(map[string]models.PurchaseLog),
		sales:     make(map[string]models.SalesLog),
		stock:     make(map[string]models.ProductStock),
	}
}

func (t *tenantState) clone() *tenantState {
	out := newTenantState()
	for k, v := range t.purchases {
		out.purchases[k] = clonePurchaseLog(v)
	}
	for k, v := range t.sales {
		out.sales[k] = cloneSalesLog(v)
	}
	for k, v := range t.stock {
		out.stock[k] = v
	}
	return out
}

func (t *tenantState) empty() bool {
	return len(t.purchases) == 0 && len(t.sales) == 0 && len(t.stock) == 0
}

func clonePurchaseLog(l models.PurchaseLog) models.PurchaseLog {
	l.Purchases = append([]models.PurchaseLineItem(nil), l.Purchases...)
	return l
}

func cloneSalesLog(l models.SalesLog) models.SalesLog {
	l.Sales = append([]models.SaleLineItem(nil), l.Sales...)
	return l
}

// RunInTx implements repository.Store.
func (s *Store) RunInTx(ctx context.Context, tenantID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.tenants[tenantID]
	if !ok {
		live = newTenantState()
	}

	tx := &memTx{store: s, tenantID: tenantID, state: live.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if tx.state.empty() {
		delete(s.tenants, tenantID)
	} else {
		s.tenants[tenantID] = tx.state
	}
	return nil
}

// LoadLogs implements repository.Store.
func (s *Store) LoadLogs(ctx context.Context, tenantID string) (*models.Logs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logs := &models.Logs{TenantID: tenantID}
	state, ok := s.tenants[tenantID]
	if !ok {
		return logs, nil
	}

	for _, l := range state.purchases {
		logs.Purchases = append(logs.Purchases, clonePurchaseLog(l))
	}
	for _, l := range state.sales {
		logs.Sales = append(logs.Sales, cloneSalesLog(l))
	}
	sort.Slice(logs.Purchases, func(i, j int) bool { return logs.Purchases[i].Supplier < logs.Purchases[j].Supplier })
	sort.Slice(logs.Sales, func(i, j int) bool { return logs.Sales[i].CustomerName < logs.Sales[j].CustomerName })
	return logs, nil
}

// ListStock implements repository.Store.
func (s *Store) ListStock(ctx context.Context, tenantID string) ([]models.ProductStock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.tenants[tenantID]
	if !ok {
		return nil, nil
	}

	out := make([]models.ProductStock, 0, len(state.stock))
	for _, st := range state.stock {
		out = append(out, st)
	}
	sortStock(out)
	return out, nil
}

// ListTenants implements repository.Store.
func (s *Store) ListTenants(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func sortStock(items []models.ProductStock) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
}

type memTx struct {
	store    *Store
	tenantID string
	state    *tenantState
}

func (t *memTx) GetPurchaseLog(_ context.Context, supplier string) (*models.PurchaseLog, error) {
	l, ok := t.state.purchases[supplier]
	if !ok {
		return nil, nil
	}
	out := clonePurchaseLog(l)
	return &out, nil
}

func (t *memTx) SavePurchaseLog(_ context.Context, log *models.PurchaseLog) error {
	current, ok := t.state.purchases[log.Supplier]
	if err := checkVersion(ok, current.Version, log.Version, "purchase log "+log.Supplier); err != nil {
		return err
	}
	log.TenantID = t.tenantID
	log.Version++
	t.state.purchases[log.Supplier] = clonePurchaseLog(*log)
	return nil
}

func (t *memTx) DeletePurchaseLog(_ context.Context, log *models.PurchaseLog) error {
	current, ok := t.state.purchases[log.Supplier]
	if !ok || current.Version != log.Version {
		return fmt.Errorf("%w: purchase log %s changed", models.ErrConflict, log.Supplier)
	}
	delete(t.state.purchases, log.Supplier)
	return nil
}

func (t *memTx) GetSalesLog(_ context.Context, customer string) (*models.SalesLog, error) {
	l, ok := t.state.sales[customer]
	if !ok {
		return nil, nil
	}
	out := cloneSalesLog(l)
	return &out, nil
}

func (t *memTx) SaveSalesLog(_ context.Context, log *models.SalesLog) error {
	current, ok := t.state.sales[log.CustomerName]
	if err := checkVersion(ok, current.Version, log.Version, "sales log "+log.CustomerName); err != nil {
		return err
	}
	log.TenantID = t.tenantID
	log.Version++
	t.state.sales[log.CustomerName] = cloneSalesLog(*log)
	return nil
}

func (t *memTx) DeleteSalesLog(_ context.Context, log *models.SalesLog) error {
	current, ok := t.state.sales[log.CustomerName]
	if !ok || current.Version != log.Version {
		return fmt.Errorf("%w: sales log %s changed", models.ErrConflict, log.CustomerName)
	}
	delete(t.state.sales, log.CustomerName)
	return nil
}

func (t *memTx) FindStock(_ context.Context, key models.BucketKey) (*models.ProductStock, error) {
	for _, st := range t.state.stock {
		if st.Key == key {
			out := st
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memTx) FindSaleStock(_ context.Context, category, monthKey, product string) (*models.ProductStock, error) {
	var matches []models.ProductStock
	for _, st := range t.state.stock {
		if st.Key.Category == category && st.Key.MonthKey == monthKey && st.Key.Product == product {
			matches = append(matches, st)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sortStock(matches)
	out := matches[0]
	return &out, nil
}

func (t *memTx) SaveStock(_ context.Context, stock *models.ProductStock) error {
	if stock.Version == 0 {
		for _, st := range t.state.stock {
			if st.Key == stock.Key {
				return fmt.Errorf("%w: stock bucket %s/%s/%s already exists", models.ErrConflict, stock.Key.Category, stock.Key.MonthKey, stock.Key.Product)
			}
		}
		t.store.seq++
		stock.ID = fmt.Sprintf("stk-%06d", t.store.seq)
	} else {
		current, ok := t.state.stock[stock.ID]
		if !ok || current.Version != stock.Version {
			return fmt.Errorf("%w: stock bucket %s changed", models.ErrConflict, stock.ID)
		}
	}
	stock.TenantID = t.tenantID
	stock.Version++
	t.state.stock[stock.ID] = *stock
	return nil
}

func (t *memTx) DeleteStock(_ context.Context, stock *models.ProductStock) error {
	current, ok := t.state.stock[stock.ID]
	if !ok || current.Version != stock.Version {
		return fmt.Errorf("%w: stock bucket %s changed", models.ErrConflict, stock.ID)
	}
	delete(t.state.stock, stock.ID)
	return nil
}

func checkVersion(exists bool, current, read int64, what string) error {
	switch {
	case read == 0 && exists:
		return fmt.Errorf("%w: %s already exists", models.ErrConflict, what)
	case read != 0 && (!exists || current != read):
		return fmt.Errorf("%w: %s changed", models.ErrConflict, what)
	}
	return nil
}
