package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

func TestWriteInventory(t *testing.T) {
	snap := &models.InventorySnapshot{
		TenantID:           "shop-a",
		GeneratedAt:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		TotalStockQuantity: 7,
		ProductsInStock:    1,
		DistinctCategories: 1,
		TotalSalesAmount:   decimal.NewFromInt(300),
		Products: []models.ProductSnapshot{
			{Product: "Rice", Category: "Food", Purchased: 10, Sold: 3, CurrentStock: 7},
			{Product: "Soap", Category: "Hygiene", Purchased: 2, Sold: 2, CurrentStock: 0},
		},
		MonthlySales:    []models.PeriodTotal{{Key: "2024-02", Amount: decimal.NewFromInt(300)}},
		SalesByCategory: []models.PeriodTotal{{Key: "Food", Amount: decimal.NewFromInt(200)}, {Key: "Hygiene", Amount: decimal.NewFromInt(100)}},
	}
	forecasts := []models.StockForecast{
		{Product: "Rice", CurrentStock: 7, AverageDailySales: 0.5, DynamicMinStock: 4},
		{Product: "Soap", CurrentStock: 0, Low: true},
	}

	var buf bytes.Buffer
	if err := WriteInventory(&buf, snap, forecasts); err != nil {
		t.Fatalf("WriteInventory: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(InventorySheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("inventory rows = %d, want 3", len(rows))
	}
	if rows[1][0] != "Rice" || rows[1][4] != "7" || rows[1][6] != "4" || rows[1][7] != "No" {
		t.Errorf("rice row = %v", rows[1])
	}
	if rows[2][0] != "Soap" || rows[2][7] != "Yes" {
		t.Errorf("soap row = %v", rows[2])
	}

	total, err := f.GetCellValue(SummarySheet, "B3")
	if err != nil || total != "7" {
		t.Errorf("summary total stock = %q, %v", total, err)
	}

	sales, err := f.GetRows(SalesSheet)
	if err != nil {
		t.Fatalf("GetRows sales: %v", err)
	}
	if len(sales) != 3 || sales[1][0] != "2024-02" || sales[2][3] != "Hygiene" {
		t.Errorf("sales rows = %v", sales)
	}
}
