// Package export renders inventory snapshots as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

// Sheet names of the inventory workbook.
const (
	InventorySheet = "Inventory"
	SummarySheet   = "Summary"
	SalesSheet     = "Sales"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var inventoryHeadings = []interface{}{
	"Product", "Category", "Purchased", "Sold", "Current Stock", "Avg Daily Sales", "Min Stock", "Low Stock",
}

// WriteInventory writes the snapshot and its forecasts as an xlsx workbook to w.
func WriteInventory(w io.Writer, snap *models.InventorySnapshot, forecasts []models.StockForecast) error {
	f, err := BuildInventory(snap, forecasts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// BuildInventory lays the workbook out in memory.
func BuildInventory(snap *models.InventorySnapshot, forecasts []models.StockForecast) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", InventorySheet); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SummarySheet, SalesSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	byProduct := make(map[string]models.StockForecast, len(forecasts))
	for _, fc := range forecasts {
		byProduct[fc.Product] = fc
	}

	rows := [][]interface{}{inventoryHeadings}
	for _, p := range snap.Products {
		fc := byProduct[p.Product]
		rows = append(rows, []interface{}{
			p.Product, p.Category, p.Purchased, p.Sold, p.CurrentStock,
			fc.AverageDailySales, fc.DynamicMinStock, yesNo(fc.Low),
		})
	}
	if err := writeRows(f, InventorySheet, rows); err != nil {
		f.Close()
		return nil, err
	}

	summary := [][]interface{}{
		{"Tenant", snap.TenantID},
		{"Generated At", snap.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Total Stock Quantity", snap.TotalStockQuantity},
		{"Products In Stock", snap.ProductsInStock},
		{"Distinct Categories", snap.DistinctCategories},
		{"Total Sales Amount", snap.TotalSalesAmount.InexactFloat64()},
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		f.Close()
		return nil, err
	}

	sales := [][]interface{}{{"Month", "Amount", "", "Category", "Amount"}}
	n := len(snap.MonthlySales)
	if len(snap.SalesByCategory) > n {
		n = len(snap.SalesByCategory)
	}
	for i := 0; i < n; i++ {
		row := []interface{}{"", "", "", "", ""}
		if i < len(snap.MonthlySales) {
			row[0], row[1] = snap.MonthlySales[i].Key, snap.MonthlySales[i].Amount.InexactFloat64()
		}
		if i < len(snap.SalesByCategory) {
			row[3], row[4] = snap.SalesByCategory[i].Key, snap.SalesByCategory[i].Amount.InexactFloat64()
		}
		sales = append(sales, row)
	}
	if err := writeRows(f, SalesSheet, sales); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
