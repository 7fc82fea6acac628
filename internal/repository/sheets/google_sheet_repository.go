package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/stockbook/internal/config"
	"github.com/mamadbah2/stockbook/internal/domain/models"
)

// DefaultReportRange is where daily report rows are appended.
const DefaultReportRange = "DailyReports!A:H"

// RowWriter appends one row to a sheet range.
type RowWriter interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
}

// GoogleSheetRepository implements RowWriter using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// ReportExporter appends daily reports as spreadsheet rows.
type ReportExporter struct {
	writer     RowWriter
	sheetRange string
}

// NewReportExporter writes to sheetRange, or DefaultReportRange when empty.
func NewReportExporter(writer RowWriter, sheetRange string) *ReportExporter {
	if sheetRange == "" {
		sheetRange = DefaultReportRange
	}
	return &ReportExporter{writer: writer, sheetRange: sheetRange}
}

// SaveDailyReport appends one row per report.
func (e *ReportExporter) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	return e.writer.WriteRow(ctx, e.sheetRange, ReportRow(report))
}

// ReportRow lays a report out as: date, tenant, total stock, products in stock, categories,
// sales amount, low stock products, created at.
func ReportRow(report models.DailyReport) []interface{} {
	return []interface{}{
		report.Date.Format("2006-01-02"),
		report.TenantID,
		report.TotalStockQuantity,
		report.ProductsInStock,
		report.DistinctCategories,
		report.TotalSalesAmount.StringFixed(2),
		strings.Join(report.LowStockProducts, ", "),
		report.CreatedAt.Format(time.RFC3339),
	}
}
