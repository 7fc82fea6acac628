package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/export"
	"github.com/mamadbah2/stockbook/internal/service/ledger"
	"github.com/mamadbah2/stockbook/internal/service/reporting"
)

// LedgerService is the mutation surface used by the handler.
type LedgerService interface {
	AddPurchase(ctx context.Context, tenantID string, in ledger.PurchaseInput) (models.PurchaseLineItem, error)
	EditPurchase(ctx context.Context, tenantID, supplier, purchaseID string, upd ledger.PurchaseUpdate) (models.PurchaseLineItem, error)
	DeletePurchase(ctx context.Context, tenantID, supplier, purchaseID string) error
	AddSale(ctx context.Context, tenantID string, in ledger.SaleInput) (models.SaleLineItem, error)
	EditSale(ctx context.Context, tenantID, customer, saleID string, upd ledger.SaleUpdate) (models.SaleLineItem, error)
	DeleteSale(ctx context.Context, tenantID, customer, saleID string) error
}

// ReportingService is the read surface used by the handler.
type ReportingService interface {
	ComputeSnapshot(ctx context.Context, tenantID string) (*models.InventorySnapshot, error)
	Forecast(ctx context.Context, tenantID string) ([]models.StockForecast, error)
	ListLowStock(ctx context.Context, tenantID string) ([]string, error)
	Drift(ctx context.Context, tenantID string) ([]models.StockDrift, error)
	RecentActivity(ctx context.Context, tenantID string, limit int) ([]models.Activity, error)
	ListPurchases(ctx context.Context, tenantID string) ([]reporting.PurchaseRow, error)
	ListSales(ctx context.Context, tenantID string) ([]reporting.SaleRow, error)
}

// InventoryHandler serves the tenant inventory API.
type InventoryHandler struct {
	ledger  LedgerService
	reports ReportingService
	logger  *zap.Logger
}

// NewInventoryHandler constructs the HTTP handler adapter.
func NewInventoryHandler(ledgerSvc LedgerService, reports ReportingService, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{ledger: ledgerSvc, reports: reports, logger: logger}
}

func (h *InventoryHandler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if fields := fieldErrors(err); fields != nil {
			h.logger.Warn("invalid request body", zap.String("tenant", c.Param("tenantID")), zap.Any("fields", fields))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "fields": fields})
			return false
		}
		h.writeError(c, "invalid request body", fmt.Errorf("%w: %v", models.ErrValidation, err))
		return false
	}
	return true
}

// Snapshot returns the reconciled inventory.
func (h *InventoryHandler) Snapshot(c *gin.Context) {
	snap, err := h.reports.ComputeSnapshot(c.Request.Context(), c.Param("tenantID"))
	if err != nil {
		h.writeError(c, "failed to compute snapshot", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// LowStock returns the names of products at or below their reorder threshold.
func (h *InventoryHandler) LowStock(c *gin.Context) {
	names, err := h.reports.ListLowStock(c.Request.Context(), c.Param("tenantID"))
	if err != nil {
		h.writeError(c, "failed to list low stock", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": names})
}

// Forecast returns the dynamic minimum stock of every product.
func (h *InventoryHandler) Forecast(c *gin.Context) {
	forecasts, err := h.reports.Forecast(c.Request.Context(), c.Param("tenantID"))
	if err != nil {
		h.writeError(c, "failed to compute forecast", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"forecasts": forecasts})
}

// Activity returns the most recent purchases and sales.
func (h *InventoryHandler) Activity(c *gin.Context) {
	limit := reporting.DefaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(c, "invalid limit", fmt.Errorf("%w: limit must be a positive integer", models.ErrValidation))
			return
		}
		limit = n
	}

	activities, err := h.reports.RecentActivity(c.Request.Context(), c.Param("tenantID"), limit)
	if err != nil {
		h.writeError(c, "failed to load activity", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

// Drift lists products whose stock buckets disagree with the reconciled stock.
func (h *InventoryHandler) Drift(c *gin.Context) {
	drift, err := h.reports.Drift(c.Request.Context(), c.Param("tenantID"))
	if err != nil {
		h.writeError(c, "failed to compute drift", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drift": drift})
}

// InventoryWorkbook streams the snapshot as an xlsx file.
func (h *InventoryHandler) InventoryWorkbook(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenantID")

	snap, err := h.reports.ComputeSnapshot(ctx, tenantID)
	if err != nil {
		h.writeError(c, "failed to compute snapshot", err)
		return
	}
	forecasts, err := h.reports.Forecast(ctx, tenantID)
	if err != nil {
		h.writeError(c, "failed to compute forecast", err)
		return
	}

	f, err := export.BuildInventory(snap, forecasts)
	if err != nil {
		h.writeError(c, "failed to build workbook", err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", export.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=inventory-%s.xlsx", tenantID))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("failed to write workbook", zap.String("tenant", tenantID), zap.Error(err))
	}
}

func (h *InventoryHandler) ListPurchases(c *gin.Context) {
	rows, err := h.reports.ListPurchases(c.Request.Context(), c.Param("tenantID"))
	if err != nil {
		h.writeError(c, "failed to list purchases", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": rows})
}

func (h *InventoryHandler) AddPurchase(c *gin.Context) {
	var req purchaseRequest
	if !h.bind(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeError(c, "invalid request body", err)
		return
	}

	item, err := h.ledger.AddPurchase(c.Request.Context(), c.Param("tenantID"), in)
	if err != nil {
		h.writeError(c, "failed to add purchase", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *InventoryHandler) EditPurchase(c *gin.Context) {
	var req purchaseUpdateRequest
	if !h.bind(c, &req) {
		return
	}
	upd, err := req.update()
	if err != nil {
		h.writeError(c, "invalid request body", err)
		return
	}

	item, err := h.ledger.EditPurchase(c.Request.Context(), c.Param("tenantID"), c.Param("supplier"), c.Param("itemID"), upd)
	if err != nil {
		h.writeError(c, "failed to edit purchase", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *InventoryHandler) DeletePurchase(c *gin.Context) {
	err := h.ledger.DeletePurchase(c.Request.Context(), c.Param("tenantID"), c.Param("supplier"), c.Param("itemID"))
	if err != nil {
		h.writeError(c, "failed to delete purchase", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *InventoryHandler) ListSales(c *gin.Context) {
	rows, err := h.reports.ListSales(c.Request.Context(), c.Param("tenantID"))
	if err != nil {
		h.writeError(c, "failed to list sales", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": rows})
}

func (h *InventoryHandler) AddSale(c *gin.Context) {
	var req saleRequest
	if !h.bind(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeError(c, "invalid request body", err)
		return
	}

	item, err := h.ledger.AddSale(c.Request.Context(), c.Param("tenantID"), in)
	if err != nil {
		h.writeError(c, "failed to add sale", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *InventoryHandler) EditSale(c *gin.Context) {
	var req saleUpdateRequest
	if !h.bind(c, &req) {
		return
	}
	upd, err := req.update()
	if err != nil {
		h.writeError(c, "invalid request body", err)
		return
	}

	item, err := h.ledger.EditSale(c.Request.Context(), c.Param("tenantID"), c.Param("customer"), c.Param("itemID"), upd)
	if err != nil {
		h.writeError(c, "failed to edit sale", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *InventoryHandler) DeleteSale(c *gin.Context) {
	err := h.ledger.DeleteSale(c.Request.Context(), c.Param("tenantID"), c.Param("customer"), c.Param("itemID"))
	if err != nil {
		h.writeError(c, "failed to delete sale", err)
		return
	}
	c.Status(http.StatusNoContent)
}
