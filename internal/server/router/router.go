package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares. metrics may be nil.
func New(handler *handlers.InventoryHandler, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	tenant := r.Group("/api/v1/tenants/:tenantID")
	{
		tenant.GET("/snapshot", handler.Snapshot)
		tenant.GET("/low-stock", handler.LowStock)
		tenant.GET("/forecast", handler.Forecast)
		tenant.GET("/activity", handler.Activity)
		tenant.GET("/drift", handler.Drift)
		tenant.GET("/reports/inventory.xlsx", handler.InventoryWorkbook)

		tenant.GET("/purchases", handler.ListPurchases)
		tenant.POST("/purchases", handler.AddPurchase)
		tenant.PUT("/purchases/:supplier/:itemID", handler.EditPurchase)
		tenant.DELETE("/purchases/:supplier/:itemID", handler.DeletePurchase)

		tenant.GET("/sales", handler.ListSales)
		tenant.POST("/sales", handler.AddSale)
		tenant.PUT("/sales/:customer/:itemID", handler.EditSale)
		tenant.DELETE("/sales/:customer/:itemID", handler.DeleteSale)
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
