// Package forecast flags products whose stock would not cover a safety window of recent sales.
package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

const (
	// DefaultSafetyStockDays is the number of days of average sales kept as buffer.
	DefaultSafetyStockDays = 7
	// DefaultLookbackDays bounds the sales history used for the daily average.
	DefaultLookbackDays = 90
)

// Config tunes the reorder threshold.
type Config struct {
	SafetyStockDays int
	LookbackDays    int
}

// Forecaster computes dynamic minimum stock levels.
type Forecaster struct {
	safetyDays int
	lookback   time.Duration
}

// New returns a Forecaster, substituting defaults for non-positive settings.
func New(cfg Config) *Forecaster {
	if cfg.SafetyStockDays <= 0 {
		cfg.SafetyStockDays = DefaultSafetyStockDays
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	return &Forecaster{
		safetyDays: cfg.SafetyStockDays,
		lookback:   time.Duration(cfg.LookbackDays) * 24 * time.Hour,
	}
}

// PeriodStart is the earlier of the last sale date and the start of the lookback window.
func PeriodStart(lastSale, now time.Time, lookback time.Duration) time.Time {
	windowStart := now.Add(-lookback)
	if lastSale.Before(windowStart) {
		return lastSale
	}
	return windowStart
}

// AverageDailySales spreads totalSold over the days elapsed since periodStart. No elapsed time
// yields zero.
func AverageDailySales(totalSold int64, periodStart, now time.Time) float64 {
	days := now.Sub(periodStart).Hours() / 24
	if days <= 0 || totalSold <= 0 {
		return 0
	}
	return float64(totalSold) / days
}

// DynamicMinStock is ceil(averageDailySales * safetyDays). The product is taken in decimal on the
// shortest representation of the average, so 3*7 is exactly 21 and anything above it rounds up.
func DynamicMinStock(averageDailySales float64, safetyDays int) int64 {
	if averageDailySales <= 0 || math.IsNaN(averageDailySales) || math.IsInf(averageDailySales, 0) {
		return 0
	}
	v := decimal.NewFromFloat(averageDailySales).Mul(decimal.NewFromInt(int64(safetyDays)))
	return v.Ceil().IntPart()
}

// Evaluate returns one forecast per product, in the snapshot's order.
func (f *Forecaster) Evaluate(products []models.ProductSnapshot, now time.Time) []models.StockForecast {
	out := make([]models.StockForecast, 0, len(products))
	for _, p := range products {
		var avg float64
		if p.TotalQuantitySold > 0 && p.LastSaleDate != nil {
			avg = AverageDailySales(p.TotalQuantitySold, PeriodStart(*p.LastSaleDate, now, f.lookback), now)
		}
		minStock := DynamicMinStock(avg, f.safetyDays)
		out = append(out, models.StockForecast{
			Product:           p.Product,
			CurrentStock:      p.CurrentStock,
			AverageDailySales: avg,
			DynamicMinStock:   minStock,
			Low:               p.CurrentStock <= minStock || p.CurrentStock == 0,
		})
	}
	return out
}

// LowStock returns the sorted names of flagged products.
func LowStock(forecasts []models.StockForecast) []string {
	var names []string
	for _, fc := range forecasts {
		if fc.Low {
			names = append(names, fc.Product)
		}
	}
	sort.Strings(names)
	return names
}
