package forecast

import (
	"reflect"
	"testing"
	"time"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := now.AddDate(0, 0, -n)
	return &t
}

func TestAverageDailySalesScenario(t *testing.T) {
	// 30 units sold over the last 10 days.
	avg := AverageDailySales(30, now.AddDate(0, 0, -10), now)
	if avg != 3 {
		t.Fatalf("average = %v, want 3", avg)
	}
	if got := DynamicMinStock(avg, DefaultSafetyStockDays); got != 21 {
		t.Fatalf("min stock = %d, want 21", got)
	}
}

func TestAverageDailySalesGuards(t *testing.T) {
	if got := AverageDailySales(10, now, now); got != 0 {
		t.Errorf("zero elapsed days = %v, want 0", got)
	}
	if got := AverageDailySales(10, now.Add(time.Hour), now); got != 0 {
		t.Errorf("negative elapsed days = %v, want 0", got)
	}
	if got := AverageDailySales(0, now.AddDate(0, 0, -5), now); got != 0 {
		t.Errorf("no sales = %v, want 0", got)
	}
}

func TestPeriodStart(t *testing.T) {
	lookback := DefaultLookbackDays * 24 * time.Hour
	window := now.Add(-lookback)

	tests := []struct {
		name     string
		lastSale time.Time
		want     time.Time
	}{
		{"recent sale uses the window start", now.AddDate(0, 0, -3), window},
		{"old sale uses the sale date", now.AddDate(0, 0, -200), now.AddDate(0, 0, -200)},
		{"sale on the boundary", window, window},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodStart(tt.lastSale, now, lookback); !got.Equal(tt.want) {
				t.Fatalf("PeriodStart = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDynamicMinStockRounding(t *testing.T) {
	tests := []struct {
		avg  float64
		days int
		want int64
	}{
		{0, 7, 0},
		{0.1, 7, 1},
		{1.0 / 3.0, 3, 1},
		{2.5, 7, 18},
		{3, 7, 21},
		{0.2, 7, 2},
		{3.00000000002, 7, 22},
		{21.0000000001, 1, 22},
		{-1, 7, 0},
	}
	for _, tt := range tests {
		if got := DynamicMinStock(tt.avg, tt.days); got != tt.want {
			t.Errorf("DynamicMinStock(%v, %d) = %d, want %d", tt.avg, tt.days, got, tt.want)
		}
	}
}

func TestEvaluate(t *testing.T) {
	f := New(Config{})
	products := []models.ProductSnapshot{
		// 90 sold with a sale 3 days ago: averaged over the 90-day window, 1/day, min 7.
		{Product: "Rice", CurrentStock: 5, TotalQuantitySold: 90, LastSaleDate: daysAgo(3)},
		{Product: "Salt", CurrentStock: 50, TotalQuantitySold: 90, LastSaleDate: daysAgo(3)},
		{Product: "Soap", CurrentStock: 0},
		{Product: "Oil", CurrentStock: 3},
		{Product: "Beans", CurrentStock: -1},
	}

	forecasts := f.Evaluate(products, now)
	if len(forecasts) != len(products) {
		t.Fatalf("got %d forecasts", len(forecasts))
	}
	byName := map[string]models.StockForecast{}
	for _, fc := range forecasts {
		byName[fc.Product] = fc
	}

	if fc := byName["Rice"]; fc.DynamicMinStock != 7 || !fc.Low {
		t.Errorf("rice = %+v, want min 7 and low", fc)
	}
	if fc := byName["Salt"]; fc.DynamicMinStock != 7 || fc.Low {
		t.Errorf("salt = %+v, want min 7 and not low", fc)
	}
	if fc := byName["Soap"]; !fc.Low || fc.DynamicMinStock != 0 {
		t.Errorf("empty product without sales must be low: %+v", fc)
	}
	if fc := byName["Oil"]; fc.Low {
		t.Errorf("stocked product without sales must not be low: %+v", fc)
	}
	if fc := byName["Beans"]; !fc.Low {
		t.Errorf("negative stock must be low: %+v", fc)
	}

	if got := LowStock(forecasts); !reflect.DeepEqual(got, []string{"Beans", "Rice", "Soap"}) {
		t.Errorf("LowStock = %v", got)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	f := New(Config{SafetyStockDays: 10, LookbackDays: 30})
	products := []models.ProductSnapshot{
		{Product: "Rice", CurrentStock: 12, TotalQuantitySold: 45, LastSaleDate: daysAgo(2)},
		{Product: "Oil", CurrentStock: 1, TotalQuantitySold: 4, LastSaleDate: daysAgo(60)},
	}
	first := f.Evaluate(products, now)
	second := f.Evaluate(products, now)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("forecasts differ:\n%+v\n%+v", first, second)
	}
}
