package mongodb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

// Documents are read as bson.M and decoded field by field so that hand-edited or older documents
// with missing or mistyped fields still load. Unusable values become zero and are reported as
// omissions.

type purchaseLineDoc struct {
	ID        string               `bson:"id"`
	Product   string               `bson:"product"`
	Category  string               `bson:"category"`
	Quantity  int64                `bson:"quantity"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Date      time.Time            `bson:"date"`
	CreatedAt time.Time            `bson:"createdAt"`
}

type saleLineDoc struct {
	ID        string                `bson:"id"`
	Product   string                `bson:"product"`
	Category  string                `bson:"category"`
	Quantity  int64                 `bson:"quantity"`
	Amount    primitive.Decimal128  `bson:"amount"`
	Price     *primitive.Decimal128 `bson:"price,omitempty"`
	UnitCost  *primitive.Decimal128 `bson:"unitCost,omitempty"`
	Supplier  string                `bson:"supplier,omitempty"`
	Date      time.Time             `bson:"date"`
	CreatedAt time.Time             `bson:"createdAt"`
}

type stockDoc struct {
	ID        string               `bson:"_id"`
	TenantID  string               `bson:"tenant_id"`
	Category  string               `bson:"category"`
	MonthKey  string               `bson:"monthKey"`
	Product   string               `bson:"product"`
	Supplier  string               `bson:"supplier"`
	Quantity  int64                `bson:"quantity"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Date      time.Time            `bson:"date"`
	AddedAt   time.Time            `bson:"addedAt"`
	UpdatedAt time.Time            `bson:"updatedAt,omitempty"`
	Version   int64                `bson:"version"`
}

type dailyReportDoc struct {
	TenantID           string               `bson:"tenant_id"`
	Date               time.Time            `bson:"date"`
	TotalStockQuantity int64                `bson:"total_stock_quantity"`
	ProductsInStock    int                  `bson:"products_in_stock"`
	DistinctCategories int                  `bson:"distinct_categories"`
	TotalSalesAmount   primitive.Decimal128 `bson:"total_sales_amount"`
	LowStockProducts   []string             `bson:"low_stock_products"`
	CreatedAt          time.Time            `bson:"created_at"`
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		// decimal.String never produces exponents Decimal128 rejects within money ranges
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func nullToDecimal128(d decimal.NullDecimal) *primitive.Decimal128 {
	if !d.Valid {
		return nil
	}
	v := toDecimal128(d.Decimal)
	return &v
}

func encodePurchaseLines(items []models.PurchaseLineItem) []purchaseLineDoc {
	out := make([]purchaseLineDoc, 0, len(items))
	for _, it := range items {
		out = append(out, purchaseLineDoc{
			ID:        it.ID,
			Product:   it.Product,
			Category:  it.Category,
			Quantity:  it.Quantity,
			Amount:    toDecimal128(it.Amount),
			Date:      it.Date,
			CreatedAt: it.CreatedAt,
		})
	}
	return out
}

func encodeSaleLines(items []models.SaleLineItem) []saleLineDoc {
	out := make([]saleLineDoc, 0, len(items))
	for _, it := range items {
		out = append(out, saleLineDoc{
			ID:        it.ID,
			Product:   it.Product,
			Category:  it.Category,
			Quantity:  it.Quantity,
			Amount:    toDecimal128(it.Amount),
			Price:     nullToDecimal128(it.Price),
			UnitCost:  nullToDecimal128(it.UnitCost),
			Supplier:  it.Supplier,
			Date:      it.Date,
			CreatedAt: it.CreatedAt,
		})
	}
	return out
}

func encodeStock(st *models.ProductStock) stockDoc {
	return stockDoc{
		ID:        st.ID,
		TenantID:  st.TenantID,
		Category:  st.Key.Category,
		MonthKey:  st.Key.MonthKey,
		Product:   st.Key.Product,
		Supplier:  st.Key.Supplier,
		Quantity:  st.Quantity,
		Amount:    toDecimal128(st.Amount),
		Date:      st.Date,
		AddedAt:   st.AddedAt,
		UpdatedAt: st.UpdatedAt,
		Version:   st.Version,
	}
}

func encodeDailyReport(r models.DailyReport) dailyReportDoc {
	return dailyReportDoc{
		TenantID:           r.TenantID,
		Date:               r.Date,
		TotalStockQuantity: r.TotalStockQuantity,
		ProductsInStock:    r.ProductsInStock,
		DistinctCategories: r.DistinctCategories,
		TotalSalesAmount:   toDecimal128(r.TotalSalesAmount),
		LowStockProducts:   r.LowStockProducts,
		CreatedAt:          r.CreatedAt,
	}
}

// fieldReader decodes fields of one raw document and collects omissions.
type fieldReader struct {
	source    string
	docID     string
	index     int
	omissions []models.Omission
}

func (f *fieldReader) omit(reason string) {
	f.omissions = append(f.omissions, models.Omission{
		Source: f.source, DocumentID: f.docID, Index: f.index, Reason: reason,
	})
}

func (f *fieldReader) asString(doc bson.M, key string) string {
	switch v := doc[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case primitive.ObjectID:
		return v.Hex()
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (f *fieldReader) asInt64(doc bson.M, key string) int64 {
	raw, ok := doc[key]
	if !ok || raw == nil {
		f.omit("missing " + key)
		return 0
	}
	switch v := raw.(type) {
	case int32:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case primitive.Decimal128:
		d, err := decimal.NewFromString(v.String())
		if err == nil {
			return d.IntPart()
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	f.omit("invalid " + key)
	return 0
}

func (f *fieldReader) asDecimal(doc bson.M, key string) decimal.Decimal {
	raw, ok := doc[key]
	if !ok || raw == nil {
		f.omit("missing " + key)
		return decimal.Zero
	}
	if d, ok := toDecimal(raw); ok {
		return d
	}
	f.omit("invalid " + key)
	return decimal.Zero
}

func (f *fieldReader) asNullDecimal(doc bson.M, key string) decimal.NullDecimal {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return decimal.NullDecimal{}
	}
	if d, ok := toDecimal(raw); ok {
		return decimal.NewNullDecimal(d)
	}
	f.omit("invalid " + key)
	return decimal.NullDecimal{}
}

func toDecimal(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case primitive.Decimal128:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	}
	return decimal.Zero, false
}

func (f *fieldReader) asTime(doc bson.M, key string) time.Time {
	switch v := doc[key].(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v.UTC()
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0).UTC()
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func asDoc(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]interface{}:
		return bson.M(d), true
	case bson.D:
		out := make(bson.M, len(d))
		for _, e := range d {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

func asArray(v interface{}) ([]interface{}, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []interface{}:
		return a, true
	}
	return nil, false
}

func decodePurchaseLog(raw bson.M) (models.PurchaseLog, []models.Omission) {
	f := &fieldReader{source: "purchase", index: -1}
	log := models.PurchaseLog{
		TenantID:  f.asString(raw, "tenant_id"),
		Supplier:  f.asString(raw, "supplier"),
		CreatedAt: f.asTime(raw, "createdAt"),
		Version:   versionOf(raw),
	}
	f.docID = log.Supplier

	items, ok := asArray(raw["purchases"])
	if !ok {
		f.omit("missing purchases array")
		return log, f.omissions
	}
	for i, elem := range items {
		f.index = i
		doc, ok := asDoc(elem)
		if !ok {
			f.omit("line item is not a document")
			continue
		}
		log.Purchases = append(log.Purchases, models.PurchaseLineItem{
			ID:        f.asString(doc, "id"),
			Product:   f.asString(doc, "product"),
			Category:  f.asString(doc, "category"),
			Quantity:  f.asInt64(doc, "quantity"),
			Amount:    f.asDecimal(doc, "amount"),
			Date:      f.asTime(doc, "date"),
			CreatedAt: f.asTime(doc, "createdAt"),
		})
	}
	return log, f.omissions
}

// decodeSalesLog also accepts the flat single-sale layout, which becomes a read-only log of one item.
func decodeSalesLog(raw bson.M) (models.SalesLog, []models.Omission) {
	f := &fieldReader{source: "sale", index: -1}
	log := models.SalesLog{
		TenantID:     f.asString(raw, "tenant_id"),
		CustomerName: f.asString(raw, "customerName"),
		CreatedAt:    f.asTime(raw, "createdAt"),
		Version:      versionOf(raw),
	}
	f.docID = log.CustomerName

	items, ok := asArray(raw["sales"])
	if !ok {
		f.index = 0
		log.Legacy = true
		date := f.asTime(raw, "date")
		if date.IsZero() {
			date = log.CreatedAt
		}
		log.Sales = []models.SaleLineItem{{
			ID:        f.asString(raw, "id"),
			Product:   f.asString(raw, "product"),
			Category:  f.asString(raw, "category"),
			Quantity:  f.asInt64(raw, "quantity"),
			Amount:    f.asDecimal(raw, "amount"),
			Date:      date,
			CreatedAt: log.CreatedAt,
		}}
		return log, f.omissions
	}

	for i, elem := range items {
		f.index = i
		doc, ok := asDoc(elem)
		if !ok {
			f.omit("line item is not a document")
			continue
		}
		log.Sales = append(log.Sales, models.SaleLineItem{
			ID:        f.asString(doc, "id"),
			Product:   f.asString(doc, "product"),
			Category:  f.asString(doc, "category"),
			Quantity:  f.asInt64(doc, "quantity"),
			Amount:    f.asDecimal(doc, "amount"),
			Price:     f.asNullDecimal(doc, "price"),
			UnitCost:  f.asNullDecimal(doc, "unitCost"),
			Supplier:  f.asString(doc, "supplier"),
			Date:      f.asTime(doc, "date"),
			CreatedAt: f.asTime(doc, "createdAt"),
		})
	}
	return log, f.omissions
}

func decodeStock(raw bson.M) models.ProductStock {
	f := &fieldReader{source: "product"}
	return models.ProductStock{
		ID:       f.asString(raw, "_id"),
		TenantID: f.asString(raw, "tenant_id"),
		Key: models.BucketKey{
			Category: f.asString(raw, "category"),
			MonthKey: f.asString(raw, "monthKey"),
			Product:  f.asString(raw, "product"),
			Supplier: f.asString(raw, "supplier"),
		},
		Quantity:  f.asInt64(raw, "quantity"),
		Amount:    f.asDecimal(raw, "amount"),
		Date:      f.asTime(raw, "date"),
		AddedAt:   f.asTime(raw, "addedAt"),
		UpdatedAt: f.asTime(raw, "updatedAt"),
		Version:   versionOf(raw),
	}
}

// versionOf treats documents written before versioning as version 1.
func versionOf(raw bson.M) int64 {
	switch v := raw["version"].(type) {
	case int32:
		return int64(v)
	case int64:
		return v
	}
	return 1
}
