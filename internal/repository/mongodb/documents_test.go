package mongodb

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

func d128(t *testing.T, s string) primitive.Decimal128 {
	t.Helper()
	v, err := primitive.ParseDecimal128(s)
	if err != nil {
		t.Fatalf("ParseDecimal128(%q): %v", s, err)
	}
	return v
}

var when = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func TestDecodePurchaseLog(t *testing.T) {
	raw := bson.M{
		"tenant_id": "shop-a",
		"supplier":  "Acme",
		"version":   int64(4),
		"createdAt": primitive.NewDateTimeFromTime(when),
		"purchases": bson.A{
			bson.M{"id": "p1", "product": "Rice", "category": "Food", "quantity": int32(10), "amount": d128(t, "100.50"), "date": primitive.NewDateTimeFromTime(when)},
			bson.D{{Key: "id", Value: "p2"}, {Key: "product", Value: " Beans "}, {Key: "category", Value: "Food"}, {Key: "quantity", Value: 2.0}, {Key: "amount", Value: "12"}},
			bson.M{"id": "p3", "product": "Salt", "quantity": "lots", "amount": true},
			"garbage",
		},
	}

	log, omissions := decodePurchaseLog(raw)
	if log.Supplier != "Acme" || log.TenantID != "shop-a" || log.Version != 4 || !log.CreatedAt.Equal(when) {
		t.Fatalf("header = %+v", log)
	}
	if len(log.Purchases) != 3 {
		t.Fatalf("purchases = %d, want 3", len(log.Purchases))
	}

	p1 := log.Purchases[0]
	if p1.Quantity != 10 || !p1.Amount.Equal(decimal.RequireFromString("100.5")) || !p1.Date.Equal(when) {
		t.Errorf("p1 = %+v", p1)
	}
	p2 := log.Purchases[1]
	if p2.Product != "Beans" || p2.Quantity != 2 || !p2.Amount.Equal(decimal.NewFromInt(12)) {
		t.Errorf("p2 = %+v", p2)
	}
	p3 := log.Purchases[2]
	if p3.Quantity != 0 || !p3.Amount.IsZero() {
		t.Errorf("invalid numerics must coerce to zero: %+v", p3)
	}

	reasons := map[string]bool{}
	for _, o := range omissions {
		if o.DocumentID != "Acme" || o.Source != "purchase" {
			t.Errorf("omission not attributed: %+v", o)
		}
		reasons[o.Reason] = true
	}
	for _, want := range []string{"invalid quantity", "invalid amount", "line item is not a document"} {
		if !reasons[want] {
			t.Errorf("missing omission %q in %+v", want, omissions)
		}
	}
}

func TestDecodeSalesLog(t *testing.T) {
	raw := bson.M{
		"customerName": "Bob",
		"sales": bson.A{
			bson.M{
				"id": "s1", "product": "Rice", "category": "Food", "quantity": int64(3),
				"amount": d128(t, "45"), "price": d128(t, "15"), "unitCost": d128(t, "10"),
				"supplier": "Acme", "date": primitive.NewDateTimeFromTime(when),
			},
		},
	}

	log, omissions := decodeSalesLog(raw)
	if len(omissions) != 0 {
		t.Fatalf("unexpected omissions %+v", omissions)
	}
	if log.Legacy || log.Version != 1 {
		t.Fatalf("unversioned log must decode as version 1, not legacy: %+v", log)
	}
	s := log.Sales[0]
	if !s.Price.Valid || !s.Price.Decimal.Equal(decimal.NewFromInt(15)) {
		t.Errorf("price = %+v", s.Price)
	}
	if !s.UnitCost.Valid || s.Supplier != "Acme" {
		t.Errorf("bucket reference lost: %+v", s)
	}
}

func TestDecodeLegacyFlatSale(t *testing.T) {
	raw := bson.M{
		"customerName": "Old",
		"product":      "Rice",
		"category":     "Food",
		"quantity":     int32(2),
		"amount":       float64(20),
		"createdAt":    primitive.NewDateTimeFromTime(when),
	}

	log, _ := decodeSalesLog(raw)
	if !log.Legacy || len(log.Sales) != 1 {
		t.Fatalf("flat document must become one legacy line item: %+v", log)
	}
	item := log.Sales[0]
	if item.Product != "Rice" || item.Quantity != 2 || !item.Amount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("item = %+v", item)
	}
	if !item.Date.Equal(when) {
		t.Errorf("missing date must fall back to createdAt, got %v", item.Date)
	}
}

func TestDecodeStock(t *testing.T) {
	oid := primitive.NewObjectID()
	st := decodeStock(bson.M{
		"_id": oid, "tenant_id": "shop-a", "category": "Food", "monthKey": "May-2025",
		"product": "Rice", "quantity": int32(7), "amount": d128(t, "70"), "version": int32(3),
	})
	if st.ID != oid.Hex() || st.Version != 3 || st.Quantity != 7 {
		t.Fatalf("stock = %+v", st)
	}
	want := models.BucketKey{Category: "Food", MonthKey: "May-2025", Product: "Rice"}
	if st.Key != want {
		t.Fatalf("key = %+v, want %+v", st.Key, want)
	}
}

func TestEncodeRoundTripsThroughDecode(t *testing.T) {
	items := []models.SaleLineItem{{
		ID: "s1", Product: "Rice", Category: "Food", Quantity: 2,
		Amount: decimal.RequireFromString("19.99"), Date: when, CreatedAt: when,
	}}
	data, err := bson.Marshal(bson.M{"customerName": "Bob", "version": int64(2), "sales": encodeSaleLines(items)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	log, omissions := decodeSalesLog(raw)
	if len(omissions) != 0 {
		t.Fatalf("omissions = %+v", omissions)
	}
	got := log.Sales[0]
	if got.Price.Valid || got.UnitCost.Valid {
		t.Errorf("absent optional decimals must stay null: %+v", got)
	}
	if !got.Amount.Equal(items[0].Amount) || !got.Date.Equal(when) || log.Version != 2 {
		t.Errorf("decoded = %+v", got)
	}
}

func TestVersionFilter(t *testing.T) {
	if _, ok := versionFilter(1)["$or"]; !ok {
		t.Error("version 1 must also match documents without a version field")
	}
	if got := versionFilter(5)["version"]; got != int64(5) {
		t.Errorf("versionFilter(5) = %v", versionFilter(5))
	}
}
