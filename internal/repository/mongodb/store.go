package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository"
)

var _ repository.Store = (*MongoDBRepository)(nil)

// RunInTx implements repository.Store with a session transaction. The driver retries fn on
// transient transaction errors.
func (r *MongoDBRepository) RunInTx(ctx context.Context, tenantID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{db: r.db, tenantID: tenantID, logger: r.logger})
	})
	if err != nil && isWriteConflict(err) {
		return fmt.Errorf("%w: %v", models.ErrConflict, err)
	}
	return err
}

func isWriteConflict(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.HasErrorLabel("TransientTransactionError") || cmdErr.Code == 112
	}
	return mongo.IsDuplicateKeyError(err)
}

// LoadLogs implements repository.Store.
func (r *MongoDBRepository) LoadLogs(ctx context.Context, tenantID string) (*models.Logs, error) {
	logs := &models.Logs{TenantID: tenantID}
	filter := bson.M{"tenant_id": tenantID}

	purchases, err := r.findRaw(ctx, purchasesColl, filter, "supplier")
	if err != nil {
		return nil, fmt.Errorf("load purchase logs: %w", err)
	}
	for _, raw := range purchases {
		log, omissions := decodePurchaseLog(raw)
		logs.Purchases = append(logs.Purchases, log)
		logs.Omissions = append(logs.Omissions, omissions...)
	}

	sales, err := r.findRaw(ctx, salesColl, filter, "customerName")
	if err != nil {
		return nil, fmt.Errorf("load sales logs: %w", err)
	}
	for _, raw := range sales {
		log, omissions := decodeSalesLog(raw)
		logs.Sales = append(logs.Sales, log)
		logs.Omissions = append(logs.Omissions, omissions...)
	}

	if len(logs.Omissions) > 0 {
		r.logger.Debug("logs decoded with omissions",
			zap.String("tenant_id", tenantID),
			zap.Int("omissions", len(logs.Omissions)),
		)
	}
	return logs, nil
}

// ListStock implements repository.Store.
func (r *MongoDBRepository) ListStock(ctx context.Context, tenantID string) ([]models.ProductStock, error) {
	raws, err := r.findRaw(ctx, productsColl, bson.M{"tenant_id": tenantID}, "date")
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	out := make([]models.ProductStock, 0, len(raws))
	for _, raw := range raws {
		out = append(out, decodeStock(raw))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListTenants implements repository.Store.
func (r *MongoDBRepository) ListTenants(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, coll := range []string{purchasesColl, salesColl, productsColl} {
		values, err := r.db.Collection(coll).Distinct(ctx, "tenant_id", bson.M{})
		if err != nil {
			return nil, fmt.Errorf("list tenants in %s: %w", coll, err)
		}
		for _, v := range values {
			if id, ok := v.(string); ok && id != "" {
				seen[id] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MongoDBRepository) findRaw(ctx context.Context, coll string, filter bson.M, sortKey string) ([]bson.M, error) {
	opts := options.Find().SetSort(bson.D{{Key: sortKey, Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.db.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type mongoTx struct {
	db       *mongo.Database
	tenantID string
	logger   *zap.Logger
}

// versionFilter matches the version that was read. Documents written before versioning decode as
// version 1 and carry no field.
func versionFilter(version int64) bson.M {
	if version == 1 {
		return bson.M{"$or": bson.A{
			bson.M{"version": int64(1)},
			bson.M{"version": bson.M{"$exists": false}},
		}}
	}
	return bson.M{"version": version}
}

func and(parts ...bson.M) bson.M {
	arr := make(bson.A, 0, len(parts))
	for _, p := range parts {
		arr = append(arr, p)
	}
	return bson.M{"$and": arr}
}

func (t *mongoTx) findOne(ctx context.Context, coll string, filter bson.M, opts ...*options.FindOneOptions) (bson.M, error) {
	var raw bson.M
	err := t.db.Collection(coll).FindOne(ctx, filter, opts...).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// save inserts when version is 0, otherwise replaces the fields guarded by the read version.
func (t *mongoTx) save(ctx context.Context, coll string, key bson.M, version int64, fields bson.M, what string) error {
	fields["tenant_id"] = t.tenantID
	fields["version"] = version + 1

	if version == 0 {
		doc := bson.M{}
		for k, v := range key {
			doc[k] = v
		}
		for k, v := range fields {
			doc[k] = v
		}
		if _, err := t.db.Collection(coll).InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s already exists", models.ErrConflict, what)
			}
			return fmt.Errorf("insert %s: %w", what, err)
		}
		return nil
	}

	res, err := t.db.Collection(coll).UpdateOne(ctx, and(key, versionFilter(version)), bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s changed", models.ErrConflict, what)
	}
	return nil
}

func (t *mongoTx) remove(ctx context.Context, coll string, key bson.M, version int64, what string) error {
	res, err := t.db.Collection(coll).DeleteOne(ctx, and(key, versionFilter(version)))
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s changed", models.ErrConflict, what)
	}
	return nil
}

func (t *mongoTx) GetPurchaseLog(ctx context.Context, supplier string) (*models.PurchaseLog, error) {
	raw, err := t.findOne(ctx, purchasesColl, bson.M{"tenant_id": t.tenantID, "supplier": supplier})
	if err != nil || raw == nil {
		return nil, wrap("get purchase log", err)
	}
	log, omissions := decodePurchaseLog(raw)
	t.logOmissions(omissions)
	return &log, nil
}

func (t *mongoTx) SavePurchaseLog(ctx context.Context, log *models.PurchaseLog) error {
	key := bson.M{"tenant_id": t.tenantID, "supplier": log.Supplier}
	fields := bson.M{
		"purchases": encodePurchaseLines(log.Purchases),
		"createdAt": log.CreatedAt,
	}
	if err := t.save(ctx, purchasesColl, key, log.Version, fields, "purchase log "+log.Supplier); err != nil {
		return err
	}
	log.TenantID = t.tenantID
	log.Version++
	return nil
}

func (t *mongoTx) DeletePurchaseLog(ctx context.Context, log *models.PurchaseLog) error {
	key := bson.M{"tenant_id": t.tenantID, "supplier": log.Supplier}
	return t.remove(ctx, purchasesColl, key, log.Version, "purchase log "+log.Supplier)
}

func (t *mongoTx) GetSalesLog(ctx context.Context, customer string) (*models.SalesLog, error) {
	raw, err := t.findOne(ctx, salesColl, bson.M{"tenant_id": t.tenantID, "customerName": customer})
	if err != nil || raw == nil {
		return nil, wrap("get sales log", err)
	}
	log, omissions := decodeSalesLog(raw)
	t.logOmissions(omissions)
	return &log, nil
}

func (t *mongoTx) SaveSalesLog(ctx context.Context, log *models.SalesLog) error {
	if log.Legacy {
		return fmt.Errorf("%w: sales log %s uses the single-sale layout", models.ErrValidation, log.CustomerName)
	}
	key := bson.M{"tenant_id": t.tenantID, "customerName": log.CustomerName}
	fields := bson.M{
		"sales":     encodeSaleLines(log.Sales),
		"createdAt": log.CreatedAt,
	}
	if err := t.save(ctx, salesColl, key, log.Version, fields, "sales log "+log.CustomerName); err != nil {
		return err
	}
	log.TenantID = t.tenantID
	log.Version++
	return nil
}

func (t *mongoTx) DeleteSalesLog(ctx context.Context, log *models.SalesLog) error {
	key := bson.M{"tenant_id": t.tenantID, "customerName": log.CustomerName}
	return t.remove(ctx, salesColl, key, log.Version, "sales log "+log.CustomerName)
}

func (t *mongoTx) FindStock(ctx context.Context, key models.BucketKey) (*models.ProductStock, error) {
	raw, err := t.findOne(ctx, productsColl, bson.M{
		"tenant_id": t.tenantID,
		"category":  key.Category,
		"monthKey":  key.MonthKey,
		"product":   key.Product,
		"supplier":  key.Supplier,
	})
	if err != nil || raw == nil {
		return nil, wrap("find stock", err)
	}
	st := decodeStock(raw)
	return &st, nil
}

func (t *mongoTx) FindSaleStock(ctx context.Context, category, monthKey, product string) (*models.ProductStock, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	raw, err := t.findOne(ctx, productsColl, bson.M{
		"tenant_id": t.tenantID,
		"category":  category,
		"monthKey":  monthKey,
		"product":   product,
	}, opts)
	if err != nil || raw == nil {
		return nil, wrap("find sale stock", err)
	}
	st := decodeStock(raw)
	return &st, nil
}

func (t *mongoTx) SaveStock(ctx context.Context, stock *models.ProductStock) error {
	stock.TenantID = t.tenantID
	if stock.Version == 0 {
		if stock.ID == "" {
			stock.ID = uuid.NewString()
		}
		doc := encodeStock(stock)
		doc.Version = 1
		if _, err := t.db.Collection(productsColl).InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: stock bucket %s/%s/%s already exists", models.ErrConflict, stock.Key.Category, stock.Key.MonthKey, stock.Key.Product)
			}
			return fmt.Errorf("insert stock bucket: %w", err)
		}
		stock.Version = 1
		return nil
	}

	doc := encodeStock(stock)
	doc.Version = stock.Version + 1
	set := bson.M{
		"quantity":  doc.Quantity,
		"amount":    doc.Amount,
		"date":      doc.Date,
		"addedAt":   doc.AddedAt,
		"updatedAt": doc.UpdatedAt,
		"version":   doc.Version,
	}
	res, err := t.db.Collection(productsColl).UpdateOne(ctx,
		and(stockIDFilter(stock.ID), versionFilter(stock.Version)),
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("update stock bucket: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: stock bucket %s changed", models.ErrConflict, stock.ID)
	}
	stock.Version++
	return nil
}

func (t *mongoTx) DeleteStock(ctx context.Context, stock *models.ProductStock) error {
	return t.remove(ctx, productsColl, stockIDFilter(stock.ID), stock.Version, "stock bucket "+stock.ID)
}

// stockIDFilter also matches buckets created with driver-generated object ids.
func stockIDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

func (t *mongoTx) logOmissions(omissions []models.Omission) {
	for _, o := range omissions {
		t.logger.Warn("document field coerced",
			zap.String("tenant_id", t.tenantID),
			zap.String("source", o.Source),
			zap.String("document", o.DocumentID),
			zap.Int("index", o.Index),
			zap.String("reason", o.Reason),
		)
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
