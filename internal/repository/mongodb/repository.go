package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

const (
	purchasesColl = "purchases"
	salesColl     = "sales"
	productsColl  = "products"
	reportsColl   = "inventory_snapshots"
)

// ReportRepository defines the interface for daily report storage.
type ReportRepository interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// MongoDBRepository implements the tenant document store and the report archive on MongoDB.
// Transactions require the server to run as a replica set.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}, nil
}

// EnsureIndexes creates the unique keys the version-guarded writes rely on.
func (r *MongoDBRepository) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		purchasesColl: {{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "supplier", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		salesColl: {{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "customerName", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		productsColl: {{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "category", Value: 1},
				{Key: "monthKey", Value: 1},
				{Key: "product", Value: 1},
				{Key: "supplier", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		reportsColl: {{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "date", Value: -1}},
		}},
	}

	for coll, indexes := range specs {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	r.logger.Info("mongodb indexes ensured")
	return nil
}

// SaveDailyReport saves a daily report to the database.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	_, err := r.db.Collection(reportsColl).InsertOne(ctx, encodeDailyReport(report))
	if err != nil {
		return fmt.Errorf("failed to insert daily report: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
