package database

import (
	"context"
	"fmt"
	"time"

	"github.com/opennow/core/internal/config"
	"github.com/opennow/core/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DB is the global database handle.
var DB *mongo.Database

const connectTimeout = 10 * time.Second

// Connect opens a MongoDB connection, verifies it with a ping and optionally
// ensures the indexes the query paths depend on.
func Connect(cfg *config.AppConfig, ensureIndexes bool) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI()))
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	db := client.Database(cfg.Mongo.Name)
	if ensureIndexes {
		if err := EnsureIndexes(ctx, db); err != nil {
			return nil, fmt.Errorf("index bootstrap failed: %w", err)
		}
	}

	DB = db
	return db, nil
}

// Disconnect closes the underlying client of db.
func Disconnect(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return nil
	}
	return db.Client().Disconnect(ctx)
}

// Ping verifies connectivity, used by the health endpoint.
func Ping(ctx context.Context, db *mongo.Database) error {
	return db.Client().Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes the core relies on:
//   - shops.coordinates 2dsphere, backing the $near proximity mode
//   - shops.externalId unique+sparse, so a migrated external record can never
//     be duplicated (absence does not collide)
//   - statuslogs (shopId, reportedAt) for per-shop audit scans
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	shops := db.Collection(models.ShopCollection)
	_, err := shops.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "coordinates", Value: "2dsphere"}},
		},
		{
			Keys:    bson.D{{Key: "externalId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("shops indexes: %w", err)
	}

	logs := db.Collection(models.StatusLogCollection)
	_, err = logs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "shopId", Value: 1}, {Key: "reportedAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("statuslogs indexes: %w", err)
	}
	return nil
}
