package shop

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opennow/core/internal/models"
)

const (
	listLimitScoped = 50
	listLimitAll    = 100
)

// MongoShopStore implements ShopStore against the shops collection.
type MongoShopStore struct {
	col *mongo.Collection
}

func NewMongoShopStore(db *mongo.Database) *MongoShopStore {
	return &MongoShopStore{col: db.Collection(models.ShopCollection)}
}

func (s *MongoShopStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.ShopModel, error) {
	var shop models.ShopModel
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&shop)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func (s *MongoShopStore) FindByExternalID(ctx context.Context, externalID string) (*models.ShopModel, error) {
	var shop models.ShopModel
	err := s.col.FindOne(ctx, bson.M{"externalId": externalID}).Decode(&shop)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func (s *MongoShopStore) Insert(ctx context.Context, shop *models.ShopModel) (*models.ShopModel, error) {
	res, err := s.col.InsertOne(ctx, shop)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicateExternalID
	}
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		shop.ID = oid
	}
	return shop, nil
}

func (s *MongoShopStore) ApplyReport(ctx context.Context, id primitive.ObjectID, status models.ShopStatus, now time.Time) (*models.ShopModel, error) {
	update := bson.M{
		"$set": bson.M{"status": status, "lastStatusUpdate": now},
		"$inc": bson.M{"reportCount": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var shop models.ShopModel
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&shop)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func (s *MongoShopStore) MarkStale(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":           bson.M{"$in": bson.A{models.StatusOpen, models.StatusClosed}},
		"lastStatusUpdate": bson.M{"$lt": cutoff},
	}
	res, err := s.col.UpdateMany(ctx, filter, bson.M{
		"$set": bson.M{"status": models.StatusUncertain},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoShopStore) List(ctx context.Context, q ListQuery) ([]models.ShopModel, error) {
	filter := bson.M{}
	if q.Search != "" {
		pattern := primitive.Regex{Pattern: regexQuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"category": pattern},
		}
	}

	opts := options.Find()
	switch {
	case q.All:
		opts.SetSort(bson.D{{Key: "lastStatusUpdate", Value: -1}}).SetLimit(listLimitAll)
	case q.Near != nil:
		// $near already orders by distance; adding a sort would conflict.
		filter["coordinates"] = bson.M{
			"$near": bson.M{
				"$geometry": models.NewGeoPoint(q.Near.Lng, q.Near.Lat),
			},
		}
		opts.SetLimit(listLimitScoped)
	default:
		opts.SetSort(bson.D{{Key: "lastStatusUpdate", Value: -1}}).SetLimit(listLimitScoped)
	}

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	shops := make([]models.ShopModel, 0, listLimitScoped)
	if err := cur.All(ctx, &shops); err != nil {
		return nil, err
	}
	return shops, nil
}

// regexQuoteMeta escapes user search input so it matches literally.
func regexQuoteMeta(s string) string {
	const special = `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		for j := 0; j < len(special); j++ {
			if s[i] == special[j] {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}

// MongoStatusLogStore implements StatusLogStore against the statuslogs
// collection.
type MongoStatusLogStore struct {
	col *mongo.Collection
}

func NewMongoStatusLogStore(db *mongo.Database) *MongoStatusLogStore {
	return &MongoStatusLogStore{col: db.Collection(models.StatusLogCollection)}
}

func (s *MongoStatusLogStore) Append(ctx context.Context, entry *models.StatusLogModel) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, entry)
	return err
}
