package shop

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/opennow/core/internal/models"
)

// ErrDuplicateExternalID signals that an insert lost the race on the unique
// sparse externalId index. The caller re-resolves and reports against the
// winning document.
var ErrDuplicateExternalID = errors.New("externalId already migrated")

// ShopStore is the persistence surface the service depends on. Lookups that
// miss return (nil, nil); errors are reserved for the store itself failing.
type ShopStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.ShopModel, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.ShopModel, error)
	Insert(ctx context.Context, shop *models.ShopModel) (*models.ShopModel, error)
	// ApplyReport atomically sets status/lastStatusUpdate and increments
	// reportCount in a single document operation, returning the updated
	// document, or (nil, nil) when the shop no longer exists.
	ApplyReport(ctx context.Context, id primitive.ObjectID, status models.ShopStatus, now time.Time) (*models.ShopModel, error)
	// MarkStale flips every OPEN/CLOSED shop whose lastStatusUpdate is older
	// than cutoff to UNCERTAIN, leaving lastStatusUpdate untouched. Returns
	// the number of shops actually modified.
	MarkStale(ctx context.Context, cutoff time.Time) (int64, error)
	List(ctx context.Context, q ListQuery) ([]models.ShopModel, error)
}

// StatusLogStore records the append-only report audit trail.
type StatusLogStore interface {
	Append(ctx context.Context, entry *models.StatusLogModel) error
}
