package external

import (
	"context"

	"github.com/opennow/core/internal/models"
)

// Provider source tags as emitted to clients.
const (
	SourceGoogle = "Google"
	SourceOSM    = "OSM"
	SourceDemo   = "MOCK_DATA"
)

// Projection is a nearby place as seen by an upstream provider. Its ID is
// namespaced per provider (google_<id>, osm_<id>, demo_<uuid>) so it can be
// handed back later as an externalId for migration.
type Projection struct {
	ID          string            `json:"_id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Location    string            `json:"location"`
	Coordinates models.GeoPoint   `json:"coordinates"`
	Status      models.ShopStatus `json:"status"`
	StaticHours string            `json:"staticHours"`
	Source      string            `json:"source"`
}

// Provider fetches nearby places from one upstream source.
type Provider interface {
	Name() string
	FetchNearby(ctx context.Context, lat, lng float64, radiusM int) ([]Projection, error)
}
