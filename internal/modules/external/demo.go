package external

import (
	"context"
	"math/rand"

	"github.com/google/uuid"

	"github.com/opennow/core/internal/models"
)

// DemoProvider fabricates a handful of placeholder shops around the request
// point. It is the terminal link of the fallback chain and never fails.
type DemoProvider struct{}

func NewDemoProvider() *DemoProvider { return &DemoProvider{} }

func (p *DemoProvider) Name() string { return "demo" }

var (
	demoNames      = []string{"City Pharmacy", "Daily Needs", "Sunrise Cafe", "SBI ATM"}
	demoCategories = []string{"Pharmacy", "General Store", "Cafe", "Bank"}
)

const demoShopCount = 5

func (p *DemoProvider) FetchNearby(_ context.Context, lat, lng float64, _ int) ([]Projection, error) {
	projections := make([]Projection, 0, demoShopCount)
	for i := 0; i < demoShopCount; i++ {
		status := models.StatusOpen
		if rand.Float64() <= 0.3 {
			status = models.StatusClosed
		}
		projections = append(projections, Projection{
			ID:          "demo_" + uuid.NewString(),
			Name:        demoNames[i%len(demoNames)] + " (Demo)",
			Category:    demoCategories[i%len(demoCategories)],
			Location:    "Demo Location Data",
			Coordinates: models.NewGeoPoint(lng+jitter(), lat+jitter()),
			Status:      status,
			StaticHours: "9:00 AM - 10:00 PM",
			Source:      SourceDemo,
		})
	}
	return projections, nil
}

// jitter spreads demo shops roughly half a kilometer around the point.
func jitter() float64 {
	return rand.Float64()*0.01 - 0.005
}
