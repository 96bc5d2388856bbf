package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opennow/core/internal/models"
)

const osmFetchTimeout = 30 * time.Second

// OSMProvider queries the Overpass API for tagged nodes around a point.
type OSMProvider struct {
	endpoint string
	client   *http.Client
}

func NewOSMProvider(endpoint string) *OSMProvider {
	return &OSMProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: osmFetchTimeout},
	}
}

func (p *OSMProvider) Name() string { return "osm" }

type overpassElement struct {
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

func (p *OSMProvider) FetchNearby(ctx context.Context, lat, lng float64, radiusM int) ([]Projection, error) {
	query := overpassQuery(lat, lng, radiusM)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(query))
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osm provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osm provider: status %d", resp.StatusCode)
	}

	var out struct {
		Elements []overpassElement `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("osm provider: decode: %w", err)
	}

	projections := make([]Projection, 0, len(out.Elements))
	for _, el := range out.Elements {
		if el.Tags == nil {
			continue
		}
		category := osmCategory(el.Tags)
		name := el.Tags["name"]
		if name == "" {
			name = category + " (Unnamed)"
		}
		hours := el.Tags["opening_hours"]
		if hours == "" {
			hours = "Not Specified"
		}
		projections = append(projections, Projection{
			ID:          fmt.Sprintf("osm_%d", el.ID),
			Name:        name,
			Category:    category,
			Location:    "OpenStreetMap Data",
			Coordinates: models.NewGeoPoint(el.Lon, el.Lat),
			Status:      models.StatusUncertain,
			StaticHours: hours,
			Source:      SourceOSM,
		})
	}
	return projections, nil
}

func overpassQuery(lat, lng float64, radiusM int) string {
	around := fmt.Sprintf("(around:%d,%f,%f)", radiusM, lat, lng)
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	b.WriteString(fmt.Sprintf("  node[\"shop\"]%s;\n", around))
	for _, amenity := range []string{"pharmacy", "bank", "atm", "fuel"} {
		b.WriteString(fmt.Sprintf("  node[\"amenity\"=%q]%s;\n", amenity, around))
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

func osmCategory(tags map[string]string) string {
	switch {
	case tags["shop"] == "supermarket", tags["shop"] == "convenience":
		return "General Store"
	case tags["amenity"] == "pharmacy":
		return "Pharmacy"
	case tags["amenity"] == "bank", tags["amenity"] == "atm":
		return "Bank"
	case tags["amenity"] == "fuel":
		return "Gas Station"
	default:
		return "Other"
	}
}
