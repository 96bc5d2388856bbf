package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opennow/core/internal/models"
)

const (
	googleSearchURL    = "https://places.googleapis.com/v1/places:searchNearby"
	googleFieldMask    = "places.id,places.displayName,places.formattedAddress,places.location,places.types,places.regularOpeningHours,places.businessStatus"
	googleMaxResults   = 20
	googleFetchTimeout = 10 * time.Second
)

var googleIncludedTypes = []string{
	"restaurant", "cafe", "pharmacy", "bank", "atm", "supermarket", "store",
}

// GoogleProvider queries the Places API (New) nearby search.
type GoogleProvider struct {
	apiKey string
	client *http.Client
}

func NewGoogleProvider(apiKey string) *GoogleProvider {
	return &GoogleProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: googleFetchTimeout},
	}
}

func (p *GoogleProvider) Name() string { return "google" }

// Configured reports whether an API key is present. An unconfigured provider
// is skipped by the chain rather than burning a request to fail.
func (p *GoogleProvider) Configured() bool { return p.apiKey != "" }

type googleSearchRequest struct {
	IncludedTypes       []string `json:"includedTypes"`
	MaxResultCount      int      `json:"maxResultCount"`
	LocationRestriction struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type googlePlace struct {
	ID          string `json:"id"`
	DisplayName *struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string `json:"formattedAddress"`
	Location         *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Types               []string `json:"types"`
	BusinessStatus      string   `json:"businessStatus"`
	RegularOpeningHours *struct {
		OpenNow *bool `json:"openNow"`
	} `json:"regularOpeningHours"`
}

func (p *GoogleProvider) FetchNearby(ctx context.Context, lat, lng float64, radiusM int) ([]Projection, error) {
	if !p.Configured() {
		return nil, fmt.Errorf("google provider: no API key configured")
	}

	var body googleSearchRequest
	body.IncludedTypes = googleIncludedTypes
	body.MaxResultCount = googleMaxResults
	body.LocationRestriction.Circle.Center.Latitude = lat
	body.LocationRestriction.Circle.Center.Longitude = lng
	body.LocationRestriction.Circle.Radius = float64(radiusM)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleSearchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", p.apiKey)
	req.Header.Set("X-Goog-FieldMask", googleFieldMask)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("google provider: status %d: %s", resp.StatusCode, detail)
	}

	var out struct {
		Places []googlePlace `json:"places"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("google provider: decode: %w", err)
	}

	projections := make([]Projection, 0, len(out.Places))
	for _, place := range out.Places {
		if place.Location == nil {
			continue
		}
		proj := Projection{
			ID:          "google_" + place.ID,
			Name:        "Unknown Place",
			Category:    googleCategory(place.Types),
			Location:    place.FormattedAddress,
			Coordinates: models.NewGeoPoint(place.Location.Longitude, place.Location.Latitude),
			Status:      googleStatus(place),
			StaticHours: googleStaticHours(place),
			Source:      SourceGoogle,
		}
		if place.DisplayName != nil && place.DisplayName.Text != "" {
			proj.Name = place.DisplayName.Text
		}
		if proj.Location == "" {
			proj.Location = "Google Maps Data"
		}
		projections = append(projections, proj)
	}
	return projections, nil
}

// googleStatus folds businessStatus and the live openNow flag into the three
// stored statuses. A permanent/temporary closure wins over openNow.
func googleStatus(place googlePlace) models.ShopStatus {
	if place.BusinessStatus == "CLOSED_PERMANENTLY" || place.BusinessStatus == "CLOSED_TEMPORARILY" {
		return models.StatusClosed
	}
	if place.RegularOpeningHours != nil && place.RegularOpeningHours.OpenNow != nil {
		if *place.RegularOpeningHours.OpenNow {
			return models.StatusOpen
		}
		return models.StatusClosed
	}
	return models.StatusUncertain
}

func googleStaticHours(place googlePlace) string {
	if place.RegularOpeningHours != nil && place.RegularOpeningHours.OpenNow != nil {
		if *place.RegularOpeningHours.OpenNow {
			return "Open Now"
		}
		return "Closed Now"
	}
	if place.BusinessStatus == "OPERATIONAL" {
		return "Hours not listed"
	}
	return "Closed"
}

func googleCategory(types []string) string {
	has := func(want string) bool {
		for _, t := range types {
			if t == want {
				return true
			}
		}
		return false
	}
	switch {
	case has("pharmacy"):
		return "Pharmacy"
	case has("bank"), has("atm"):
		return "Bank"
	case has("cafe"), has("restaurant"):
		return "Cafe"
	case has("supermarket"), has("convenience_store"):
		return "General Store"
	case len(types) > 0:
		return titleizeType(types[0])
	default:
		return "Other"
	}
}

// titleizeType turns a place type like "hardware_store" into "Hardware Store".
func titleizeType(t string) string {
	words := strings.Split(t, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
