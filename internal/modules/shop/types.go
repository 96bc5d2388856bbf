package shop

import (
	"errors"

	"github.com/opennow/core/internal/models"
)

// ErrNotFound is returned when a status report names an id that resolves to
// nothing and carries no details to create from.
var ErrNotFound = errors.New("shop not found and no details provided for creation")

// ValidationError marks a rejected request payload. Surfaced as 400, never
// retried.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// CreateShopDTO is the payload for direct shop submission.
type CreateShopDTO struct {
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Location    string            `json:"location"`
	Status      models.ShopStatus `json:"status"`
	OpenTime    string            `json:"openTime"`
	CloseTime   string            `json:"closeTime"`
	Coordinates models.GeoPoint   `json:"coordinates"`
}

// ShopDetailsDTO carries the projection fields needed to migrate an external
// record into the local store on first report.
type ShopDetailsDTO struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Location    string          `json:"location"`
	OpenTime    string          `json:"openTime"`
	CloseTime   string          `json:"closeTime"`
	Coordinates models.GeoPoint `json:"coordinates"`
}

// ReportStatusDTO is the payload of POST /shops/:id/status.
type ReportStatusDTO struct {
	Status      models.ShopStatus   `json:"status"`
	Source      models.ReportSource `json:"source"`
	ShopDetails *ShopDetailsDTO     `json:"shopDetails"`
}

// ListQuery selects the retrieval mode for the shop list.
type ListQuery struct {
	Search string
	Near   *LatLng
	All    bool
}

// LatLng is a request-side coordinate pair (latitude first, matching query
// params; the persisted GeoJSON order stays longitude first).
type LatLng struct {
	Lat float64
	Lng float64
}

// ShopView is a shop decorated with its derived display state.
type ShopView struct {
	models.ShopModel
	DisplayStatus string `json:"displayStatus"`
	StatusLabel   string `json:"statusLabel,omitempty"`
}

func newShopView(m models.ShopModel, d Display) ShopView {
	return ShopView{ShopModel: m, DisplayStatus: d.Status, StatusLabel: d.Label}
}
