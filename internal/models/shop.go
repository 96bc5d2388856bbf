package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ShopCollection is the MongoDB collection name for shops.
const ShopCollection = "shops"

// ShopStatus is the stored open/closed state of a shop.
type ShopStatus string

const (
	StatusOpen      ShopStatus = "OPEN"
	StatusClosed    ShopStatus = "CLOSED"
	StatusUncertain ShopStatus = "UNCERTAIN"
)

// Valid reports whether s is one of the three storable statuses.
func (s ShopStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed || s == StatusUncertain
}

// Reportable reports whether s may be submitted in a status report. Clients
// report observations, so UNCERTAIN is reserved for the staleness sweep.
func (s ShopStatus) Reportable() bool {
	return s == StatusOpen || s == StatusClosed
}

// GeoPoint is a GeoJSON Point. Coordinates are longitude first, then
// latitude, matching what the 2dsphere index expects.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON Point from a longitude/latitude pair.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// IsValid checks the GeoJSON shape and coordinate ranges.
func (p GeoPoint) IsValid() bool {
	if p.Type != "Point" || len(p.Coordinates) != 2 {
		return false
	}
	lng, lat := p.Coordinates[0], p.Coordinates[1]
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// ShopModel is a community-tracked shop with its last known status.
type ShopModel struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ExternalID       string             `bson:"externalId,omitempty" json:"externalId,omitempty"`
	Name             string             `bson:"name" json:"name"`
	Category         string             `bson:"category" json:"category"`
	Location         string             `bson:"location" json:"location"`
	Status           ShopStatus         `bson:"status" json:"status"`
	LastStatusUpdate time.Time          `bson:"lastStatusUpdate" json:"lastStatusUpdate"`
	ReportCount      int64              `bson:"reportCount" json:"reportCount"`
	OpenTime         string             `bson:"openTime,omitempty" json:"openTime,omitempty"`
	CloseTime        string             `bson:"closeTime,omitempty" json:"closeTime,omitempty"`
	Coordinates      GeoPoint           `bson:"coordinates" json:"coordinates"`
}

// HasDeclaredHours reports whether both daily hours are present. A partial
// pair counts as no declared hours.
func (m *ShopModel) HasDeclaredHours() bool {
	return m.OpenTime != "" && m.CloseTime != ""
}
