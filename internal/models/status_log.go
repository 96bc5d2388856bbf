package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StatusLogCollection is the MongoDB collection name for status reports.
const StatusLogCollection = "statuslogs"

// ReportSource distinguishes who reported a status change.
type ReportSource string

const (
	SourceOwner     ReportSource = "OWNER"
	SourceCommunity ReportSource = "COMMUNITY"
)

func (s ReportSource) Valid() bool {
	return s == SourceOwner || s == SourceCommunity
}

// StatusLogModel is one append-only status report. The reporter IP is stored
// for abuse investigation but never serialized to clients.
type StatusLogModel struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ShopID     primitive.ObjectID `bson:"shopId" json:"shopId"`
	Status     ShopStatus         `bson:"status" json:"status"`
	Source     ReportSource       `bson:"source" json:"source"`
	ReportedAt time.Time          `bson:"reportedAt" json:"reportedAt"`
	IPAddress  string             `bson:"ipAddress,omitempty" json:"-"`
}
