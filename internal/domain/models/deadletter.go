// internal/domain/models/deadletter.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Dead letter statuses.
const (
	DeadLetterPending   = "pending"
	DeadLetterResolved  = "resolved"
	DeadLetterAbandoned = "abandoned"
)

// DeadLetter records a webhook event that could not be applied yet, usually a
// membership event that arrived before its user or organization.
type DeadLetter struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeliveryID string             `bson:"delivery_id" json:"deliveryId"`
	EventType  string             `bson:"event_type" json:"eventType"`
	Payload    string             `bson:"payload" json:"payload"` // raw event data JSON
	Reason     string             `bson:"reason" json:"reason"`
	Status     string             `bson:"status" json:"status"`
	Attempts   int                `bson:"attempts" json:"attempts"`
	EventAt    time.Time          `bson:"event_at" json:"eventAt"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updatedAt"`
}
