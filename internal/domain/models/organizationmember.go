// internal/domain/models/organizationmember.go
package models

import "time"

// OrganizationMember is keyed by (UserID, OrganizationID). Exactly one document
// per pair; both parent records must exist before it is written. EventAt is
// the time of the event that set Role; older events never replace it.
type OrganizationMember struct {
	UserID         string    `bson:"user_id" json:"userId"`
	OrganizationID string    `bson:"organization_id" json:"organizationId"`
	Role           string    `bson:"role" json:"role"`
	EventAt        time.Time `bson:"event_at" json:"-"`
	CreatedAt      time.Time `bson:"created_at" json:"-"`
	UpdatedAt      time.Time `bson:"updated_at" json:"-"`
}
