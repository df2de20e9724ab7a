// internal/domain/models/organization.go
package models

import "time"

// Organization mirrors an identity-provider organization.
// ID is the provider's organization id, never generated locally.
type Organization struct {
	ID       string  `bson:"_id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	NameCI   string  `bson:"name_ci" json:"-"` // ← always stored
	Slug     string  `bson:"slug" json:"slug"`
	ImageURL *string `bson:"image_url,omitempty" json:"imageUrl,omitempty"`

	// ActivePlanID is a denormalized copy of subscription state, kept for display.
	// Access decisions use the live entitlement predicate instead.
	ActivePlanID *string `bson:"active_plan_id" json:"activePlanId"`

	// PlanEventAt is the timestamp of the subscription event that last wrote
	// ActivePlanID. Older events are ignored.
	PlanEventAt *time.Time `bson:"plan_event_at,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"-"`
	UpdatedAt time.Time `bson:"updated_at" json:"-"`
}
