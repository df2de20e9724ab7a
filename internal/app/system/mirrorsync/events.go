package mirrorsync

import (
	"encoding/json"
	"time"
)

// Event kinds delivered by the identity provider.
const (
	SubscriptionCreated = "organizationSubscription.created"
	SubscriptionUpdated = "organizationSubscription.updated"
	SubscriptionDeleted = "organizationSubscription.deleted"
	OrganizationCreated = "organization.created"
	OrganizationUpdated = "organization.updated"
	UserCreated         = "user.created"
	UserUpdated         = "user.updated"
	MembershipCreated   = "organizationMembership.created"
	MembershipUpdated   = "organizationMembership.updated"
)

// Event is the verified webhook body.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	// Timestamp is when the event happened, in unix milliseconds. It is
	// part of the signed body and stays the same across redeliveries.
	Timestamp int64 `json:"timestamp"`
}

// Delivery identifies one webhook delivery. At is the sender's timestamp and
// orders subscription events for the same organization.
type Delivery struct {
	ID   string
	Type string
	At   time.Time
}

type subscriptionData struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	PlanID         string `json:"plan_id"`
	Status         string `json:"status"`
}

type organizationData struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Slug           string         `json:"slug"`
	ImageURL       string         `json:"image_url"`
	PublicMetadata map[string]any `json:"public_metadata"`
}

type emailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type userData struct {
	ID                    string         `json:"id"`
	EmailAddresses        []emailAddress `json:"email_addresses"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
}

// primaryEmail returns the address whose id matches the primary id, or "".
func (u userData) primaryEmail() string {
	if u.PrimaryEmailAddressID == "" {
		return ""
	}
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	return ""
}

type membershipData struct {
	Organization struct {
		ID string `json:"id"`
	} `json:"organization"`
	PublicUserData struct {
		UserID string `json:"user_id"`
	} `json:"public_user_data"`
	Role string `json:"role"`
}
