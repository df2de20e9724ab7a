// Package clerkapi writes public metadata back to the identity provider.
package clerkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/organization"
	"github.com/clerk/clerk-sdk-go/v2/user"
)

// Public metadata keys shared with the UI apps.
const (
	KeyActivePlanID       = "airodental_active_plan_id"
	KeySubscriptionStatus = "airodental_subscription_status"
	KeySubscriptionID     = "airodental_clerk_subscription_id"
	KeyPlanEventAt        = "airodental_plan_event_at"
	KeyOnboardingComplete = "onboardingComplete"
)

// StatusDeleted is written when a subscription is removed.
const StatusDeleted = "deleted"

// PlanMetadata is the organization metadata written on subscription events.
// EventAt lets readers discard an older write that lands late.
type PlanMetadata struct {
	ActivePlanID       *string
	SubscriptionStatus string
	SubscriptionID     string
	EventAt            time.Time
}

func (m PlanMetadata) fields() map[string]any {
	var plan any
	if m.ActivePlanID != nil {
		plan = *m.ActivePlanID
	}
	return map[string]any{
		KeyActivePlanID:       plan,
		KeySubscriptionStatus: m.SubscriptionStatus,
		KeySubscriptionID:     m.SubscriptionID,
		KeyPlanEventAt:        m.EventAt.UTC().Format(time.RFC3339Nano),
	}
}

// MetadataWriter is what the webhook and onboarding handlers need.
type MetadataWriter interface {
	UpdateOrganizationPlan(ctx context.Context, orgID string, md PlanMetadata) error
	CompleteOnboarding(ctx context.Context, userID string) error
}

// Client talks to the identity provider's backend API.
type Client struct {
	orgs  *organization.Client
	users *user.Client
}

// New builds a client. apiURL may be empty for the provider's default
// endpoint; httpClient may be nil.
func New(secretKey, apiURL string, httpClient *http.Client) *Client {
	cfg := &clerk.ClientConfig{}
	cfg.Key = clerk.String(secretKey)
	if apiURL != "" {
		cfg.URL = clerk.String(apiURL)
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &Client{
		orgs:  organization.NewClient(cfg),
		users: user.NewClient(cfg),
	}
}

// UpdateOrganizationPlan merges md into the organization's public metadata.
// Writing the same event twice yields the same metadata.
func (c *Client) UpdateOrganizationPlan(ctx context.Context, orgID string, md PlanMetadata) error {
	raw, err := json.Marshal(md.fields())
	if err != nil {
		return err
	}
	msg := json.RawMessage(raw)
	if _, err := c.orgs.UpdateMetadata(ctx, orgID, &organization.UpdateMetadataParams{
		PublicMetadata: &msg,
	}); err != nil {
		return fmt.Errorf("update organization %s metadata: %w", orgID, err)
	}
	return nil
}

// CompleteOnboarding sets onboardingComplete=true in the user's public metadata.
func (c *Client) CompleteOnboarding(ctx context.Context, userID string) error {
	raw, err := json.Marshal(map[string]any{KeyOnboardingComplete: true})
	if err != nil {
		return err
	}
	msg := json.RawMessage(raw)
	if _, err := c.users.UpdateMetadata(ctx, userID, &user.UpdateMetadataParams{
		PublicMetadata: &msg,
	}); err != nil {
		return fmt.Errorf("update user %s metadata: %w", userID, err)
	}
	return nil
}
