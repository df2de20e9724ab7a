// Package mirrorsync applies identity-provider lifecycle events to the local
// mirror and propagates subscription state back to the provider.
package mirrorsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dalemusser/airodental/internal/app/store/mirror"
	"github.com/dalemusser/airodental/internal/app/system/clerkapi"
	"github.com/dalemusser/airodental/internal/app/system/eventbus"
	"github.com/dalemusser/airodental/internal/app/system/metrics"
	"github.com/dalemusser/airodental/internal/domain/models"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Results reported by Apply.
const (
	ResultOK           = "ok"
	ResultSkipped      = "skipped"
	ResultStale        = "stale"
	ResultDeadLettered = "deadlettered"
	ResultIgnored      = "ignored"
)

// Subscription statuses that carry a plan.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
)

// EventError marks an event that can never be applied as sent. The handler
// answers it with 400 and Msg.
type EventError struct {
	Msg string
	Err error
}

func (e *EventError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *EventError) Unwrap() error { return e.Err }

// ErrMissingOrganizationID is returned for subscription events without an
// organization id.
var ErrMissingOrganizationID = &EventError{Msg: "Missing organization_id"}

// DeadLetters keeps events that cannot be applied yet.
type DeadLetters interface {
	Add(ctx context.Context, dl models.DeadLetter) error
}

// Syncer applies events. It holds no per-request state and is safe for
// concurrent use.
type Syncer struct {
	orgs    mirror.Organizations
	users   mirror.Users
	members mirror.Members
	meta    clerkapi.MetadataWriter
	dead    DeadLetters
	bus     eventbus.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
	policy  *bluemonday.Policy
}

// NewSyncer wires the mirror stores and the provider client. dead and bus may
// be nil; m may be nil.
func NewSyncer(stores mirror.Stores, meta clerkapi.MetadataWriter, dead DeadLetters, bus eventbus.Publisher, m *metrics.Metrics, logger *zap.Logger) *Syncer {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Syncer{
		orgs:    stores.Organizations,
		users:   stores.Users,
		members: stores.Members,
		meta:    meta,
		dead:    dead,
		bus:     bus,
		metrics: m,
		log:     logger,
		policy:  bluemonday.StrictPolicy(),
	}
}

// Apply dispatches one verified event. Unknown kinds are logged and ignored.
// A non-nil error means the sender should redeliver, unless it is an
// *EventError.
func (s *Syncer) Apply(ctx context.Context, d Delivery, data json.RawMessage) (string, error) {
	switch d.Type {
	case SubscriptionCreated, SubscriptionUpdated:
		return s.applySubscription(ctx, d, data, false)
	case SubscriptionDeleted:
		return s.applySubscription(ctx, d, data, true)
	case OrganizationCreated, OrganizationUpdated:
		return s.applyOrganization(ctx, d, data)
	case UserCreated, UserUpdated:
		return s.applyUser(ctx, d, data)
	case MembershipCreated, MembershipUpdated:
		return s.applyMembership(ctx, d, data)
	default:
		s.log.Info("webhook event type not explicitly handled", zap.String("event_type", d.Type))
		return ResultIgnored, nil
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return &EventError{Msg: "Missing event data"}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &EventError{Msg: "Invalid event data", Err: err}
	}
	return nil
}

// PlanFor maps a subscription status to the mirrored plan id: active and
// trialing keep the plan, everything else clears it.
func PlanFor(status, planID string) *string {
	if (status == StatusActive || status == StatusTrialing) && planID != "" {
		return &planID
	}
	return nil
}

func (s *Syncer) applySubscription(ctx context.Context, d Delivery, data json.RawMessage, deleted bool) (string, error) {
	var ev subscriptionData
	if err := decode(data, &ev); err != nil {
		return "", err
	}
	if ev.OrganizationID == "" {
		s.log.Warn("subscription event missing organization_id", zap.String("event_type", d.Type))
		return "", ErrMissingOrganizationID
	}

	status := ev.Status
	var plan *string
	if deleted {
		status = clerkapi.StatusDeleted
	} else {
		plan = PlanFor(ev.Status, ev.PlanID)
	}

	applied, err := s.orgs.SetActivePlan(ctx, ev.OrganizationID, plan, d.At)
	if err != nil {
		if errors.Is(err, mirror.ErrNotFound) {
			return "", fmt.Errorf("organization %s is not mirrored yet: %w", ev.OrganizationID, err)
		}
		return "", fmt.Errorf("set active plan for %s: %w", ev.OrganizationID, err)
	}
	if !applied {
		s.log.Info("subscription event older than mirrored plan; skipped",
			zap.String("event_type", d.Type),
			zap.String("organization_id", ev.OrganizationID),
			zap.Time("event_at", d.At))
		return ResultStale, nil
	}
	s.log.Info("mirror: organization plan updated",
		zap.String("organization_id", ev.OrganizationID),
		zap.Stringp("active_plan_id", plan),
		zap.String("status", status))

	md := clerkapi.PlanMetadata{
		ActivePlanID:       plan,
		SubscriptionStatus: status,
		SubscriptionID:     ev.ID,
		EventAt:            d.At,
	}
	if err := s.meta.UpdateOrganizationPlan(ctx, ev.OrganizationID, md); err != nil {
		s.metrics.ExternalWriteFailed()
		return "", err
	}
	s.log.Info("identity provider: organization plan metadata updated",
		zap.String("organization_id", ev.OrganizationID))

	msg := eventbus.PlanChanged{
		Type:               eventbus.EventPlanChanged,
		OrganizationID:     ev.OrganizationID,
		ActivePlanID:       plan,
		SubscriptionStatus: status,
		SubscriptionID:     ev.ID,
		DeliveryID:         d.ID,
		OccurredAt:         d.At.UTC(),
	}
	if err := s.bus.Publish(ctx, ev.OrganizationID, msg); err != nil {
		s.log.Warn("publish plan change failed",
			zap.String("organization_id", ev.OrganizationID), zap.Error(err))
	}
	return ResultOK, nil
}

func (s *Syncer) applyOrganization(ctx context.Context, d Delivery, data json.RawMessage) (string, error) {
	var ev organizationData
	if err := decode(data, &ev); err != nil {
		return "", err
	}
	if ev.ID == "" {
		s.log.Warn("organization event missing id", zap.String("event_type", d.Type))
		return ResultSkipped, nil
	}

	org := models.Organization{
		ID:   ev.ID,
		Name: s.clean(ev.Name),
		Slug: s.clean(ev.Slug),
	}
	if org.Name == "" {
		org.Name = "Org " + ev.ID
	}
	if org.Slug == "" {
		org.Slug = ev.ID
	}
	if ev.ImageURL != "" {
		img := ev.ImageURL
		org.ImageURL = &img
	}
	if seeded, ok := ev.PublicMetadata[clerkapi.KeyActivePlanID].(string); ok && seeded != "" {
		org.ActivePlanID = &seeded
	}

	if err := s.orgs.Upsert(ctx, org); err != nil {
		return "", fmt.Errorf("upsert organization %s: %w", ev.ID, err)
	}
	s.log.Info("mirror: organization upserted", zap.String("organization_id", ev.ID))
	return ResultOK, nil
}

func (s *Syncer) applyUser(ctx context.Context, d Delivery, data json.RawMessage) (string, error) {
	var ev userData
	if err := decode(data, &ev); err != nil {
		return "", err
	}
	email := ev.primaryEmail()
	if ev.ID == "" || email == "" {
		s.log.Warn("user event missing user id or primary email", zap.String("event_type", d.Type))
		return ResultSkipped, nil
	}

	u := models.User{
		ID:        ev.ID,
		Email:     email,
		FirstName: ev.FirstName,
		LastName:  ev.LastName,
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		return "", fmt.Errorf("upsert user %s: %w", ev.ID, err)
	}
	s.log.Info("mirror: user upserted", zap.String("user_id", ev.ID))
	return ResultOK, nil
}

func (s *Syncer) applyMembership(ctx context.Context, d Delivery, data json.RawMessage) (string, error) {
	var ev membershipData
	if err := decode(data, &ev); err != nil {
		return "", err
	}
	missing, err := s.upsertMembership(ctx, ev, d.At)
	if err != nil {
		return "", err
	}
	switch missing {
	case "":
		return ResultOK, nil
	case superseded:
		return ResultStale, nil
	case missingFields:
		s.log.Warn("membership event missing org id, user id or role", zap.String("event_type", d.Type))
		return ResultSkipped, nil
	}

	s.log.Warn("membership references unknown parent; dead-lettered",
		zap.String("event_type", d.Type),
		zap.String("user_id", ev.PublicUserData.UserID),
		zap.String("organization_id", ev.Organization.ID),
		zap.String("missing", missing))
	if s.dead == nil {
		return ResultSkipped, nil
	}
	dl := models.DeadLetter{
		DeliveryID: d.ID,
		EventType:  d.Type,
		Payload:    string(data),
		Reason:     missing,
		EventAt:    d.At.UTC(),
	}
	if err := s.dead.Add(ctx, dl); err != nil {
		return "", fmt.Errorf("record dead letter: %w", err)
	}
	s.metrics.DeadLetter(models.DeadLetterPending)
	return ResultDeadLettered, nil
}

// Reasons a membership could not be written.
const (
	missingFields       = "missing fields"
	missingUser         = "user not mirrored"
	missingOrganization = "organization not mirrored"
	missingBoth         = "user and organization not mirrored"
	superseded          = "superseded by a newer membership event"
)

// upsertMembership writes the membership when both parents exist. missing is
// empty on success, otherwise it names what was absent or that a newer event
// already set the role.
func (s *Syncer) upsertMembership(ctx context.Context, ev membershipData, at time.Time) (missing string, err error) {
	orgID := ev.Organization.ID
	userID := ev.PublicUserData.UserID
	if orgID == "" || userID == "" || ev.Role == "" {
		return missingFields, nil
	}

	userOK, err := s.users.Exists(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("look up user %s: %w", userID, err)
	}
	orgOK, err := s.orgs.Exists(ctx, orgID)
	if err != nil {
		return "", fmt.Errorf("look up organization %s: %w", orgID, err)
	}
	switch {
	case !userOK && !orgOK:
		return missingBoth, nil
	case !userOK:
		return missingUser, nil
	case !orgOK:
		return missingOrganization, nil
	}

	m := models.OrganizationMember{UserID: userID, OrganizationID: orgID, Role: ev.Role, EventAt: at.UTC()}
	applied, err := s.members.Upsert(ctx, m)
	if err != nil {
		return "", fmt.Errorf("upsert membership %s/%s: %w", orgID, userID, err)
	}
	if !applied {
		s.log.Info("membership event older than mirrored role; skipped",
			zap.String("user_id", userID),
			zap.String("organization_id", orgID),
			zap.Time("event_at", at))
		return superseded, nil
	}
	s.log.Info("mirror: membership role set",
		zap.String("user_id", userID),
		zap.String("organization_id", orgID),
		zap.String("role", ev.Role))
	return "", nil
}

// ReplayMembership retries a dead-lettered membership payload with the time
// of the original event. applied is false with a reason when a parent is
// still missing. A letter superseded by a newer membership event counts as
// applied, since nothing is left to write.
func (s *Syncer) ReplayMembership(ctx context.Context, payload string, at time.Time) (applied bool, reason string, err error) {
	var ev membershipData
	if err := decode(json.RawMessage(payload), &ev); err != nil {
		return false, "", err
	}
	missing, err := s.upsertMembership(ctx, ev, at)
	if err != nil {
		return false, "", err
	}
	switch missing {
	case "", superseded:
		return true, missing, nil
	}
	return false, missing, nil
}

// clean strips markup from provider-supplied display text.
func (s *Syncer) clean(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}
