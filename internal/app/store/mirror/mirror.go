// Package mirror defines the local copy of identity-provider organizations,
// users and memberships. MongoDB and PostgreSQL both implement it.
package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/airodental/internal/domain/models"
)

// ErrNotFound is returned when the addressed record is absent.
var ErrNotFound = errors.New("mirror: not found")

// Organizations is the organization mirror.
type Organizations interface {
	// Upsert writes id, name, slug and image. org.ActivePlanID seeds the plan
	// only when the record is created.
	Upsert(ctx context.Context, org models.Organization) error
	// SetActivePlan writes the plan when at is not older than the last plan
	// event. applied is false for a stale event. ErrNotFound when absent.
	SetActivePlan(ctx context.Context, id string, planID *string, at time.Time) (applied bool, err error)
	// AssignPlan sets the plan directly, creating the organization with the
	// given name and slug when missing. The plan event time is left alone.
	AssignPlan(ctx context.Context, org models.Organization) error
	GetByID(ctx context.Context, id string) (models.Organization, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Users is the user mirror.
type Users interface {
	Upsert(ctx context.Context, u models.User) error
	Exists(ctx context.Context, id string) (bool, error)
}

// Members is the membership mirror, unique per (user, organization).
type Members interface {
	// Upsert reports false when the stored membership comes from a newer
	// event than m.EventAt.
	Upsert(ctx context.Context, m models.OrganizationMember) (bool, error)
}

// Stores bundles one backend.
type Stores struct {
	Organizations Organizations
	Users         Users
	Members       Members
}
