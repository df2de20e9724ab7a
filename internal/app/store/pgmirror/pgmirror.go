// Package pgmirror keeps the organization, user and membership mirror in
// PostgreSQL for deployments that report from SQL.
package pgmirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/airodental/internal/app/store/mirror"
	"github.com/dalemusser/airodental/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	name_ci         TEXT NOT NULL,
	slug            TEXT NOT NULL,
	image_url       TEXT,
	active_plan_id  TEXT,
	plan_event_at   TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS organizations_slug_idx ON organizations (slug);

CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	email       TEXT NOT NULL,
	first_name  TEXT,
	last_name   TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS organization_members (
	user_id          TEXT NOT NULL REFERENCES users (id),
	organization_id  TEXT NOT NULL REFERENCES organizations (id),
	role             TEXT NOT NULL,
	event_at         TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, organization_id)
);

ALTER TABLE organization_members ADD COLUMN IF NOT EXISTS event_at TIMESTAMPTZ;
`

// DB owns the pool and hands out the three mirror stores.
type DB struct {
	pool *pgxpool.Pool
}

// Open connects and pings.
func Open(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &DB{pool: pool}, nil
}

// EnsureSchema creates the mirror tables when absent.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, schema)
	return err
}

// Ping is used by the health check.
func (db *DB) Ping(ctx context.Context) error { return db.pool.Ping(ctx) }

// Close releases the pool.
func (db *DB) Close() { db.pool.Close() }

// Stores returns the mirror backed by this database.
func (db *DB) Stores() mirror.Stores {
	return mirror.Stores{
		Organizations: &Organizations{pool: db.pool},
		Users:         &Users{pool: db.pool},
		Members:       &Members{pool: db.pool},
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Organizations                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

type Organizations struct {
	pool *pgxpool.Pool
}

var _ mirror.Organizations = (*Organizations)(nil)

func (s *Organizations) Upsert(ctx context.Context, org models.Organization) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, name_ci, slug, image_url, active_plan_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			name_ci = EXCLUDED.name_ci,
			slug = EXCLUDED.slug,
			image_url = EXCLUDED.image_url,
			updated_at = now()`,
		org.ID, org.Name, text.Fold(org.Name), org.Slug, org.ImageURL, org.ActivePlanID)
	return err
}

func (s *Organizations) SetActivePlan(ctx context.Context, id string, planID *string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET active_plan_id = $2, plan_event_at = $3, updated_at = now()
		WHERE id = $1 AND (plan_event_at IS NULL OR plan_event_at <= $3)`,
		id, planID, at.UTC())
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, mirror.ErrNotFound
	}
	return false, nil
}

func (s *Organizations) AssignPlan(ctx context.Context, org models.Organization) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, name_ci, slug, active_plan_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			active_plan_id = EXCLUDED.active_plan_id,
			updated_at = now()`,
		org.ID, org.Name, text.Fold(org.Name), org.Slug, org.ActivePlanID)
	return err
}

func (s *Organizations) GetByID(ctx context.Context, id string) (models.Organization, error) {
	var org models.Organization
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, name_ci, slug, image_url, active_plan_id, plan_event_at, created_at, updated_at
		FROM organizations WHERE id = $1`, id).
		Scan(&org.ID, &org.Name, &org.NameCI, &org.Slug, &org.ImageURL, &org.ActivePlanID,
			&org.PlanEventAt, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Organization{}, mirror.ErrNotFound
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Organizations) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

/*─────────────────────────────────────────────────────────────────────────────*
| Users and memberships                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

type Users struct {
	pool *pgxpool.Pool
}

var _ mirror.Users = (*Users)(nil)

func (s *Users) Upsert(ctx context.Context, u models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = now()`,
		u.ID, u.Email, u.FirstName, u.LastName)
	return err
}

func (s *Users) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

type Members struct {
	pool *pgxpool.Pool
}

var _ mirror.Members = (*Members)(nil)

// Upsert skips the write when the stored row has a later event_at.
func (s *Members) Upsert(ctx context.Context, m models.OrganizationMember) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO organization_members (user_id, organization_id, role, event_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, organization_id) DO UPDATE SET
			role = EXCLUDED.role,
			event_at = EXCLUDED.event_at,
			updated_at = now()
		WHERE organization_members.event_at IS NULL
			OR organization_members.event_at <= EXCLUDED.event_at`,
		m.UserID, m.OrganizationID, m.Role, m.EventAt.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
