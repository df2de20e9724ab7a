// internal/app/features/organizations/handler.go
package organizations

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/airodental/internal/app/store/mirror"
	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/respond"
	"github.com/dalemusser/airodental/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the active organization's mirrored record.
type Handler struct {
	Orgs mirror.Organizations
	Log  *zap.Logger
}

// NewHandler constructs an Organizations handler bound to the mirror and logger.
func NewHandler(orgs mirror.Organizations, logger *zap.Logger) *Handler {
	return &Handler{
		Orgs: orgs,
		Log:  logger,
	}
}

// organizationResponse holds the public fields of the mirror. Capabilities
// are evaluated live from the session, never from ActivePlanID.
type organizationResponse struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	Slug         string                     `json:"slug"`
	ActivePlanID *string                    `json:"activePlanId"`
	Capabilities *entitlements.Capabilities `json:"capabilities,omitempty"`
}

// ServeGet handles GET /api/organizations/{id}. Only the caller's active
// organization may be read. With ?capabilities=true the live catalog
// evaluation is included. Routes has already required a signed-in user.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)
	id := chi.URLParam(r, "id")
	if s.OrganizationID == "" || s.OrganizationID != id {
		respond.Error(w, http.StatusForbidden, "Forbidden: You can only access your active organization's data.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	org, err := h.Orgs.GetByID(ctx, id)
	if errors.Is(err, mirror.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "Organization not found in our records")
		return
	}
	if err != nil {
		h.Log.Error("error fetching organization", zap.String("organization_id", id), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch organization data")
		return
	}

	resp := organizationResponse{
		ID:           org.ID,
		Name:         org.Name,
		Slug:         org.Slug,
		ActivePlanID: org.ActivePlanID,
	}
	if r.URL.Query().Get("capabilities") == "true" {
		caps := entitlements.Evaluate(s)
		resp.Capabilities = &caps
	}
	respond.JSON(w, http.StatusOK, resp)
}
