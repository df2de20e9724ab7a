// internal/app/features/billing/handler.go
package billing

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/airodental/internal/app/store/mirror"
	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/dalemusser/airodental/internal/app/system/respond"
	"github.com/dalemusser/airodental/internal/app/system/timeouts"
	"github.com/dalemusser/airodental/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultOrganizationName is used when the subscribing organization has not
// been mirrored yet.
const DefaultOrganizationName = "My Organization"

// planNames are the display names used in the confirmation message.
var planNames = map[string]string{
	"laine_lite": "Laine Lite",
	"laine_pro":  "Laine Pro",
}

// Handler is the demo billing action. It writes the mirror directly and does
// not touch the identity provider, so access decisions are unaffected.
type Handler struct {
	Orgs mirror.Organizations
	Log  *zap.Logger
}

// NewHandler constructs a billing handler.
func NewHandler(orgs mirror.Organizations, logger *zap.Logger) *Handler {
	return &Handler{Orgs: orgs, Log: logger}
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleSubscribe handles POST /dashboard/billing/subscribe with form field planId.
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)
	if !s.HasOrganization() {
		respond.JSON(w, http.StatusBadRequest, result{
			Message: "No organization found. Please create an organization to continue.",
		})
		return
	}
	if err := r.ParseForm(); err != nil {
		respond.JSON(w, http.StatusBadRequest, result{Message: "Invalid form submission"})
		return
	}
	planID := strings.TrimSpace(r.PostForm.Get("planId"))
	if planID == "" {
		respond.JSON(w, http.StatusBadRequest, result{Message: "Plan ID is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	org := models.Organization{
		ID:           s.OrganizationID,
		Name:         DefaultOrganizationName,
		Slug:         SlugFor(s.OrganizationID),
		ActivePlanID: &planID,
	}
	if err := h.Orgs.AssignPlan(ctx, org); err != nil {
		h.Log.Error("error updating organization plan",
			zap.String("organization_id", s.OrganizationID), zap.Error(err))
		respond.JSON(w, http.StatusInternalServerError, result{Message: "Failed to update subscription"})
		return
	}

	h.Log.Info("demo plan assigned",
		zap.String("organization_id", s.OrganizationID), zap.String("plan_id", planID))
	respond.JSON(w, http.StatusOK, result{
		Success: true,
		Message: "Successfully subscribed to " + displayName(planID),
	})
}

func displayName(planID string) string {
	if name, ok := planNames[planID]; ok {
		return name
	}
	return "Laine Lite"
}

// SlugFor lowercases id and replaces anything outside [a-z0-9] with '-'.
func SlugFor(id string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, strings.ToLower(id))
}
