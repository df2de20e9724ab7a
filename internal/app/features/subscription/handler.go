// internal/app/features/subscription/handler.go
package subscription

import (
	"net/http"

	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/respond"
)

// Handler reports live capabilities for the active organization.
type Handler struct{}

// NewHandler creates a new subscription handler.
func NewHandler() *Handler {
	return &Handler{}
}

type checkResponse struct {
	entitlements.Capabilities
	OrgID  string `json:"orgId"`
	UserID string `json:"userId"`
}

// ServeCheck handles GET /api/subscription/check.
//
// Response format:
//
//	{ "plans":{"laine_lite":false,"laine_pro":true},
//	  "features":{"data_export":true,"laine_access":false,"premium_support":false},
//	  "permissions":{"manage_users":true},
//	  "orgId":"org_…", "userId":"user_…" }
//
// Every value is evaluated from the session at request time. MountRoutes
// guards it with auth.RequireOrganization.
func (h *Handler) ServeCheck(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)
	respond.JSON(w, http.StatusOK, checkResponse{
		Capabilities: entitlements.Evaluate(s),
		OrgID:        s.OrganizationID,
		UserID:       s.UserID,
	})
}
