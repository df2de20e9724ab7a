// internal/app/features/subscription/routes.go
package subscription

import (
	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers GET /api/subscription/check on the supplied router.
// Callers without a user and an active organization get 401.
func MountRoutes(r chi.Router, h *Handler) {
	r.With(auth.RequireOrganization).Get("/api/subscription/check", h.ServeCheck)
}
