// internal/app/features/organizations/routes.go
package organizations

import (
	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the organization API under the base path
// (typically "/api/organizations" from bootstrap). Anonymous callers get 401;
// the handler limits signed-in callers to their active organization.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireSignedIn).Get("/{id}", h.ServeGet)
	return r
}
