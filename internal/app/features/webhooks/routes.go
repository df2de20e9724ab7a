// internal/app/features/webhooks/routes.go
package webhooks

import "github.com/go-chi/chi/v5"

// Routes mounts under /api/webhooks. The gate bypasses this prefix; the
// signature is the only authentication.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/clerk", h.ServeClerk)
	return r
}
