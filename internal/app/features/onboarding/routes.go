// internal/app/features/onboarding/routes.go
package onboarding

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts under /onboarding. writeMW wraps only the POST handlers.
func Routes(h *Handler, writeMW ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(writeMW...).Post("/complete", h.HandleComplete)
	return r
}
