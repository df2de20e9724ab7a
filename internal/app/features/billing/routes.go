// internal/app/features/billing/routes.go
package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts under /dashboard/billing. The gate has already required a
// signed-in user with an active organization. writeMW wraps only the POST
// handlers; pages under this prefix pass through untouched.
func Routes(h *Handler, writeMW ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(writeMW...).Post("/subscribe", h.HandleSubscribe)
	return r
}
