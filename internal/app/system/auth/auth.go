// Package auth attaches the identity provider's session to each request and
// offers small guards for JSON endpoints.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/respond"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session loading                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const sessionKey ctxKey = "session"

// SessionLoader resolves the provider session once per request.
type SessionLoader struct {
	provider entitlements.Provider
	logger   *zap.Logger
}

// NewSessionLoader wraps provider. A nil provider yields anonymous sessions.
func NewSessionLoader(provider entitlements.Provider, logger *zap.Logger) *SessionLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionLoader{provider: provider, logger: logger}
}

// Middleware injects the session into r.Context(). Token problems are logged
// and the request continues anonymously; gating decides what that means.
func (l *SessionLoader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.provider == nil {
			next.ServeHTTP(w, r)
			return
		}
		s, err := l.provider.Load(r)
		if err != nil {
			l.logger.Debug("session token rejected",
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
		next.ServeHTTP(w, WithSession(r, s))
	})
}

// CurrentSession returns the session attached by the loader, or an anonymous
// session when none was attached.
func CurrentSession(r *http.Request) entitlements.Session {
	s, _ := r.Context().Value(sessionKey).(entitlements.Session)
	return s
}

// WithSession returns a shallow copy of r carrying s. Tests use it to bypass
// token verification.
func WithSession(r *http.Request, s entitlements.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionKey, s))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Guards for JSON endpoints                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// RequireSignedIn answers 401 {"error":"Unauthorized"} when no user is present.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CurrentSession(r).SignedIn() {
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOrganization answers 401 unless both a user and an active
// organization are present.
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := CurrentSession(r)
		if !s.SignedIn() || !s.HasOrganization() {
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsAPIRequest reports whether r targets a JSON surface rather than a page.
// Such callers get status codes instead of redirects.
func IsAPIRequest(r *http.Request) bool {
	p := r.URL.Path
	if p == "/api" || strings.HasPrefix(p, "/api/") || p == "/trpc" || strings.HasPrefix(p, "/trpc/") {
		return true
	}
	return !wantsHTML(r) && strings.Contains(r.Header.Get("Accept"), "application/json")
}

// IsHTMX reports a request issued by htmx, which needs HX-Redirect rather
// than a 3xx to navigate the whole page.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func wantsHTML(r *http.Request) bool {
	if IsHTMX(r) {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
